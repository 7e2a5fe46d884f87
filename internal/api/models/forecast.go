package models

import (
	"github.com/dunctk/snorkelforecast/internal/forecast"
)

// ForecastHour is one classified hour of snorkeling conditions.
type ForecastHour struct {
	Time            Timestamp `json:"time"`
	WaveHeight      *float64  `json:"waveHeight"`
	WindSpeed       *float64  `json:"windSpeed"`
	SeaSurfaceTemp  *float64  `json:"seaSurfaceTemperature"`
	SeaLevelHeight  *float64  `json:"seaLevelHeight,omitempty"`
	CurrentVelocity *float64  `json:"currentVelocity,omitempty"`
	Suitable        bool      `json:"suitable"`
	Score           float64   `json:"score"`
	WaveOK          bool      `json:"waveOk"`
	WindOK          bool      `json:"windOk"`
	SSTOK           bool      `json:"sstOk"`
	CurrentOK       bool      `json:"currentOk"`
	SlackOK         bool      `json:"slackOk"`
	Daylight        bool      `json:"daylight"`
}

// ForecastResponse is the classified forecast timeline for one location.
type ForecastResponse struct {
	Location      LocationSummary `json:"location"`
	Hours         []ForecastHour  `json:"hours"`
	HighTides     []Timestamp     `json:"highTides,omitempty"`
	SuitableHours int             `json:"suitableHours"`
	FetchedAt     Timestamp       `json:"fetchedAt"`
	State         string          `json:"state"`
}

// NewForecastResponse converts a forecast snapshot to its API form.
func NewForecastResponse(loc LocationSummary, snap *forecast.Snapshot) ForecastResponse {
	resp := ForecastResponse{
		Location:      loc,
		Hours:         make([]ForecastHour, 0, len(snap.Hours)),
		SuitableHours: snap.SuitableCount(),
		FetchedAt:     Timestamp(snap.FetchedAt),
		State:         string(snap.State),
	}
	for _, h := range snap.Hours {
		resp.Hours = append(resp.Hours, ForecastHour{
			Time:            Timestamp(h.Time),
			WaveHeight:      h.WaveHeight,
			WindSpeed:       h.WindSpeed,
			SeaSurfaceTemp:  h.SeaSurfaceTemp,
			SeaLevelHeight:  h.SeaLevelHeight,
			CurrentVelocity: h.CurrentVelocity,
			Suitable:        h.Suitable,
			Score:           h.Score,
			WaveOK:          h.WaveOK,
			WindOK:          h.WindOK,
			SSTOK:           h.SSTOK,
			CurrentOK:       h.CurrentOK,
			SlackOK:         h.SlackOK,
			Daylight:        h.Daylight,
		})
	}
	for _, t := range snap.HighTides {
		resp.HighTides = append(resp.HighTides, Timestamp(t))
	}
	return resp
}

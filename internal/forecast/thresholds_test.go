package forecast

import (
	"math"
	"testing"
)

func f(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name            string
		wave, wind, sst *float64
		want            bool
	}{
		{"all within limits", f(0.2), f(3.0), f(25), true},
		{"at the exact limits", f(0.3), f(4.5), f(22), true},
		{"sst at upper bound", f(0.1), f(2.0), f(29), true},
		{"wave too high", f(0.31), f(3.0), f(25), false},
		{"wind too strong", f(0.2), f(4.6), f(25), false},
		{"water too cold", f(0.2), f(3.0), f(21.9), false},
		{"water too warm", f(0.2), f(3.0), f(29.1), false},
		{"missing wave", nil, f(3.0), f(25), false},
		{"missing wind", f(0.2), nil, f(25), false},
		{"missing sst", f(0.2), f(3.0), nil, false},
		{"everything missing", nil, nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := th.Classify(tt.wave, tt.wind, tt.sst); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name            string
		wave, wind, sst *float64
		daylight        bool
		want            float64
	}{
		{"flat calm ideal water", f(0), f(0), f(25), true, 1},
		{"night scores zero", f(0), f(0), f(25), false, 0},
		{"missing metric scores zero", nil, f(0), f(25), true, 0},
		// wave 0.3/0.6 -> 0.5, others perfect
		{"wave at limit halves score", f(0.3), f(0), f(25), true, 0.5},
		// wind 4.5/9 -> 0.5
		{"wind at limit halves score", f(0), f(4.5), f(25), true, 0.5},
		// 2.5 degrees below range -> 0.5
		{"cold water falloff", f(0), f(0), f(19.5), true, 0.5},
		// 5 or more degrees outside -> 0
		{"freezing water scores zero", f(0), f(0), f(17), true, 0},
		{"boiling hot scores zero", f(0), f(0), f(34), true, 0},
		// product: 0.5 * 0.5 * 1
		{"metrics multiply", f(0.3), f(4.5), f(25), true, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := th.Score(tt.wave, tt.wind, tt.sst, tt.daylight)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreNeverNegative(t *testing.T) {
	th := DefaultThresholds()

	if got := th.Score(f(10), f(50), f(25), true); got != 0 {
		t.Errorf("Score() with extreme conditions = %v, want 0", got)
	}
}

func TestCoordinateKey(t *testing.T) {
	if got := CoordinateKey(36.9971234, -1.8961234); got != "36.997,-1.896" {
		t.Errorf("CoordinateKey() = %q", got)
	}
	// Rounding makes nearby coordinates share a key.
	if CoordinateKey(36.99701, -1.89599) != CoordinateKey(36.99699, -1.89601) {
		t.Error("expected nearby coordinates to share a key")
	}
}

package models

// ImportRegionRequest asks the importer to cover a region with tiles.
type ImportRegionRequest struct {
	Box  GeoBox `json:"box"`
	Zoom int    `json:"zoom,omitempty"`
}

// ImportRegionResponse reports how many tiles the request enqueued.
// Tiles already known from earlier requests are not counted again.
type ImportRegionResponse struct {
	TilesEnqueued int `json:"tilesEnqueued"`
}

// ImportBatchRequest asks the importer to work through pending tiles.
type ImportBatchRequest struct {
	BatchSize int `json:"batchSize,omitempty"`
}

// ImportBatchResponse reports the outcome of one import batch.
type ImportBatchResponse struct {
	Claimed   int `json:"claimed"`
	Imported  int `json:"imported"`
	Failed    int `json:"failed"`
	Spots     int `json:"spots"`
	Remaining int `json:"remaining"`
}

// RefreshResponse reports the outcome of a manually triggered cache refresh.
type RefreshResponse struct {
	Candidates int `json:"candidates"`
	Refreshed  int `json:"refreshed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

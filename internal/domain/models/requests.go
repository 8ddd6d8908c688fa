package models

// Requests for the HTTP API. Defined in domain so the CLI and the queue job can reuse them.

type BarsRequest struct {
	Ticker    string `query:"ticker" json:"ticker" validate:"required"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"1Day" validate:"oneof=1Min 5Min 15Min 30Min 1H 1Hour 1Day"`
	Start     string `query:"start" json:"start"`
	End       string `query:"end" json:"end"`
	Limit     int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=10000"`
}

type NewsRequest struct {
	Tickers string `query:"tickers" json:"tickers" validate:"required"`
	Limit   int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=50"`
}

type EnrichRequest struct {
	Bars []RawBar `json:"bars" validate:"required,min=1"`
}

type BuildEpisodesRequest struct {
	Bars      []RawBar `json:"bars" validate:"required,min=1"`
	Threshold float64  `json:"threshold" default:"0.05" validate:"gt=0,lt=1"`
}

// EpisodesQuery fetches bars for a ticker and builds episodes from them.
// A zero threshold means the timeframe policy decides.
type EpisodesQuery struct {
	Ticker    string  `query:"ticker" json:"ticker" validate:"required"`
	Timeframe string  `query:"timeframe" json:"timeframe" default:"1Day" validate:"oneof=1Min 5Min 15Min 30Min 1H 1Hour 1Day"`
	Start     string  `query:"start" json:"start"`
	End       string  `query:"end" json:"end"`
	Threshold float64 `query:"threshold" json:"threshold" validate:"gte=0,lt=1"`
}

type FeaturesRequest struct {
	Episodes []Episode `json:"episodes" validate:"required"`
	Strategy string    `json:"strategy" default:"sentinel" validate:"oneof=zero mean median sentinel"`
	Scaler   string    `json:"scaler"`
}

type PredictRequest struct {
	Ticker        string  `query:"ticker" json:"ticker" validate:"required"`
	Timeframe     string  `query:"timeframe" json:"timeframe" default:"1Day" validate:"oneof=1Min 5Min 15Min 30Min 1H 1Hour 1Day"`
	Start         string  `query:"start" json:"start"`
	End           string  `query:"end" json:"end"`
	Scaler        string  `query:"scaler" json:"scaler" default:"default"`
	MinConfidence float64 `query:"min_confidence" json:"min_confidence" validate:"gte=0,lte=1"`
}

type DatasetRequest struct {
	Tickers   []string `json:"tickers" validate:"required,min=1,dive,required"`
	Timeframe string   `json:"timeframe" default:"1Day" validate:"oneof=1Min 5Min 15Min 30Min 1H 1Hour 1Day"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Threshold float64  `json:"threshold" validate:"gte=0,lt=1"`
	Strategy  string   `json:"strategy" default:"sentinel" validate:"oneof=zero mean median sentinel"`
	Mode      string   `json:"mode" default:"direction" validate:"oneof=direction trend_quality"`
	Scaler    string   `json:"scaler" default:"default"`
}

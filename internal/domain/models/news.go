package models

import "time"

type NewsArticle struct {
	ID        int64     `json:"id"`
	Headline  string    `json:"headline"`
	Summary   string    `json:"summary"`
	Author    string    `json:"author"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Symbols   []string  `json:"symbols"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Prediction is the classifier verdict for one episode.
type Prediction struct {
	EpisodeID     string    `json:"episode_id"`
	Ticker        string    `json:"ticker"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Label         string    `json:"label"`
	ClassIndex    int       `json:"class_index"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float64 `json:"probabilities"`
}

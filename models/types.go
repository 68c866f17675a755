package models

import "time"

// Job states reported by the status endpoint and stored in the job store.
const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// RenderRequest represents a render submitted through the API
type RenderRequest struct {
	Lines            []string `json:"lines"`
	Script           string   `json:"script"`
	Title            string   `json:"title"`
	Voice            string   `json:"voice"`
	SpeakingSpeed    float64  `json:"speaking_speed"`
	StockKeywords    string   `json:"stock_keywords"`
	ShuffleMusic     bool     `json:"shuffle_music"`
	CrossfadeSeconds *float64 `json:"crossfade_seconds,omitempty"`
}

// RenderResponse returns the job ID
type RenderResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// StatusResponse returns current progress
type StatusResponse struct {
	Status      string  `json:"status"` // "processing", "completed", "failed"
	Progress    int     `json:"progress"`
	CurrentStep string  `json:"current_step"`
	VideoURL    *string `json:"video_url,omitempty"`
	SubtitleURL *string `json:"subtitle_url,omitempty"`
	Error       *string `json:"error,omitempty"`
}

// JobStatus tracks render progress; persisted by the job store
type JobStatus struct {
	JobID        string
	Status       string
	Progress     int
	CurrentStep  string
	VideoPath    string
	SubtitlePath string
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

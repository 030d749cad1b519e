package events

import "time"

// DownloadEvent is broadcast to observers on every stage transition of a
// download request.
type DownloadEvent struct {
	Type       string    `json:"type"` // "download.stage"
	DownloadID string    `json:"download_id"`
	StoryID    int64     `json:"story_id,omitempty"`
	Stage      string    `json:"stage"`
	Format     string    `json:"format,omitempty"`
	At         time.Time `json:"at"`
}

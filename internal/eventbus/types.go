package eventbus

import "time"

// Event is one entry of the activity feed.
type Event struct {
	ID        string         `json:"id"`
	Stream    string         `json:"stream"`
	RunID     string         `json:"run_id,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Body      string         `json:"body"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type EventInput struct {
	Stream   string
	RunID    string
	Subject  string
	Body     string
	Metadata map[string]any
	Payload  map[string]any
}

type ListOptions struct {
	Limit int
	Order string
	RunID string
}

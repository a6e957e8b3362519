package chat

import "time"

// Feedback is a user rating for one assistant reply, kept in a log separate
// from the transcript so messages stay immutable.
type Feedback struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	MessageIndex int       `json:"messageIndex"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ExportDocument bundles everything a session accumulated for download.
type ExportDocument struct {
	Session    Session    `json:"session"`
	Messages   []Message  `json:"messages"`
	Feedback   []Feedback `json:"feedback"`
	ExportedAt time.Time  `json:"exportedAt"`
}

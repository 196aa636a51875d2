package model

import (
	"time"
)

// ThreadMetadata identifies the conversation a request belongs to.
// For a not-yet-persisted conversation the ID is a locally generated
// placeholder until the first successful exchange.
type ThreadMetadata struct {
	ID string `json:"id"`
}

// ThreadSummary is one row of the remotely pushed thread list.
type ThreadSummary struct {
	ID            string `json:"threadId"`
	Title         string `json:"title"`
	Model         string `json:"model,omitempty"`
	Pinned        bool   `json:"pinned"`
	Visibility    string `json:"visibility,omitempty"`
	CreatedAt     int64  `json:"created_at,omitempty"`
	LastMessageAt int64  `json:"last_message_at"`
}

// LastMessageTime returns the last-activity timestamp as a time.Time.
func (t ThreadSummary) LastMessageTime() time.Time {
	return time.UnixMilli(t.LastMessageAt)
}

// Package model defines data structures for the chat client engine.
package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageStatus represents the lifecycle state of a message.
// Assistant messages move waiting -> streaming -> done; user messages
// are created done.
type MessageStatus string

const (
	StatusWaiting   MessageStatus = "waiting"
	StatusStreaming MessageStatus = "streaming"
	StatusDone      MessageStatus = "done"
)

// ModelParams are the generation parameters sent with a request.
type ModelParams struct {
	ReasoningEffort string `json:"reasoningEffort"`
	IncludeSearch   bool   `json:"includeSearch"`
}

// Preferences are the user's personalization settings forwarded to the
// chat endpoint verbatim.
type Preferences struct {
	Name           string `json:"name"`
	Occupation     string `json:"occupation"`
	SelectedTraits string `json:"selectedTraits"`
	AdditionalInfo string `json:"additionalInfo"`
}

// Message is one entry in a thread's ordered message sequence.
//
// Identifiers are client-assigned for user messages and remote-assigned
// for assistant messages once known. Content is append-only until the
// status becomes done; after that only a store snapshot may replace the
// message wholesale. Timestamps are integer milliseconds since epoch,
// matching the store's field encoding.
type Message struct {
	ID            string        `json:"messageId"`
	Content       string        `json:"content"`
	Role          Role          `json:"role"`
	Model         string        `json:"model"`
	Params        ModelParams   `json:"modelParams"`
	Status        MessageStatus `json:"status"`
	CreatedAt     int64         `json:"created_at"`
	UpdatedAt     int64         `json:"updated_at"`
	AttachmentIDs []string      `json:"attachmentIds"`
}

// Done reports whether the message is finalized.
func (m Message) Done() bool {
	return m.Status == StatusDone
}

// CreatedTime returns the creation timestamp as a time.Time.
func (m Message) CreatedTime() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

// NowMillis returns the current wall clock in the timestamp encoding
// used throughout the data model.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

package syncstore

import (
	"encoding/json"
)

// Client-to-server message types.
const (
	msgConnect     = "connect"
	msgSubscribe   = "subscribe"
	msgUnsubscribe = "unsubscribe"
	msgMutation    = "mutation"
	msgPong        = "pong"
)

// Server-to-client message types.
const (
	msgTransition     = "transition"
	msgMutationResult = "mutationResult"
	msgPing           = "ping"
	msgFatalError     = "error"
)

// clientMessage is the outbound envelope. Fields are populated per
// message type; the zero values are omitted on the wire.
type clientMessage struct {
	Type      string         `json:"type"`
	ID        uint64         `json:"id,omitempty"`
	UDFPath   string         `json:"udfPath,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	AuthToken string         `json:"authToken,omitempty"`
}

// serverMessage is the inbound envelope.
type serverMessage struct {
	Type          string               `json:"type"`
	ID            uint64               `json:"id,omitempty"`
	Subscriptions []subscriptionUpdate `json:"subscriptions,omitempty"`
	Success       bool                 `json:"success,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// subscriptionUpdate carries the full replacement value for one
// subscribed query. Each update supersedes the previous one entirely.
type subscriptionUpdate struct {
	ID    uint64          `json:"id"`
	Value json.RawMessage `json:"value"`
}

// Package store defines the boundary to the remote real-time store:
// a subscription/query/mutation triad the engine consumes without
// owning the transport's lifecycle details.
package store

import (
	"context"
	"errors"

	"github.com/streamline-ai/chat-client/internal/model"
)

// Remote function names. Every call additionally carries the session
// identifier.
const (
	FnThreadsGet     = "threads:get"
	FnThreadsSearch  = "threads:search"
	FnSetPinned      = "threads:setPinned"
	FnGetByThreadID  = "messages:getByThreadId"
	FnAppendMessages = "messages:addMessagesToThread"
)

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("store: client closed")

// Client is the consumed store interface. Subscriptions deliver full
// replacement snapshots; there is no exactly-once guarantee and missed
// intermediate states are acceptable, because each received value
// supersedes the previous one entirely. Channels close when the
// subscription ends.
//
// Mutations return their error to the caller; retry is the caller's
// concern.
type Client interface {
	// SubscribeThreads pushes the latest thread-summary list.
	SubscribeThreads(ctx context.Context) (<-chan []model.ThreadSummary, error)

	// SubscribeThreadMessages pushes the latest full message list for
	// one thread.
	SubscribeThreadMessages(ctx context.Context, threadID string) (<-chan []model.Message, error)

	// SearchThreads pushes thread summaries matching a query.
	SearchThreads(ctx context.Context, query string) (<-chan []model.ThreadSummary, error)

	// AppendMessages persists messages to a thread.
	AppendMessages(ctx context.Context, threadID string, msgs []model.Message) error

	// SetPinned toggles a thread's pinned flag.
	SetPinned(ctx context.Context, threadID string, pinned bool) error

	// Close tears down the transport.
	Close() error
}

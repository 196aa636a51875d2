// Package chat implements the conversation engine: the per-thread state
// reconciler, the send coordinator driving the streaming pipeline, and
// the thread directory grouping.
package chat

import (
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/streamline-ai/chat-client/internal/model"
	"github.com/streamline-ai/chat-client/internal/stream"
	"github.com/streamline-ai/chat-client/pkg/logger"
	"github.com/streamline-ai/chat-client/pkg/metrics"
)

// Reconciler owns the mutable message sequence for one thread. Two
// writers feed it: the live streaming pipeline and the remote store's
// snapshot pushes. Both paths hold the same mutex, and the snapshot
// merge compares by identifier only, so the writers commute as long as
// locally pending and remotely confirmed identifiers stay disjoint.
type Reconciler struct {
	mu       sync.Mutex
	messages []model.Message
	activeID string
	log      *logger.Logger
}

// NewReconciler creates an empty reconciler for one thread.
func NewReconciler(log *logger.Logger) *Reconciler {
	return &Reconciler{log: log}
}

// Append adds a message to the end of the local sequence.
func (r *Reconciler) Append(msg model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

// SetActiveResponse marks the identifier of the assistant message that
// incoming content deltas should target.
func (r *Reconciler) SetActiveResponse(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeID = id
}

// ActiveResponseID returns the currently tracked response identifier,
// or the empty string when no response is in flight.
func (r *Reconciler) ActiveResponseID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

// Apply mutates the message sequence according to one stream event.
// Events that do not match local state are dropped, never fatal.
func (r *Reconciler) Apply(ev stream.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := ev.(type) {
	case stream.ContentDelta:
		r.applyDelta(e)
	case stream.MessageAnnounced:
		r.applyAnnounce(e)
	case stream.Finish:
		r.applyFinish(e)
	default:
		// Rate-limit, provider-metadata and unknown events never
		// mutate the sequence; the coordinator surfaces them as
		// telemetry.
	}
}

// applyDelta appends a fragment to the last assistant message matching
// the active response identifier. A delta with no matching target is a
// tolerated out-of-order arrival, not a crash.
func (r *Reconciler) applyDelta(e stream.ContentDelta) {
	idx := r.activeIndex()
	if idx < 0 {
		metrics.DroppedDeltasTotal.Inc()
		r.log.Debug("dropped content delta with no active message",
			zap.String("active_id", r.activeID),
			zap.Int("fragment_len", len(e.Text)),
		)
		return
	}

	msg := &r.messages[idx]
	msg.Content += e.Text
	msg.Status = model.StatusStreaming
	msg.UpdatedAt = model.NowMillis()
}

// applyAnnounce rekeys the in-flight placeholder to the server-assigned
// identifier, which becomes authoritative for the rest of the stream.
// With no placeholder in a non-done state the announcement is advisory
// only.
func (r *Reconciler) applyAnnounce(e stream.MessageAnnounced) {
	idx := r.activeIndex()
	if idx < 0 {
		r.log.Debug("message id announced with no active placeholder",
			zap.String("message_id", e.MessageID),
		)
		return
	}
	if e.MessageID == "" || e.MessageID == r.activeID {
		return
	}

	r.messages[idx].ID = e.MessageID
	r.messages[idx].UpdatedAt = model.NowMillis()
	r.activeID = e.MessageID
}

// applyFinish finalizes the in-flight message. Usage and continuation
// data are informational and handled by the coordinator.
func (r *Reconciler) applyFinish(e stream.Finish) {
	idx := r.activeIndex()
	if idx < 0 {
		return
	}
	r.messages[idx].Status = model.StatusDone
	r.messages[idx].UpdatedAt = model.NowMillis()
	r.activeID = ""
}

// activeIndex returns the index of the last assistant message matching
// the active response identifier that is not yet done, or -1.
// Callers must hold the mutex.
func (r *Reconciler) activeIndex() int {
	if r.activeID == "" {
		return -1
	}
	for i := len(r.messages) - 1; i >= 0; i-- {
		m := r.messages[i]
		if m.Role == model.RoleAssistant && m.ID == r.activeID && !m.Done() {
			return i
		}
	}
	return -1
}

// ApplySnapshot merges a full-thread snapshot pushed by the remote
// store: the snapshot wins for every identifier present in both, a
// message present only locally is retained verbatim (the snapshot may
// lag behind the stream), and snapshot-only messages are added. The
// merged result is ordered by creation time ascending.
func (r *Reconciler) ApplySnapshot(snapshot []model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(snapshot))
	merged := make([]model.Message, 0, len(snapshot)+len(r.messages))
	for _, m := range snapshot {
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range r.messages {
		if _, ok := seen[m.ID]; !ok {
			merged = append(merged, m)
		}
	}

	slices.SortStableFunc(merged, func(a, b model.Message) int {
		switch {
		case a.CreatedAt < b.CreatedAt:
			return -1
		case a.CreatedAt > b.CreatedAt:
			return 1
		default:
			return 0
		}
	})

	r.messages = merged
	metrics.SnapshotMergesTotal.Inc()
}

// Messages returns a copy of the current sequence.
func (r *Reconciler) Messages() []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Len returns the current sequence length.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

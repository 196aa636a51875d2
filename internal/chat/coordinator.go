package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/streamline-ai/chat-client/internal/model"
	"github.com/streamline-ai/chat-client/internal/session"
	"github.com/streamline-ai/chat-client/internal/stream"
	"github.com/streamline-ai/chat-client/pkg/logger"
	"github.com/streamline-ai/chat-client/pkg/metrics"
)

// ErrSendInFlight is returned when a send is attempted while another
// one is still active on the same thread.
var ErrSendInFlight = errors.New("chat: a send is already in flight for this thread")

// ErrStoreAppend wraps a failed optimistic append. The local messages
// are kept; retrying the send is the caller's decision.
var ErrStoreAppend = errors.New("chat: persisting optimistic messages failed")

// Transport opens one streaming chat call.
type Transport interface {
	Stream(ctx context.Context, req *model.ChatRequest) (io.ReadCloser, error)
}

// Appender is the narrow store view the coordinator needs.
type Appender interface {
	AppendMessages(ctx context.Context, threadID string, msgs []model.Message) error
}

// EventHandler receives each decoded stream event in line order.
// Returning an error abandons the send; content already applied to the
// placeholder message is retained as-is.
type EventHandler func(ev stream.Event) error

// SendOptions control one send cycle.
type SendOptions struct {
	// Model overrides the session's selected model for this send.
	Model string

	// Upload means the chat endpoint itself persists the exchange.
	// When false the coordinator appends the optimistic user and
	// placeholder messages to the store before the network call, so
	// they are durable even though the response is appended
	// separately later.
	Upload bool
}

// Coordinator orchestrates one request/response cycle per call: it
// appends the optimistic messages, opens the network stream, and
// drives the decode -> map -> reconcile pipeline in a single ordered
// pass. At most one send is active per thread.
type Coordinator struct {
	transport Transport
	appender  Appender // nil when no store is configured
	sess      *session.Session
	rec       *Reconciler
	thread    model.ThreadMetadata
	log       *logger.Logger

	inFlight atomic.Bool
}

// NewCoordinator creates a coordinator for one conversation thread.
// An empty thread id gets a locally generated placeholder that stands
// in until the first successful exchange.
func NewCoordinator(transport Transport, appender Appender, sess *session.Session, thread model.ThreadMetadata, log *logger.Logger) *Coordinator {
	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	return &Coordinator{
		transport: transport,
		appender:  appender,
		sess:      sess,
		rec:       NewReconciler(log),
		thread:    thread,
		log:       log.WithThread(thread.ID),
	}
}

// Thread returns the thread metadata this coordinator is attached to.
func (c *Coordinator) Thread() model.ThreadMetadata {
	return c.thread
}

// Messages returns a copy of the thread's current message sequence.
func (c *Coordinator) Messages() []model.Message {
	return c.rec.Messages()
}

// ApplySnapshot merges a store-pushed snapshot into local state. Safe
// to call concurrently with an in-flight send.
func (c *Coordinator) ApplySnapshot(snapshot []model.Message) {
	c.rec.ApplySnapshot(snapshot)
}

// Send performs one full send cycle, invoking onEvent for every
// decoded stream event in line order. Empty input after trimming is a
// no-op, not an error. Transport failures terminate the operation with
// an error and leave the placeholder message in whatever partial state
// it reached.
func (c *Coordinator) Send(ctx context.Context, text string, opts SendOptions, onEvent EventHandler) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrSendInFlight
	}
	defer c.inFlight.Store(false)

	modelID := opts.Model
	if modelID == "" {
		modelID = model.DefaultModel().ID
	}

	tracer := otel.Tracer("chat")
	ctx, span := tracer.Start(ctx, "chat.send")
	span.SetAttributes(
		attribute.String("chat.model", modelID),
		attribute.String("chat.thread_id", c.thread.ID),
	)
	defer span.End()

	start := time.Now()
	err := c.send(ctx, text, modelID, opts, onEvent)
	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RecordSend(modelID, outcome, time.Since(start).Seconds())
	return err
}

func (c *Coordinator) send(ctx context.Context, text, modelID string, opts SendOptions, onEvent EventHandler) error {
	now := model.NowMillis()
	userMsg := model.Message{
		ID:            uuid.Must(uuid.NewV7()).String(),
		Content:       text,
		Role:          model.RoleUser,
		Model:         modelID,
		Params:        c.sess.ModelParams,
		Status:        model.StatusDone,
		CreatedAt:     now,
		UpdatedAt:     now,
		AttachmentIDs: []string{},
	}
	placeholder := model.Message{
		ID:            uuid.Must(uuid.NewV7()).String(),
		Role:          model.RoleAssistant,
		Model:         modelID,
		Params:        c.sess.ModelParams,
		Status:        model.StatusWaiting,
		CreatedAt:     now + 1,
		UpdatedAt:     now + 1,
		AttachmentIDs: []string{},
	}

	c.rec.Append(userMsg)
	c.rec.Append(placeholder)
	c.rec.SetActiveResponse(placeholder.ID)

	if !opts.Upload && c.appender != nil {
		if err := c.appender.AppendMessages(ctx, c.thread.ID, []model.Message{userMsg, placeholder}); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreAppend, err)
		}
	}

	req := c.buildRequest(placeholder.ID, modelID)
	body, err := c.transport.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer body.Close()

	return c.pump(ctx, body, modelID, onEvent)
}

// buildRequest converts the local history to the minimal wire shape.
// The waiting placeholder is excluded; its identifier travels as the
// responseMessageId instead.
func (c *Coordinator) buildRequest(responseID, modelID string) *model.ChatRequest {
	history := c.rec.Messages()
	wire := make([]model.WireMessage, 0, len(history))
	for _, m := range history {
		if m.ID == responseID {
			continue
		}
		wire = append(wire, m.Wire())
	}

	return &model.ChatRequest{
		Messages:          wire,
		ThreadMetadata:    c.thread,
		ResponseMessageID: responseID,
		Model:             modelID,
		ModelParams:       c.sess.ModelParams,
		Preferences:       c.sess.Preferences,
		UserInfo:          model.UserInfo{Timezone: c.sess.TimezoneName()},
		SessionID:         c.sess.ID,
	}
}

// pump reads the body line by line and feeds the pipeline. Frame order
// is preserved end to end; no fan-out happens across frames of one
// stream because later frames are only meaningful after the content
// before them has been applied.
func (c *Coordinator) pump(ctx context.Context, body io.Reader, modelID string, onEvent EventHandler) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		frame := stream.Classify(line)
		metrics.FramesTotal.WithLabelValues(string(frame.Kind)).Inc()

		ev := stream.MapFrame(frame)
		switch e := ev.(type) {
		case stream.Unknown:
			metrics.UnknownEventsTotal.Inc()
			c.log.Debug("unrecognized stream line", zap.String("raw", e.Raw))
		case stream.Finish:
			if e.Usage != nil {
				metrics.RecordUsage(modelID, e.Usage.PromptTokens, e.Usage.CompletionTokens)
			}
			c.log.Debug("stream finished", zap.String("reason", e.Reason))
		case stream.RateLimit:
			c.log.Info("rate limit update",
				zap.Int("remaining", e.Remaining),
				zap.Int("used", e.Used),
				zap.Int("max", e.Max),
			)
		}

		c.rec.Apply(ev)

		if onEvent != nil {
			if err := onEvent(ev); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading response stream: %w", err)
	}
	return nil
}

// SendAndCollect performs a send and returns the concatenation of all
// content fragments once the stream completes. Used by non-interactive
// callers.
func (c *Coordinator) SendAndCollect(ctx context.Context, text string, opts SendOptions) (string, error) {
	var sb strings.Builder
	err := c.Send(ctx, text, opts, func(ev stream.Event) error {
		if delta, ok := ev.(stream.ContentDelta); ok {
			sb.WriteString(delta.Text)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Package natsstore implements the store interface over NATS
// JetStream, for deployments that relay thread state through a
// self-hosted broker instead of the hosted sync endpoint. Messages and
// thread metadata are published to per-thread subjects; subscriptions
// fold the subject history into full snapshots, preserving the
// store contract of replacement pushes.
package natsstore

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/streamline-ai/chat-client/internal/model"
	"github.com/streamline-ai/chat-client/internal/store"
	"github.com/streamline-ai/chat-client/pkg/logger"
	"github.com/streamline-ai/chat-client/pkg/metrics"
)

const (
	// StreamName is the name of the thread relay stream.
	StreamName = "THREADS"

	// SubjectPrefix is the prefix for all relay subjects.
	SubjectPrefix = "chat"
)

// Config holds NATS connection configuration.
type Config struct {
	URL      string
	Token    string
	CAFile   string
	CertFile string
	KeyFile  string
}

// Store is a JetStream-backed store client scoped to one session.
type Store struct {
	conn      *nats.Conn
	js        jetstream.JetStream
	sessionID string
	log       *logger.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Connect establishes the NATS connection and ensures the relay stream
// exists.
func Connect(ctx context.Context, cfg Config, sessionID string, log *logger.Logger) (*Store, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			metrics.StoreReconnectsTotal.Inc()
			log.Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error("NATS error", zap.Error(err))
		}),
	}

	if cfg.CAFile != "" && cfg.CertFile != "" && cfg.KeyFile != "" {
		tlsConfig, err := createTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}

	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	s := &Store{
		conn:      nc,
		js:        js,
		sessionID: sessionID,
		log:       log,
		done:      make(chan struct{}),
	}
	if err := s.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureStream(ctx context.Context) error {
	if _, err := s.js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := s.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      365 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Relayed chat threads and messages",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

func (s *Store) messageSubject(threadID string) string {
	return fmt.Sprintf("%s.%s.msg.%s", SubjectPrefix, s.sessionID, threadID)
}

func (s *Store) metaSubject(threadID string) string {
	return fmt.Sprintf("%s.%s.meta.%s", SubjectPrefix, s.sessionID, threadID)
}

// metaEvent is a partial thread-summary update. Nil fields leave the
// folded summary's previous value intact.
type metaEvent struct {
	ThreadID      string  `json:"threadId"`
	Title         *string `json:"title,omitempty"`
	Pinned        *bool   `json:"pinned,omitempty"`
	LastMessageAt *int64  `json:"last_message_at,omitempty"`
}

// AppendMessages implements store.Client. Each message is published to
// the thread's message subject; a republished identifier supersedes
// the earlier record when snapshots are folded (last write wins).
func (s *Store) AppendMessages(ctx context.Context, threadID string, msgs []model.Message) error {
	err := s.appendMessages(ctx, threadID, msgs)
	metrics.RecordMutation(store.FnAppendMessages, err)
	return err
}

func (s *Store) appendMessages(ctx context.Context, threadID string, msgs []model.Message) error {
	var lastAt int64
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if _, err := s.js.Publish(ctx, s.messageSubject(threadID), data); err != nil {
			return fmt.Errorf("failed to publish message: %w", err)
		}
		if msg.CreatedAt > lastAt {
			lastAt = msg.CreatedAt
		}
	}
	if lastAt == 0 {
		return nil
	}
	return s.publishMeta(ctx, metaEvent{ThreadID: threadID, LastMessageAt: &lastAt})
}

// SetPinned implements store.Client.
func (s *Store) SetPinned(ctx context.Context, threadID string, pinned bool) error {
	err := s.publishMeta(ctx, metaEvent{ThreadID: threadID, Pinned: &pinned})
	metrics.RecordMutation(store.FnSetPinned, err)
	return err
}

func (s *Store) publishMeta(ctx context.Context, ev metaEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal meta event: %w", err)
	}
	if _, err := s.js.Publish(ctx, s.metaSubject(ev.ThreadID), data); err != nil {
		return fmt.Errorf("failed to publish meta event: %w", err)
	}
	return nil
}

// SubscribeThreadMessages implements store.Client. The subject history
// is folded by message identifier into a full snapshot, delivered
// after every change.
func (s *Store) SubscribeThreadMessages(ctx context.Context, threadID string) (<-chan []model.Message, error) {
	out := make(chan []model.Message, 1)

	var mu sync.Mutex
	order := make([]string, 0, 16)
	byID := make(map[string]model.Message, 16)

	err := consume(ctx, s, s.messageSubject(threadID), out, func(msg jetstream.Msg) ([]model.Message, bool) {
		var m model.Message
		if err := json.Unmarshal(msg.Data(), &m); err != nil {
			s.log.Warn("discarding undecodable relay message", zap.Error(err))
			return nil, false
		}

		mu.Lock()
		defer mu.Unlock()
		if _, ok := byID[m.ID]; !ok {
			order = append(order, m.ID)
		}
		byID[m.ID] = m

		snapshot := make([]model.Message, 0, len(order))
		for _, id := range order {
			snapshot = append(snapshot, byID[id])
		}
		return snapshot, true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubscribeThreads implements store.Client.
func (s *Store) SubscribeThreads(ctx context.Context) (<-chan []model.ThreadSummary, error) {
	return s.subscribeSummaries(ctx, "")
}

// SearchThreads implements store.Client. The relay backend filters the
// folded thread list by a case-insensitive title match.
func (s *Store) SearchThreads(ctx context.Context, query string) (<-chan []model.ThreadSummary, error) {
	return s.subscribeSummaries(ctx, query)
}

func (s *Store) subscribeSummaries(ctx context.Context, query string) (<-chan []model.ThreadSummary, error) {
	out := make(chan []model.ThreadSummary, 1)
	subject := fmt.Sprintf("%s.%s.meta.>", SubjectPrefix, s.sessionID)

	var mu sync.Mutex
	summaries := make(map[string]model.ThreadSummary, 16)

	err := consume(ctx, s, subject, out, func(msg jetstream.Msg) ([]model.ThreadSummary, bool) {
		var ev metaEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil || ev.ThreadID == "" {
			s.log.Warn("discarding undecodable meta event", zap.Error(err))
			return nil, false
		}

		mu.Lock()
		defer mu.Unlock()
		summary := summaries[ev.ThreadID]
		summary.ID = ev.ThreadID
		if ev.Title != nil {
			summary.Title = *ev.Title
		}
		if ev.Pinned != nil {
			summary.Pinned = *ev.Pinned
		}
		if ev.LastMessageAt != nil && *ev.LastMessageAt > summary.LastMessageAt {
			summary.LastMessageAt = *ev.LastMessageAt
		}
		summaries[ev.ThreadID] = summary

		snapshot := make([]model.ThreadSummary, 0, len(summaries))
		for _, sum := range summaries {
			if query != "" && !strings.Contains(strings.ToLower(sum.Title), strings.ToLower(query)) {
				continue
			}
			snapshot = append(snapshot, sum)
		}
		return snapshot, true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// consume runs an ephemeral all-history consumer on one subject and
// pushes folded snapshots to a latest-wins channel of capacity one: a
// newer snapshot displaces an unconsumed older one.
func consume[T any](ctx context.Context, s *Store, subject string, out chan []T, fold func(jetstream.Msg) ([]T, bool)) error {
	cons, err := s.js.CreateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		if snapshot, ok := fold(msg); ok {
			deliverLatest(out, snapshot)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		cc.Stop()
		close(out)
	}()
	return nil
}

func deliverLatest[T any](out chan []T, snapshot []T) {
	for {
		select {
		case out <- snapshot:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}

// Close implements store.Client.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.conn.Close()
	return nil
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

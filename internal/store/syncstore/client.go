// Package syncstore implements the remote real-time store over its
// websocket sync protocol: named subscription queries that push full
// replacement snapshots, plus request/response correlated mutations.
package syncstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/streamline-ai/chat-client/internal/model"
	"github.com/streamline-ai/chat-client/internal/session"
	"github.com/streamline-ai/chat-client/internal/store"
	"github.com/streamline-ai/chat-client/pkg/logger"
	"github.com/streamline-ai/chat-client/pkg/metrics"
)

// ErrMutationRejected is returned when the store reports a mutation
// failure.
var ErrMutationRejected = errors.New("syncstore: mutation rejected")

// Config holds sync client settings.
type Config struct {
	URL         string
	SessionID   string
	Creds       session.CredentialSource
	DialTimeout time.Duration
}

type subscription struct {
	id      uint64
	udfPath string
	args    map[string]any

	mu      sync.Mutex
	stopped bool
	deliver func(json.RawMessage)
}

func (s *subscription) push(value json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.deliver(value)
	}
}

func (s *subscription) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// Client is a websocket sync-protocol store client. It reconnects with
// exponential backoff and re-issues its subscriptions after each
// reconnect; subscribers simply receive the next full snapshot.
type Client struct {
	cfg Config
	log *logger.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  uint64
	subs    map[uint64]*subscription
	pending map[uint64]chan error

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects and authenticates against the sync endpoint.
func Dial(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync URL %q: %w", cfg.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid sync URL %q: unsupported scheme %q", cfg.URL, u.Scheme)
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 15 * time.Second
	}

	c := &Client{
		cfg:     cfg,
		log:     log,
		subs:    make(map[uint64]*subscription),
		pending: make(map[uint64]chan error),
		closed:  make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	go c.run()
	return c, nil
}

// connect dials, authenticates, and re-issues current subscriptions.
func (c *Client) connect(ctx context.Context) error {
	token, err := c.cfg.Creds.AccessToken()
	if err != nil {
		return fmt.Errorf("resolving credentials: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dialing sync endpoint: %w", err)
	}

	hello := clientMessage{
		Type:      msgConnect,
		SessionID: c.cfg.SessionID,
		AuthToken: token,
	}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return fmt.Errorf("sending connect message: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	resubscribe := make([]clientMessage, 0, len(c.subs))
	for _, sub := range c.subs {
		resubscribe = append(resubscribe, clientMessage{
			Type:    msgSubscribe,
			ID:      sub.id,
			UDFPath: sub.udfPath,
			Args:    sub.args,
		})
	}
	c.mu.Unlock()

	for _, msg := range resubscribe {
		if err := c.write(msg); err != nil {
			return err
		}
	}
	return nil
}

// run reads messages until the connection drops, then reconnects until
// the client is closed.
func (c *Client) run() {
	for {
		conn := c.currentConn()
		if conn != nil {
			c.readLoop(conn)
		}

		select {
		case <-c.closed:
			return
		default:
		}

		policy := backoff.WithContext(backoff.NewExponentialBackOff(), context.Background())
		err := backoff.Retry(func() error {
			select {
			case <-c.closed:
				return backoff.Permanent(store.ErrClosed)
			default:
			}
			metrics.StoreReconnectsTotal.Inc()
			return c.connect(context.Background())
		}, policy)
		if err != nil {
			return
		}
		c.log.Info("sync store reconnected")
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Warn("sync connection lost", zap.Error(err))
			}
			conn.Close()
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg serverMessage) {
	switch msg.Type {
	case msgTransition:
		c.mu.Lock()
		targets := make([]*subscription, 0, len(msg.Subscriptions))
		values := make([]json.RawMessage, 0, len(msg.Subscriptions))
		for _, update := range msg.Subscriptions {
			if sub, ok := c.subs[update.ID]; ok {
				targets = append(targets, sub)
				values = append(values, update.Value)
			}
		}
		c.mu.Unlock()
		for i, sub := range targets {
			sub.push(values[i])
		}

	case msgMutationResult:
		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.mu.Unlock()
		if ok {
			if msg.Success {
				ch <- nil
			} else {
				ch <- fmt.Errorf("%w: %s", ErrMutationRejected, msg.Error)
			}
		}

	case msgPing:
		_ = c.write(clientMessage{Type: msgPong})

	case msgFatalError:
		c.log.Error("sync store error", zap.String("error", msg.Error))
	}
}

func (c *Client) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) write(msg clientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return store.ErrClosed
	}
	return c.conn.WriteJSON(msg)
}

func (c *Client) args(extra map[string]any) map[string]any {
	args := map[string]any{"sessionId": c.cfg.SessionID}
	for k, v := range extra {
		args[k] = v
	}
	return args
}

// subscribe registers a query and returns its subscription handle.
func (c *Client) subscribe(udfPath string, args map[string]any, deliver func(json.RawMessage)) (*subscription, error) {
	select {
	case <-c.closed:
		return nil, store.ErrClosed
	default:
	}

	c.mu.Lock()
	c.nextID++
	sub := &subscription{
		id:      c.nextID,
		udfPath: udfPath,
		args:    args,
		deliver: deliver,
	}
	c.subs[sub.id] = sub
	c.mu.Unlock()

	err := c.write(clientMessage{
		Type:    msgSubscribe,
		ID:      sub.id,
		UDFPath: udfPath,
		Args:    args,
	})
	if err != nil {
		c.mu.Lock()
		delete(c.subs, sub.id)
		c.mu.Unlock()
		return nil, err
	}
	return sub, nil
}

func (c *Client) unsubscribe(sub *subscription) {
	sub.stop()
	c.mu.Lock()
	delete(c.subs, sub.id)
	c.mu.Unlock()
	_ = c.write(clientMessage{Type: msgUnsubscribe, ID: sub.id})
}

// subscribeSnapshots wires a typed latest-wins channel to a query
// subscription. The channel holds at most one pending snapshot; a
// newer one displaces it, matching the full-replacement contract.
func subscribeSnapshots[T any](c *Client, ctx context.Context, udfPath string, args map[string]any) (<-chan []T, error) {
	out := make(chan []T, 1)

	sub, err := c.subscribe(udfPath, args, func(value json.RawMessage) {
		var snapshot []T
		if err := json.Unmarshal(value, &snapshot); err != nil {
			c.log.Warn("discarding undecodable snapshot",
				zap.String("udf_path", udfPath),
				zap.Error(err),
			)
			return
		}
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
	})
	if err != nil {
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-c.closed:
		}
		c.unsubscribe(sub)
		close(out)
	}()

	return out, nil
}

// call issues a mutation and waits for its correlated result.
func (c *Client) call(ctx context.Context, udfPath string, args map[string]any) error {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan error, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	err := c.write(clientMessage{
		Type:    msgMutation,
		ID:      id,
		UDFPath: udfPath,
		Args:    args,
	})
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return err
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case <-c.closed:
		return store.ErrClosed
	}
}

// SubscribeThreads implements store.Client.
func (c *Client) SubscribeThreads(ctx context.Context) (<-chan []model.ThreadSummary, error) {
	return subscribeSnapshots[model.ThreadSummary](c, ctx, store.FnThreadsGet, c.args(nil))
}

// SubscribeThreadMessages implements store.Client.
func (c *Client) SubscribeThreadMessages(ctx context.Context, threadID string) (<-chan []model.Message, error) {
	return subscribeSnapshots[model.Message](c, ctx, store.FnGetByThreadID, c.args(map[string]any{"threadId": threadID}))
}

// SearchThreads implements store.Client.
func (c *Client) SearchThreads(ctx context.Context, query string) (<-chan []model.ThreadSummary, error) {
	return subscribeSnapshots[model.ThreadSummary](c, ctx, store.FnThreadsSearch, c.args(map[string]any{"query": query}))
}

// AppendMessages implements store.Client.
func (c *Client) AppendMessages(ctx context.Context, threadID string, msgs []model.Message) error {
	err := c.call(ctx, store.FnAppendMessages, c.args(map[string]any{
		"threadId": threadID,
		"messages": msgs,
	}))
	metrics.RecordMutation(store.FnAppendMessages, err)
	return err
}

// SetPinned implements store.Client.
func (c *Client) SetPinned(ctx context.Context, threadID string, pinned bool) error {
	err := c.call(ctx, store.FnSetPinned, c.args(map[string]any{
		"threadId": threadID,
		"pinned":   pinned,
	}))
	metrics.RecordMutation(store.FnSetPinned, err)
	return err
}

// Close implements store.Client.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		for id, ch := range c.pending {
			delete(c.pending, id)
			ch <- store.ErrClosed
		}
		c.mu.Unlock()
	})
	return nil
}

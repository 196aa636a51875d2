package syncstore_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamline-ai/chat-client/internal/model"
	"github.com/streamline-ai/chat-client/internal/session"
	"github.com/streamline-ai/chat-client/internal/store/syncstore"
	"github.com/streamline-ai/chat-client/pkg/logger"
)

// wireMessage mirrors the protocol envelope loosely for test servers.
type wireMessage map[string]any

func newSyncServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, srv *httptest.Server) *syncstore.Client {
	t.Helper()
	client, err := syncstore.Dial(context.Background(), syncstore.Config{
		URL:       wsURL(srv),
		SessionID: "session-1",
		Creds:     session.StaticToken("tok-1"),
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	var msg wireMessage
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestDialSendsConnect(t *testing.T) {
	got := make(chan wireMessage, 1)
	srv := newSyncServer(t, func(conn *websocket.Conn) {
		got <- readMessage(t, conn)
		// Keep the connection open until the client closes it.
		conn.ReadMessage()
	})
	defer srv.Close()

	dial(t, srv)

	msg := <-got
	assert.Equal(t, "connect", msg["type"])
	assert.Equal(t, "session-1", msg["sessionId"])
	assert.Equal(t, "tok-1", msg["authToken"])
}

func TestSubscribeThreadsReceivesSnapshots(t *testing.T) {
	srv := newSyncServer(t, func(conn *websocket.Conn) {
		readMessage(t, conn) // connect

		sub := readMessage(t, conn)
		assert.Equal(t, "subscribe", sub["type"])
		assert.Equal(t, "threads:get", sub["udfPath"])
		args, _ := sub["args"].(map[string]any)
		assert.Equal(t, "session-1", args["sessionId"])

		snapshot, _ := json.Marshal([]model.ThreadSummary{
			{ID: "t1", Title: "first", Pinned: true, LastMessageAt: 1000},
			{ID: "t2", Title: "second", LastMessageAt: 2000},
		})
		conn.WriteJSON(wireMessage{
			"type": "transition",
			"subscriptions": []wireMessage{
				{"id": sub["id"], "value": json.RawMessage(snapshot)},
			},
		})
		conn.ReadMessage()
	})
	defer srv.Close()

	client := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	threads, err := client.SubscribeThreads(ctx)
	require.NoError(t, err)

	select {
	case snapshot := <-threads:
		require.Len(t, snapshot, 2)
		assert.Equal(t, "t1", snapshot[0].ID)
		assert.True(t, snapshot[0].Pinned)
		assert.Equal(t, "second", snapshot[1].Title)
	case <-ctx.Done():
		t.Fatal("timed out waiting for snapshot")
	}
}

func TestSubscriptionChannelClosesOnCancel(t *testing.T) {
	srv := newSyncServer(t, func(conn *websocket.Conn) {
		readMessage(t, conn) // connect
		readMessage(t, conn) // subscribe
		conn.ReadMessage()
	})
	defer srv.Close()

	client := dial(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := client.SubscribeThreadMessages(ctx, "t1")
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok, "channel closes when the subscription ends")
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close")
	}
}

func TestAppendMessagesMutation(t *testing.T) {
	srv := newSyncServer(t, func(conn *websocket.Conn) {
		readMessage(t, conn) // connect

		mut := readMessage(t, conn)
		assert.Equal(t, "mutation", mut["type"])
		assert.Equal(t, "messages:addMessagesToThread", mut["udfPath"])
		args, _ := mut["args"].(map[string]any)
		assert.Equal(t, "t1", args["threadId"])

		conn.WriteJSON(wireMessage{
			"type":    "mutationResult",
			"id":      mut["id"],
			"success": true,
		})
		conn.ReadMessage()
	})
	defer srv.Close()

	client := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := client.AppendMessages(ctx, "t1", []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "hi", Status: model.StatusDone},
	})
	require.NoError(t, err)
}

func TestSetPinnedRejection(t *testing.T) {
	srv := newSyncServer(t, func(conn *websocket.Conn) {
		readMessage(t, conn) // connect

		mut := readMessage(t, conn)
		assert.Equal(t, "threads:setPinned", mut["udfPath"])
		conn.WriteJSON(wireMessage{
			"type":    "mutationResult",
			"id":      mut["id"],
			"success": false,
			"error":   "no such thread",
		})
		conn.ReadMessage()
	})
	defer srv.Close()

	client := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := client.SetPinned(ctx, "missing", true)
	require.ErrorIs(t, err, syncstore.ErrMutationRejected)
	assert.Contains(t, err.Error(), "no such thread")
}

func TestDialRejectsBadURL(t *testing.T) {
	_, err := syncstore.Dial(context.Background(), syncstore.Config{
		URL:       "https://not-a-websocket",
		SessionID: "s",
		Creds:     session.StaticToken("tok"),
	}, logger.Nop())
	require.Error(t, err)
}

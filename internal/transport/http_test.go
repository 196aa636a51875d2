package transport_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamline-ai/chat-client/internal/model"
	"github.com/streamline-ai/chat-client/internal/session"
	"github.com/streamline-ai/chat-client/internal/transport"
	"github.com/streamline-ai/chat-client/pkg/logger"
)

func chatRequest() *model.ChatRequest {
	return &model.ChatRequest{
		Messages:          []model.WireMessage{{ID: "u1", Content: "hi", Role: model.RoleUser, Attachments: []string{}}},
		ThreadMetadata:    model.ThreadMetadata{ID: "t1"},
		ResponseMessageID: "a1",
		Model:             "gpt-4.1",
		SessionID:         "s1",
	}
}

func TestStream(t *testing.T) {
	var gotContentType, gotCookie string
	var gotBody model.ChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if c, err := r.Cookie("access_token"); err == nil {
			gotCookie = c.Value
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "0:\"streamed\"\ne:{\"finishReason\":\"stop\"}\n")
	}))
	defer srv.Close()

	client, err := transport.NewClient(srv.URL, session.StaticToken("tok-123"), 5*time.Second, logger.Nop())
	require.NoError(t, err)

	body, err := client.Stream(context.Background(), chatRequest())
	require.NoError(t, err)
	defer body.Close()

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `0:"streamed"`)

	assert.Equal(t, "text/plain;charset=UTF-8", gotContentType)
	assert.Equal(t, "tok-123", gotCookie)
	assert.Equal(t, "t1", gotBody.ThreadMetadata.ID)
	assert.Equal(t, "a1", gotBody.ResponseMessageID)
}

func TestStreamNon2xxSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "rate limited, slow down")
	}))
	defer srv.Close()

	client, err := transport.NewClient(srv.URL, session.StaticToken("tok"), 5*time.Second, logger.Nop())
	require.NoError(t, err)

	_, err = client.Stream(context.Background(), chatRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited, slow down")
}

func TestStreamCredentialFailure(t *testing.T) {
	client, err := transport.NewClient("https://example.com/api/chat", session.StaticToken(""), 5*time.Second, logger.Nop())
	require.NoError(t, err)

	_, err = client.Stream(context.Background(), chatRequest())
	require.ErrorIs(t, err, session.ErrNoToken)
}

func TestNewClientRejectsBadEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
	}{
		{name: "garbage URL", endpoint: "://not-a-url"},
		{name: "unsupported scheme", endpoint: "ftp://example.com/chat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := transport.NewClient(tt.endpoint, session.StaticToken("tok"), time.Second, logger.Nop())
			require.Error(t, err)
		})
	}
}

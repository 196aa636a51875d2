// Package transport implements the streaming HTTP call to the chat
// endpoint.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/streamline-ai/chat-client/internal/model"
	"github.com/streamline-ai/chat-client/internal/session"
	"github.com/streamline-ai/chat-client/pkg/logger"
)

// The endpoint expects the JSON body declared as plain text and the
// access token in a cookie rather than an Authorization header.
const contentType = "text/plain;charset=UTF-8"

// Client posts chat requests and returns the raw line-delimited
// response body for the caller to decode.
type Client struct {
	endpoint   string
	creds      session.CredentialSource
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient validates the endpoint URL up front so a malformed
// configuration fails at startup, not mid-send.
func NewClient(endpoint string, creds session.CredentialSource, timeout time.Duration, log *logger.Logger) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid chat endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid chat endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}

	return &Client{
		endpoint:   endpoint,
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

// Stream opens one streaming chat call and returns the response body.
// The caller owns closing it. A non-2xx status is surfaced as an error
// carrying the response body as diagnostic text.
func (c *Client) Stream(ctx context.Context, req *model.ChatRequest) (io.ReadCloser, error) {
	token, err := c.creds.AccessToken()
	if err != nil {
		return nil, fmt.Errorf("resolving credentials: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.AddCookie(&http.Cookie{Name: "access_token", Value: token})

	c.log.Debug("opening chat stream",
		zap.String("model", req.Model),
		zap.Int("history_len", len(req.Messages)),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		diag, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		resp.Body.Close()
		return nil, fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, diag)
	}

	return resp.Body, nil
}

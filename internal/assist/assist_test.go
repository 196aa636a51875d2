package assist_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamline-ai/chat-client/internal/assist"
	"github.com/streamline-ai/chat-client/internal/chat"
	"github.com/streamline-ai/chat-client/internal/model"
)

type stubSender struct {
	reply    string
	err      error
	lastText string
	lastOpts chat.SendOptions
}

func (s *stubSender) SendAndCollect(ctx context.Context, text string, opts chat.SendOptions) (string, error) {
	s.lastText = text
	s.lastOpts = opts
	return s.reply, s.err
}

func TestAsk(t *testing.T) {
	s := &stubSender{reply: "42"}

	got, err := assist.Ask(context.Background(), s, assist.Request{
		Model:         "gpt-4.1",
		Message:       "meaning of life?",
		SaveToHistory: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "42", got)
	assert.Equal(t, "meaning of life?", s.lastText)
	assert.Equal(t, "gpt-4.1", s.lastOpts.Model)

	// Saving to history routes through the explicit store append.
	assert.False(t, s.lastOpts.Upload)
}

func TestAskThrowawayExchange(t *testing.T) {
	s := &stubSender{reply: "ok"}

	_, err := assist.Ask(context.Background(), s, assist.Request{
		Message:       "don't keep this",
		SaveToHistory: false,
	})
	require.NoError(t, err)
	assert.True(t, s.lastOpts.Upload)
}

func TestAskDefaultsModel(t *testing.T) {
	s := &stubSender{}

	_, err := assist.Ask(context.Background(), s, assist.Request{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultModel().ID, s.lastOpts.Model)
}

func TestAskUnknownModel(t *testing.T) {
	s := &stubSender{}

	_, err := assist.Ask(context.Background(), s, assist.Request{
		Model:   "made-up-model",
		Message: "hi",
	})
	assert.ErrorIs(t, err, assist.ErrUnknownModel)
}

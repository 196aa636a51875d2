// Package assist is the single-shot invocation surface: one question
// in, one aggregated answer out. It depends only on the coordinator's
// public contract.
package assist

import (
	"context"
	"errors"
	"fmt"

	"github.com/streamline-ai/chat-client/internal/chat"
	"github.com/streamline-ai/chat-client/internal/model"
)

// ErrUnknownModel is returned when the requested model is not in the
// catalog.
var ErrUnknownModel = errors.New("assist: unknown model")

// Sender is the coordinator capability Ask needs.
type Sender interface {
	SendAndCollect(ctx context.Context, text string, opts chat.SendOptions) (string, error)
}

// Request is one single-shot ask.
type Request struct {
	Model         string
	Message       string
	SaveToHistory bool
}

// Ask runs one full send cycle and returns the final aggregated text.
// Saving to history routes through the store's explicit append
// (upload=false); a throwaway exchange relies on the endpoint alone and
// leaves no store record.
func Ask(ctx context.Context, s Sender, req Request) (string, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = model.DefaultModel().ID
	} else if _, ok := model.LookupModel(modelID); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}

	return s.SendAndCollect(ctx, req.Message, chat.SendOptions{
		Model:  modelID,
		Upload: !req.SaveToHistory,
	})
}

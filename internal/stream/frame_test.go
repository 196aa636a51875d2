package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamline-ai/chat-client/internal/stream"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantKind    stream.FrameKind
		wantPayload string
	}{
		{
			name:        "content frame",
			line:        `0:"Hello"`,
			wantKind:    stream.FrameContent,
			wantPayload: `"Hello"`,
		},
		{
			name:        "message id frame",
			line:        `f:{"messageId":"m1"}`,
			wantKind:    stream.FrameMessageID,
			wantPayload: `{"messageId":"m1"}`,
		},
		{
			name:        "finish frame e",
			line:        `e:{"finishReason":"stop"}`,
			wantKind:    stream.FrameFinish,
			wantPayload: `{"finishReason":"stop"}`,
		},
		{
			name:        "finish frame d",
			line:        `d:{"finishReason":"stop"}`,
			wantKind:    stream.FrameFinish,
			wantPayload: `{"finishReason":"stop"}`,
		},
		{
			name:        "metadata frame",
			line:        `2:[{"type":"ratelimit","content":"{}"}]`,
			wantKind:    stream.FrameMetadata,
			wantPayload: `[{"type":"ratelimit","content":"{}"}]`,
		},
		{
			name:     "unknown tag",
			line:     `x:{"whatever":true}`,
			wantKind: stream.FrameUnrecognized,
		},
		{
			name:     "no tag at all",
			line:     "garbage",
			wantKind: stream.FrameUnrecognized,
		},
		{
			name:     "tag with empty remainder",
			line:     "0:",
			wantKind: stream.FrameUnrecognized,
		},
		{
			name:     "single character",
			line:     "0",
			wantKind: stream.FrameUnrecognized,
		},
		{
			name:     "empty line",
			line:     "",
			wantKind: stream.FrameUnrecognized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := stream.Classify(tt.line)
			assert.Equal(t, tt.wantKind, f.Kind)
			assert.Equal(t, tt.wantPayload, f.Payload)
			assert.Equal(t, tt.line, f.Raw)
		})
	}
}

func TestDecodeBody(t *testing.T) {
	body := "f:{\"messageId\":\"m1\"}\n\n0:\"Hello\"\r\n0:\" world\"\ne:{\"finishReason\":\"stop\"}\n"

	frames := stream.DecodeBody(body)
	require.Len(t, frames, 4, "empty lines are discarded")

	assert.Equal(t, stream.FrameMessageID, frames[0].Kind)
	assert.Equal(t, stream.FrameContent, frames[1].Kind)
	assert.Equal(t, stream.FrameContent, frames[2].Kind)
	assert.Equal(t, stream.FrameFinish, frames[3].Kind)

	// Original line order is preserved.
	assert.Equal(t, `"Hello"`, frames[1].Payload)
	assert.Equal(t, `" world"`, frames[2].Payload)
}

func TestDecodeBodyEmpty(t *testing.T) {
	assert.Empty(t, stream.DecodeBody(""))
	assert.Empty(t, stream.DecodeBody("\n\n\n"))
}

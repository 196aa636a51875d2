package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamline-ai/chat-client/internal/stream"
)

func TestMapLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want stream.Event
	}{
		{
			name: "content delta",
			line: `0:"Hello world"`,
			want: stream.ContentDelta{Text: "Hello world"},
		},
		{
			name: "content delta with escapes",
			line: `0:"line one\nline two"`,
			want: stream.ContentDelta{Text: "line one\nline two"},
		},
		{
			name: "message id",
			line: `f:{"messageId":"m1"}`,
			want: stream.MessageAnnounced{MessageID: "m1"},
		},
		{
			name: "finish with usage",
			line: `e:{"finishReason":"stop","usage":{"promptTokens":12,"completionTokens":34},"isContinued":false}`,
			want: stream.Finish{
				Reason:      "stop",
				Usage:       &stream.Usage{PromptTokens: 12, CompletionTokens: 34},
				IsContinued: boolPtr(false),
			},
		},
		{
			name: "delta-end without usage",
			line: `d:{"finishReason":"stop"}`,
			want: stream.Finish{Reason: "stop"},
		},
		{
			name: "rate limit metadata",
			line: `2:[{"type":"ratelimit","content":"{\"remaining\":5,\"used\":95,\"max\":100,\"consume\":\"x\"}"}]`,
			want: stream.RateLimit{Remaining: 5, Used: 95, Max: 100, Consume: "x"},
		},
		{
			name: "provider metadata",
			line: `2:[{"type":"provider-metadata","content":"{\"google\":{}}"}]`,
			want: stream.ProviderMetadata{Type: "provider-metadata", Content: `{"google":{}}`},
		},
		{
			name: "content that is not a JSON string",
			line: `0:{"oops":true}`,
			want: stream.Unknown{Raw: `0:{"oops":true}`},
		},
		{
			name: "message id frame missing the id",
			line: `f:{}`,
			want: stream.Unknown{Raw: `f:{}`},
		},
		{
			name: "finish with malformed JSON",
			line: `e:{"finishReason":`,
			want: stream.Unknown{Raw: `e:{"finishReason":`},
		},
		{
			name: "metadata with empty array",
			line: `2:[]`,
			want: stream.Unknown{Raw: `2:[]`},
		},
		{
			name: "metadata with unknown type",
			line: `2:[{"type":"mystery","content":"{}"}]`,
			want: stream.Unknown{Raw: `2:[{"type":"mystery","content":"{}"}]`},
		},
		{
			name: "ratelimit with garbled nested content",
			line: `2:[{"type":"ratelimit","content":"not json"}]`,
			want: stream.Unknown{Raw: `2:[{"type":"ratelimit","content":"not json"}]`},
		},
		{
			name: "unrecognized line",
			line: "garbage",
			want: stream.Unknown{Raw: "garbage"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stream.MapLine(tt.line))
		})
	}
}

// Mapping is a pure function of the line: the same input always yields
// the same event.
func TestMapLineDeterministic(t *testing.T) {
	lines := []string{
		`0:"Hello"`,
		`f:{"messageId":"m1"}`,
		`e:{"finishReason":"stop"}`,
		"garbage",
	}
	for _, line := range lines {
		first := stream.MapLine(line)
		second := stream.MapLine(line)
		require.Equal(t, first, second, "line %q", line)
	}
}

func boolPtr(b bool) *bool { return &b }

// Package stream decodes the chat service's line-delimited response
// protocol into typed events.
//
// Each line of a response body is a frame: a two-character tag followed
// by a JSON payload. Decoding is best-effort end to end; a line that
// cannot be classified or parsed is preserved as raw text instead of
// failing the stream.
package stream

import (
	"strings"
)

// FrameKind classifies a frame by its tag.
type FrameKind string

const (
	FrameContent      FrameKind = "content"      // 0: content fragment
	FrameMessageID    FrameKind = "message_id"   // f: id of the message now streaming
	FrameFinish       FrameKind = "finish"       // e: / d: stream end marker
	FrameMetadata     FrameKind = "metadata"     // 2: out-of-band metadata array
	FrameUnrecognized FrameKind = "unrecognized" // anything else
)

// Frame is a single classified line of the raw stream. It exists only
// during decode and is not retained.
type Frame struct {
	Kind    FrameKind
	Tag     string
	Payload string
	Raw     string
}

// Classify maps one line to a frame by its two-character tag prefix.
// Unknown tags and empty payloads yield an unrecognized frame; this
// never fails.
func Classify(line string) Frame {
	f := Frame{Kind: FrameUnrecognized, Raw: line}
	if len(line) < 3 {
		return f
	}

	tag := line[:2]
	payload := line[2:]

	switch tag {
	case "0:":
		f.Kind = FrameContent
	case "f:":
		f.Kind = FrameMessageID
	case "e:", "d:":
		f.Kind = FrameFinish
	case "2:":
		f.Kind = FrameMetadata
	default:
		return f
	}

	f.Tag = tag
	f.Payload = payload
	return f
}

// DecodeBody splits a complete response body into frames, dropping
// empty lines and preserving original order.
func DecodeBody(body string) []Frame {
	lines := strings.Split(body, "\n")
	frames := make([]Frame, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		frames = append(frames, Classify(line))
	}
	return frames
}

package stream

import (
	"encoding/json"
)

const (
	metadataTypeRateLimit = "ratelimit"
	metadataTypeProvider  = "provider-metadata"
)

type messageIDPayload struct {
	MessageID string `json:"messageId"`
}

type finishPayload struct {
	FinishReason string `json:"finishReason"`
	Usage        *Usage `json:"usage"`
	IsContinued  *bool  `json:"isContinued"`
}

type metadataWrapper struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// MapFrame converts a classified frame into an event by parsing its
// JSON payload. A decode failure at any stage, for any tag, degrades to
// Unknown carrying the original raw line; mapping never fails.
func MapFrame(f Frame) Event {
	switch f.Kind {
	case FrameContent:
		var text string
		if err := json.Unmarshal([]byte(f.Payload), &text); err != nil {
			return Unknown{Raw: f.Raw}
		}
		return ContentDelta{Text: text}

	case FrameMessageID:
		var p messageIDPayload
		if err := json.Unmarshal([]byte(f.Payload), &p); err != nil || p.MessageID == "" {
			return Unknown{Raw: f.Raw}
		}
		return MessageAnnounced{MessageID: p.MessageID}

	case FrameFinish:
		var p finishPayload
		if err := json.Unmarshal([]byte(f.Payload), &p); err != nil || p.FinishReason == "" {
			return Unknown{Raw: f.Raw}
		}
		return Finish{Reason: p.FinishReason, Usage: p.Usage, IsContinued: p.IsContinued}

	case FrameMetadata:
		return mapMetadata(f)

	default:
		return Unknown{Raw: f.Raw}
	}
}

// mapMetadata inspects only the first element of the metadata array.
// The ratelimit variant nests a second JSON document inside the content
// string.
func mapMetadata(f Frame) Event {
	var wrappers []metadataWrapper
	if err := json.Unmarshal([]byte(f.Payload), &wrappers); err != nil || len(wrappers) == 0 {
		return Unknown{Raw: f.Raw}
	}

	first := wrappers[0]
	switch first.Type {
	case metadataTypeRateLimit:
		var rl RateLimit
		if err := json.Unmarshal([]byte(first.Content), &rl); err != nil {
			return Unknown{Raw: f.Raw}
		}
		return rl
	case metadataTypeProvider:
		return ProviderMetadata{Type: first.Type, Content: first.Content}
	default:
		return Unknown{Raw: f.Raw}
	}
}

// MapLine is the composed classify-then-map step for one line.
func MapLine(line string) Event {
	return MapFrame(Classify(line))
}

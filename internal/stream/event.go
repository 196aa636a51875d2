package stream

// Event is the semantically decoded form of a frame. The set of
// implementations is closed; consumers switch on the concrete type.
type Event interface {
	streamEvent()
}

// ContentDelta carries a text fragment to append to the message
// currently streaming.
type ContentDelta struct {
	Text string
}

// MessageAnnounced assigns the identifier of the message now streaming.
type MessageAnnounced struct {
	MessageID string
}

// Usage carries token counts reported at stream end.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// Finish marks the end of a stream or of one delta section within it.
type Finish struct {
	Reason      string
	Usage       *Usage
	IsContinued *bool
}

// RateLimit carries quota information pushed out-of-band.
type RateLimit struct {
	Remaining int    `json:"remaining"`
	Used      int    `json:"used"`
	Max       int    `json:"max"`
	Consume   string `json:"consume"`
}

// ProviderMetadata is an out-of-band metadata wrapper surfaced
// unchanged to the caller.
type ProviderMetadata struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Unknown preserves a line that could not be decoded. This is the
// designed degrade path, not an error.
type Unknown struct {
	Raw string
}

func (ContentDelta) streamEvent()     {}
func (MessageAnnounced) streamEvent() {}
func (Finish) streamEvent()           {}
func (RateLimit) streamEvent()        {}
func (ProviderMetadata) streamEvent() {}
func (Unknown) streamEvent()          {}

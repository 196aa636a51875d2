package model

// WireMessage is the minimal message shape the chat endpoint expects in
// the request history.
type WireMessage struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Role        Role     `json:"role"`
	Attachments []string `json:"attachments"`
}

// UserInfo carries locale information with the request.
type UserInfo struct {
	Timezone string `json:"timezone"`
}

// ChatRequest is the outbound body of one streaming chat call.
type ChatRequest struct {
	Messages          []WireMessage  `json:"messages"`
	ThreadMetadata    ThreadMetadata `json:"threadMetadata"`
	ResponseMessageID string         `json:"responseMessageId"`
	Model             string         `json:"model"`
	ModelParams       ModelParams    `json:"modelParams"`
	Preferences       Preferences    `json:"preferences"`
	UserInfo          UserInfo       `json:"userInfo"`
	SessionID         string         `json:"sessionId"`
}

// Wire converts a message to the request history shape.
func (m Message) Wire() WireMessage {
	attachments := m.AttachmentIDs
	if attachments == nil {
		attachments = []string{}
	}
	return WireMessage{
		ID:          m.ID,
		Content:     m.Content,
		Role:        m.Role,
		Attachments: attachments,
	}
}

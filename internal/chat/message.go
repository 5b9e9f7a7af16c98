package chat

import (
	"time"

	"github.com/google/uuid"
)

// ContentType discriminates what a chat message carries.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// Message is a single chat message. The JSON shape doubles as the wire
// representation used in chat broadcasts and history replays.
type Message struct {
	ID          uuid.UUID   `json:"-"`
	Sender      string      `json:"sender"`
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content"`
	SentTime    time.Time   `json:"sentTime"`
	System      bool        `json:"system,omitempty"`
}

// NewSystemMessage builds a server-originated message, e.g. join notices.
func NewSystemMessage(content string, sentTime time.Time) Message {
	return Message{
		ID:          uuid.New(),
		Sender:      "System",
		ContentType: ContentTypeText,
		Content:     content,
		SentTime:    sentTime,
		System:      true,
	}
}

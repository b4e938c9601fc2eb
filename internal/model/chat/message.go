package chat

import "time"

// Message persists individual turns for the session transcript.
type Message struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"sessionId"`
	Sender      string       `json:"sender"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

package chat

import "time"

// Session captures a transient anonymous conversation with the tutor.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

package chat

import (
	"encoding/base64"
	"fmt"
)

// Display and size hints carried by uploaded attachments, mirroring what
// the chat frontend expects for rendering.
const (
	DisplayInline = "inline"
	SizeLarge     = "large"
)

// Attachment is an image bound to a message. The raw bytes are held in
// memory for the lifetime of the transcript; they are never written back
// to disk after upload handling completes.
type Attachment struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	MIME    string `json:"mime"`
	Display string `json:"display"`
	Size    string `json:"size"`
	Data    []byte `json:"-"`
}

// DataURI renders the attachment as a data URI suitable for an <img> tag
// or a multimodal model input.
func (a Attachment) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", a.MIME, base64.StdEncoding.EncodeToString(a.Data))
}

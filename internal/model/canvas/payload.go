package canvas

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Payload is a visual destined for the sketchpad: raw image bytes plus a
// declared media type. Transient; encoded for transport and discarded
// after send.
type Payload struct {
	Data      []byte
	MediaType string
}

// DataURI serializes the payload for the sketchpad frame protocol.
func (p Payload) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", p.MediaType, base64.StdEncoding.EncodeToString(p.Data))
}

// ParseDataURI decodes a "data:<mime>;base64,<data>" URI back into a
// payload. Returns false for any other URI shape.
func ParseDataURI(uri string) (Payload, bool) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return Payload{}, false
	}

	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok {
		return Payload{}, false
	}

	mediaType, found := strings.CutSuffix(meta, ";base64")
	if !found {
		return Payload{}, false
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, false
	}

	return Payload{Data: data, MediaType: mediaType}, true
}

// FromMessage extracts the image parts of a model reply as deliverable
// payloads. Only inline data URIs are considered; remote URLs are skipped
// since the sketchpad frame renders data URIs directly.
func FromMessage(msg *schema.Message) []Payload {
	if msg == nil {
		return nil
	}

	var payloads []Payload
	for _, part := range msg.MultiContent {
		if part.Type != schema.ChatMessagePartTypeImageURL || part.ImageURL == nil {
			continue
		}
		if payload, ok := ParseDataURI(part.ImageURL.URL); ok {
			payloads = append(payloads, payload)
		}
	}
	return payloads
}

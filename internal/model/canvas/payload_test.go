package canvas_test

import (
	"bytes"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/13point5/mit-interactive-sketchpad/internal/model/canvas"
)

func TestDataURIRoundTrip(t *testing.T) {
	original := canvas.Payload{
		Data:      []byte("\x89PNG\r\n\x1a\npixels"),
		MediaType: "image/png",
	}

	parsed, ok := canvas.ParseDataURI(original.DataURI())
	if !ok {
		t.Fatal("expected data URI to parse")
	}
	if parsed.MediaType != "image/png" {
		t.Fatalf("unexpected media type: %s", parsed.MediaType)
	}
	if !bytes.Equal(parsed.Data, original.Data) {
		t.Fatal("round trip altered the payload bytes")
	}
}

func TestParseDataURIRejectsOtherShapes(t *testing.T) {
	for _, uri := range []string{
		"https://example.com/image.png",
		"data:image/png,not-base64-flagged",
		"data:image/png;base64,!!!not base64!!!",
		"",
	} {
		if _, ok := canvas.ParseDataURI(uri); ok {
			t.Fatalf("expected %q to be rejected", uri)
		}
	}
}

func TestFromMessageExtractsImageParts(t *testing.T) {
	payload := canvas.Payload{Data: []byte("img"), MediaType: "image/png"}
	msg := &schema.Message{
		Role:    schema.Assistant,
		Content: "drew this",
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: "drew this"},
			{
				Type:     schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{URL: payload.DataURI()},
			},
			{
				Type:     schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{URL: "https://example.com/remote.png"},
			},
		},
	}

	payloads := canvas.FromMessage(msg)
	if len(payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(payloads))
	}
	if !bytes.Equal(payloads[0].Data, payload.Data) {
		t.Fatal("extracted payload does not match")
	}
}

func TestFromMessageNil(t *testing.T) {
	if got := canvas.FromMessage(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/13point5/mit-interactive-sketchpad/internal/model/chat"
	"github.com/13point5/mit-interactive-sketchpad/internal/registry"
	chatservice "github.com/13point5/mit-interactive-sketchpad/internal/service/chat"
)

func setup() (*chi.Mux, *registry.Registry, *chatservice.Service) {
	reg := registry.New()
	chatSvc := chatservice.NewService(nil, nil, reg.SetActiveSession)
	handler := New(reg, chatSvc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, reg, chatSvc
}

func TestActiveSessionNullBeforeChatStarts(t *testing.T) {
	r, _, _ := setup()

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload map[string]*string
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["session_id"] != nil {
		t.Fatalf("expected null session_id, got %v", *payload["session_id"])
	}
}

func TestActiveSessionAfterCreate(t *testing.T) {
	r, _, _ := setup()

	req := httptest.NewRequest(http.MethodPost, "/session", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/session", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var payload map[string]*string
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["session_id"] == nil || *payload["session_id"] != created.ID {
		t.Fatalf("expected session_id %s, got %v", created.ID, payload["session_id"])
	}
}

func TestTranscriptUnknownSession(t *testing.T) {
	r, _, _ := setup()

	req := httptest.NewRequest(http.MethodGet, "/sessions/missing/messages", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestTranscriptIncludesAttachmentDataURIs(t *testing.T) {
	r, _, chatSvc := setup()
	session, _ := chatSvc.CreateSession(context.Background())

	sctx, err := chatSvc.Bind(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Bind err: %v", err)
	}
	att := chat.Attachment{
		ID:      "a1",
		Name:    "sketch.png",
		MIME:    "image/png",
		Display: chat.DisplayInline,
		Size:    chat.SizeLarge,
		Data:    []byte("\x89PNG bytes"),
	}
	if err := sctx.Submit(context.Background(), "here", att); err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+session.ID+"/messages", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload struct {
		Messages []struct {
			Sender      string `json:"sender"`
			Attachments []struct {
				URL string `json:"url"`
			} `json:"attachments"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}

	last := payload.Messages[len(payload.Messages)-1]
	if len(last.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %d", len(last.Attachments))
	}
	if got := last.Attachments[0].URL; len(got) == 0 || got[:5] != "data:" {
		t.Fatalf("expected data URI, got %q", got)
	}
}

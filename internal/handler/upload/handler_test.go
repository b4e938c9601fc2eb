package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/13point5/mit-interactive-sketchpad/internal/registry"
	chatservice "github.com/13point5/mit-interactive-sketchpad/internal/service/chat"
)

var imageBytes = []byte("\x89PNG\r\n\x1a\nsketch")

func setup() (*chi.Mux, *registry.Registry, *chatservice.Service) {
	reg := registry.New()
	chatSvc := chatservice.NewService(nil, nil, reg.SetActiveSession)
	handler := New(reg, chatSvc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, reg, chatSvc
}

func multipartBody(t *testing.T, caption string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if caption != "" {
		if err := writer.WriteField("text", caption); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if file != nil {
		part, err := writer.CreateFormFile("file", "sketch.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write(file)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func postUpload(t *testing.T, r http.Handler, caption string, file []byte) map[string]string {
	t.Helper()
	body, contentType := multipartBody(t, caption, file)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	var payload map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response (%d): %v", resp.Code, err)
	}
	return payload
}

func TestUploadNoActiveSession(t *testing.T) {
	r, _, chatSvc := setup()

	payload := postUpload(t, r, "hi", imageBytes)
	if payload["error"] == "" {
		t.Fatalf("expected soft error body, got %v", payload)
	}

	// Nothing was submitted anywhere.
	if _, err := chatSvc.LoadTranscript(context.Background(), "anything"); err == nil {
		t.Fatal("expected no transcript")
	}
}

func TestUploadStaleSessionReference(t *testing.T) {
	r, reg, _ := setup()
	reg.SetActiveSession("ghost")

	payload := postUpload(t, r, "hi", imageBytes)
	if payload["error"] != "Chat session not found" {
		t.Fatalf("unexpected body: %v", payload)
	}
}

func TestUploadRoutesToActiveSession(t *testing.T) {
	r, _, chatSvc := setup()
	session, _ := chatSvc.CreateSession(context.Background())

	payload := postUpload(t, r, "hi", imageBytes)
	if payload["message"] != "Image received" {
		t.Fatalf("unexpected body: %v", payload)
	}

	messages, err := chatSvc.LoadTranscript(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}

	last := messages[len(messages)-1]
	if last.Sender != "user" || last.Content != "hi" {
		t.Fatalf("unexpected submitted message: %+v", last)
	}
	if len(last.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %d", len(last.Attachments))
	}

	att := last.Attachments[0]
	if !bytes.Equal(att.Data, imageBytes) {
		t.Fatal("attachment bytes do not match upload")
	}
	if att.Display != "inline" || att.Size != "large" {
		t.Fatalf("unexpected display hints: %s/%s", att.Display, att.Size)
	}
}

func TestUploadUsesDefaultCaption(t *testing.T) {
	r, _, chatSvc := setup()
	session, _ := chatSvc.CreateSession(context.Background())

	postUpload(t, r, "", imageBytes)

	messages, _ := chatSvc.LoadTranscript(context.Background(), session.ID)
	last := messages[len(messages)-1]
	if last.Content != defaultCaption {
		t.Fatalf("expected default caption, got %q", last.Content)
	}
}

func TestUploadFollowsNewestSession(t *testing.T) {
	r, _, chatSvc := setup()

	first, _ := chatSvc.CreateSession(context.Background())
	postUpload(t, r, "for first", imageBytes)

	// A newer session becomes active; the next upload must land there,
	// not on the session that was active when the page loaded.
	second, _ := chatSvc.CreateSession(context.Background())
	postUpload(t, r, "for second", imageBytes)

	firstMsgs, _ := chatSvc.LoadTranscript(context.Background(), first.ID)
	if last := firstMsgs[len(firstMsgs)-1]; last.Content != "for first" {
		t.Fatalf("first session got unexpected message: %q", last.Content)
	}

	secondMsgs, _ := chatSvc.LoadTranscript(context.Background(), second.ID)
	if last := secondMsgs[len(secondMsgs)-1]; last.Content != "for second" {
		t.Fatalf("second session got unexpected message: %q", last.Content)
	}
}

func TestUploadMissingFile(t *testing.T) {
	r, _, chatSvc := setup()
	chatSvc.CreateSession(context.Background())

	body, contentType := multipartBody(t, "hi", nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()

	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/13point5/mit-interactive-sketchpad/internal/model/canvas"
	"github.com/13point5/mit-interactive-sketchpad/internal/model/chat"
	canvasservice "github.com/13point5/mit-interactive-sketchpad/internal/service/canvas"
)

var ErrSessionNotFound = errors.New("session not found")

const greeting = "Hi! I'm your tutor. Draw something on the sketchpad and send it over, or just ask me a question."

// Responder generates the agent's reply for a submitted message. Nil when
// the model is not configured; submissions still succeed, replies are
// skipped.
type Responder interface {
	Respond(ctx context.Context, history []chat.Message, msg chat.Message) (*schema.Message, error)
}

// Service is the in-process chat runtime: it owns sessions and
// transcripts, notifies the session-start hook, and runs the agent
// pipeline for submitted messages.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	messages map[string][]chat.Message

	responder      Responder
	deliverer      canvasservice.Deliverer
	onSessionStart func(sessionID string)
}

// NewService bootstraps the in-memory runtime. responder and deliverer
// may be nil; onSessionStart fires on every session creation, reconnects
// included.
func NewService(responder Responder, deliverer canvasservice.Deliverer, onSessionStart func(string)) *Service {
	return &Service{
		sessions:       make(map[string]chat.Session),
		messages:       make(map[string][]chat.Message),
		responder:      responder,
		deliverer:      deliverer,
		onSessionStart: onSessionStart,
	}
}

// CreateSession provisions an anonymous session and makes it the active
// one via the session-start hook.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = []chat.Message{{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Sender:    "assistant",
		Content:   greeting,
		CreatedAt: session.CreatedAt,
	}}
	s.mu.Unlock()

	if s.onSessionStart != nil {
		s.onSessionStart(session.ID)
	}

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// SaveMessage appends a message to the session history.
func (s *Service) SaveMessage(_ context.Context, message chat.Message) error {
	if message.SessionID == "" {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return ErrSessionNotFound
	}

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)
	return nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// SessionContext scopes attachment construction and message submission to
// one resolved session. Callers must obtain a fresh context per request;
// the active session can change between requests.
type SessionContext struct {
	svc     *Service
	session chat.Session
}

// Bind resolves sessionID against the live sessions and returns a scoped
// context for it. ErrSessionNotFound when the id is stale.
func (s *Service) Bind(ctx context.Context, sessionID string) (*SessionContext, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionContext{svc: s, session: session}, nil
}

// SessionID reports which session the context is bound to.
func (sc *SessionContext) SessionID() string {
	return sc.session.ID
}

// NewAttachment builds an inline image attachment from a scoped temporary
// file. The bytes are read eagerly so the caller may remove the file as
// soon as this returns.
func (sc *SessionContext) NewAttachment(name, path, mime string) (chat.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chat.Attachment{}, fmt.Errorf("read attachment %s: %w", name, err)
	}

	return chat.Attachment{
		ID:      uuid.NewString(),
		Name:    name,
		MIME:    mime,
		Display: chat.DisplayInline,
		Size:    chat.SizeLarge,
		Data:    data,
	}, nil
}

// Submit records the user message on the bound session's transcript and
// dispatches agent processing in the background. It returns once the
// message is durably on the pipeline; the reply is not awaited.
func (sc *SessionContext) Submit(ctx context.Context, content string, attachments ...chat.Attachment) error {
	msg := chat.Message{
		SessionID:   sc.session.ID,
		Sender:      "user",
		Content:     content,
		Attachments: attachments,
	}

	history, err := sc.svc.LoadTranscript(ctx, sc.session.ID)
	if err != nil {
		return err
	}
	if err := sc.svc.SaveMessage(ctx, msg); err != nil {
		return err
	}

	// Detached from the request context: the upload response must not
	// wait for, or cancel, the agent's turn.
	go sc.svc.respond(context.Background(), history, msg)
	return nil
}

// respond runs one agent turn: generate, persist, and push any image
// parts of the reply to the sketchpad.
func (s *Service) respond(ctx context.Context, history []chat.Message, msg chat.Message) {
	if s.responder == nil {
		log.Printf("[chat] no responder configured, skipping reply for session=%s", msg.SessionID)
		return
	}

	reply, err := s.responder.Respond(ctx, history, msg)
	if err != nil {
		log.Printf("[chat] agent turn failed for session=%s: %v", msg.SessionID, err)
		return
	}

	assistantMsg := chat.Message{
		SessionID: msg.SessionID,
		Sender:    "assistant",
		Content:   reply.Content,
	}
	if err := s.SaveMessage(ctx, assistantMsg); err != nil {
		log.Printf("[chat] save assistant message failed: %v", err)
	}

	s.PushVisuals(ctx, reply)
}

// PushVisuals forwards the image parts of a model reply to the sketchpad.
// Failures are logged and swallowed; the agent's turn completes
// regardless.
func (s *Service) PushVisuals(ctx context.Context, reply *schema.Message) {
	if s.deliverer == nil {
		return
	}
	for _, payload := range canvas.FromMessage(reply) {
		if !s.deliverer.Deliver(ctx, payload) {
			log.Printf("[chat] visual dropped: no live sketchpad channel")
		}
	}
}

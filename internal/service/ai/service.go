package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/13point5/mit-interactive-sketchpad/internal/config"
	"github.com/13point5/mit-interactive-sketchpad/internal/model/chat"
)

const systemPrompt = `You are a friendly tutor working side by side with a student.
The student has a sketchpad next to this chat and will send you drawings of
their work. Look carefully at any image they share, point out what is right,
and guide them toward the next step instead of giving the answer away.
Keep replies short and encouraging.`

const historyLimit = 10

// Service wraps the configured chat model behind the runtime's Responder
// contract.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
}

// NewService creates the agent service from the Ark credentials in cfg.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return &Service{chatModel: chatModel, cfg: cfg}, nil
}

// StreamingEnabled reports whether SSE turns should stream deltas.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Respond generates one complete reply for a submitted message.
func (s *Service) Respond(ctx context.Context, history []chat.Message, msg chat.Message) (*schema.Message, error) {
	response, err := s.chatModel.Generate(ctx, buildMessages(history, msg))
	if err != nil {
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}

	log.Printf("[ai] generated reply for session=%s, length=%d", msg.SessionID, len(response.Content))
	return response, nil
}

// Stream generates a reply as a chunk stream for SSE turns.
func (s *Service) Stream(ctx context.Context, history []chat.Message, msg chat.Message) (*schema.StreamReader[*schema.Message], error) {
	stream, err := s.chatModel.Stream(ctx, buildMessages(history, msg))
	if err != nil {
		return nil, fmt.Errorf("failed to stream reply: %w", err)
	}
	return stream, nil
}

// buildMessages assembles the model input: system prompt, a bounded
// window of prior turns, then the new message. Attachments become image
// parts of a multimodal user message.
func buildMessages(history []chat.Message, msg chat.Message) []*schema.Message {
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))

	for _, m := range history {
		switch m.Sender {
		case "assistant":
			messages = append(messages, schema.AssistantMessage(m.Content, nil))
		default:
			messages = append(messages, toUserMessage(m))
		}
	}

	messages = append(messages, toUserMessage(msg))
	return messages
}

func toUserMessage(m chat.Message) *schema.Message {
	if len(m.Attachments) == 0 {
		return schema.UserMessage(m.Content)
	}

	parts := make([]schema.ChatMessagePart, 0, len(m.Attachments)+1)
	parts = append(parts, schema.ChatMessagePart{
		Type: schema.ChatMessagePartTypeText,
		Text: m.Content,
	})
	for _, att := range m.Attachments {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL:    att.DataURI(),
				Detail: schema.ImageURLDetailAuto,
			},
		})
	}

	return &schema.Message{
		Role:         schema.User,
		MultiContent: parts,
	}
}

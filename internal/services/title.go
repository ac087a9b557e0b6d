package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/chatline-backend/internal/domain/chat"
	"github.com/yungbote/chatline-backend/internal/platform/apierr"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
	"github.com/yungbote/chatline-backend/internal/platform/openai"
)

const titleSystemPrompt = "Generate a short, descriptive title (at most six words) for the conversation. " +
	"Reply with the title only, no quotes, no trailing punctuation."

// TitleService derives a thread title with the model and renames the thread.
// Callers may supply the turns to title from; with none supplied the stored
// thread history is used.
type TitleService interface {
	GenerateTitle(ctx context.Context, threadID uuid.UUID, supplied []openai.Turn) (*types.ChatThread, error)
}

type titleService struct {
	log  *logger.Logger
	llm  openai.Client
	chat ChatService
}

func NewTitleService(log *logger.Logger, llm openai.Client, chat ChatService) TitleService {
	return &titleService{
		log:  log.With("service", "TitleService"),
		llm:  llm,
		chat: chat,
	}
}

func (s *titleService) GenerateTitle(ctx context.Context, threadID uuid.UUID, supplied []openai.Turn) (*types.ChatThread, error) {
	var transcript string
	if len(supplied) > 0 {
		transcript = buildSuppliedTranscript(supplied, 500)
	} else {
		rows, err := s.chat.GetMessages(ctx, threadID)
		if err != nil {
			return nil, err
		}
		transcript = buildTranscript(rows, 500)
	}
	if transcript == "" {
		return nil, apierr.Validation("empty_thread", fmt.Errorf("thread has no text content to title"))
	}

	raw, err := s.llm.GenerateText(ctx, titleSystemPrompt, transcript)
	if err != nil {
		return nil, apierr.Backend("title_generation_failed", err)
	}
	title := cleanTitle(raw)
	if title == "" {
		return nil, apierr.Backend("title_generation_failed", fmt.Errorf("model returned an empty title"))
	}

	return s.chat.UpdateThread(ctx, threadID, ThreadUpdate{Title: &title})
}

func buildSuppliedTranscript(turns []openai.Turn, maxLen int) string {
	var b strings.Builder
	for _, turn := range turns {
		text := strings.TrimSpace(turn.Content)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(text)
		if b.Len() >= maxLen {
			break
		}
	}
	out := []rune(b.String())
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return strings.TrimSpace(string(out))
}

// buildTranscript joins the text content of the thread's messages, oldest
// first, truncated to maxLen runes. Enough signal for a title without
// shipping the whole conversation to the model.
func buildTranscript(rows []*types.ChatMessage, maxLen int) string {
	var b strings.Builder
	for _, row := range rows {
		text := extractText(row.Content)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(row.Role))
		b.WriteString(": ")
		b.WriteString(text)
		if b.Len() >= maxLen {
			break
		}
	}
	out := []rune(b.String())
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return strings.TrimSpace(string(out))
}

// extractText pulls plain text out of a message content payload, which is
// either a JSON string or an array of typed parts.
func extractText(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return strings.TrimSpace(asString)
	}
	var parts []types.ContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var out []string
	for _, p := range parts {
		if p.Type == types.PartTypeText && strings.TrimSpace(p.Text) != "" {
			out = append(out, strings.TrimSpace(p.Text))
		}
	}
	return strings.Join(out, " ")
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > 80 {
		s = strings.TrimSpace(string(r[:80]))
	}
	return s
}

package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	types "github.com/yungbote/chatline-backend/internal/domain/chat"
	"github.com/yungbote/chatline-backend/internal/platform/apierr"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
	"github.com/yungbote/chatline-backend/internal/platform/openai"
	"github.com/yungbote/chatline-backend/internal/utils"
)

// AssistantService produces the model side of a conversation: it replays the
// thread's stored history to the model, streams deltas to the caller, and
// appends the finished assistant message to the thread.
type AssistantService interface {
	StreamReply(ctx context.Context, threadID uuid.UUID, onDelta func(delta string)) (*types.ChatMessage, error)
}

type assistantService struct {
	log    *logger.Logger
	llm    openai.Client
	chat   ChatService
	system string
}

func NewAssistantService(log *logger.Logger, llm openai.Client, chat ChatService) AssistantService {
	return &assistantService{
		log:    log.With("service", "AssistantService"),
		llm:    llm,
		chat:   chat,
		system: utils.GetEnv("CHAT_SYSTEM_PROMPT", "You are a helpful assistant.", log),
	}
}

func (s *assistantService) StreamReply(ctx context.Context, threadID uuid.UUID, onDelta func(delta string)) (*types.ChatMessage, error) {
	rows, err := s.chat.GetMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}

	turns := make([]openai.Turn, 0, len(rows))
	for _, row := range rows {
		text := extractText(row.Content)
		if text == "" {
			continue
		}
		turns = append(turns, openai.Turn{Role: string(row.Role), Content: text})
	}

	full, err := s.llm.StreamChat(ctx, s.system, turns, onDelta)
	if err != nil {
		return nil, apierr.Backend("stream_failed", err)
	}

	content, _ := json.Marshal([]types.ContentPart{{Type: types.PartTypeText, Text: full}})
	parent := lastMessageID(rows)
	return s.chat.AppendMessage(ctx, threadID, MessageInput{
		ParentID: parent,
		Role:     types.RoleAssistant,
		Content:  content,
	})
}

func lastMessageID(rows []*types.ChatMessage) *uuid.UUID {
	if len(rows) == 0 {
		return nil
	}
	id := rows[len(rows)-1].ID
	return &id
}

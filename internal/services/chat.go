package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	chatrepo "github.com/yungbote/chatline-backend/internal/data/repos/chat"
	types "github.com/yungbote/chatline-backend/internal/domain/chat"
	"github.com/yungbote/chatline-backend/internal/platform/apierr"
	"github.com/yungbote/chatline-backend/internal/platform/azblob"
	"github.com/yungbote/chatline-backend/internal/platform/dbctx"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
)

// MessageInput is the client-supplied shape of a message to append. The
// service assigns the id when the client omits one and normalizes the
// attachments before anything touches storage.
type MessageInput struct {
	ID          uuid.UUID          `json:"id"`
	ParentID    *uuid.UUID         `json:"parentId"`
	Role        types.MessageRole  `json:"role"`
	Status      json.RawMessage    `json:"status"`
	Content     json.RawMessage    `json:"content"`
	Attachments []types.Attachment `json:"attachments"`
	Metadata    json.RawMessage    `json:"metadata"`
	RunConfig   json.RawMessage    `json:"runConfig"`
}

type ThreadUpdate struct {
	Title    *string `json:"title"`
	Archived *bool   `json:"archived"`
}

// ThreadInput creates a thread. A zero ID means the service picks one; an
// empty title falls back to the default.
type ThreadInput struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type ChatService interface {
	ListThreads(ctx context.Context, limit int, cursor string) ([]*types.ChatThread, string, error)
	CreateThread(ctx context.Context, in ThreadInput) (*types.ChatThread, error)
	GetThread(ctx context.Context, id uuid.UUID) (*types.ChatThread, error)
	UpdateThread(ctx context.Context, id uuid.UUID, upd ThreadUpdate) (*types.ChatThread, error)
	DeleteThread(ctx context.Context, id uuid.UUID) error

	GetMessages(ctx context.Context, threadID uuid.UUID) ([]*types.ChatMessage, error)
	AppendMessage(ctx context.Context, threadID uuid.UUID, in MessageInput) (*types.ChatMessage, error)
}

type chatService struct {
	log        *logger.Logger
	threads    chatrepo.ChatThreadRepo
	messages   chatrepo.ChatMessageRepo
	blob       azblob.BlobService
	normalizer *AttachmentNormalizer
}

func NewChatService(
	log *logger.Logger,
	threads chatrepo.ChatThreadRepo,
	messages chatrepo.ChatMessageRepo,
	blob azblob.BlobService,
	normalizer *AttachmentNormalizer,
) ChatService {
	return &chatService{
		log:        log.With("service", "ChatService"),
		threads:    threads,
		messages:   messages,
		blob:       blob,
		normalizer: normalizer,
	}
}

const maxTitleLen = 200

func (s *chatService) ListThreads(ctx context.Context, limit int, cursor string) ([]*types.ChatThread, string, error) {
	rows, next, err := s.threads.List(dbctx.Context{Ctx: ctx}, limit, cursor)
	if err != nil {
		if errors.Is(err, chatrepo.ErrBadCursor) {
			return nil, "", apierr.Validation("bad_cursor", err)
		}
		return nil, "", apierr.Backend("list_threads_failed", err)
	}
	return rows, next, nil
}

func (s *chatService) CreateThread(ctx context.Context, in ThreadInput) (*types.ChatThread, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = types.DefaultThreadTitle
	}
	if len(title) > maxTitleLen {
		return nil, apierr.Validation("title_too_long", fmt.Errorf("title exceeds %d characters", maxTitleLen))
	}
	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := &types.ChatThread{ID: id, Title: title}
	created, err := s.threads.Create(dbctx.Context{Ctx: ctx}, row)
	if err != nil {
		return nil, apierr.Backend("create_thread_failed", err)
	}
	return created, nil
}

func (s *chatService) GetThread(ctx context.Context, id uuid.UUID) (*types.ChatThread, error) {
	row, err := s.threads.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("thread_not_found", err)
		}
		return nil, apierr.Backend("get_thread_failed", err)
	}
	return row, nil
}

func (s *chatService) UpdateThread(ctx context.Context, id uuid.UUID, upd ThreadUpdate) (*types.ChatThread, error) {
	updates := map[string]interface{}{}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, apierr.Validation("empty_title", fmt.Errorf("title must not be blank"))
		}
		if len(title) > maxTitleLen {
			return nil, apierr.Validation("title_too_long", fmt.Errorf("title exceeds %d characters", maxTitleLen))
		}
		updates["title"] = title
	}
	if upd.Archived != nil {
		updates["archived"] = *upd.Archived
	}
	if len(updates) == 0 {
		return nil, apierr.Validation("empty_update", fmt.Errorf("nothing to update"))
	}

	dbc := dbctx.Context{Ctx: ctx}
	if err := s.threads.UpdateFields(dbc, id, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("thread_not_found", err)
		}
		return nil, apierr.Backend("update_thread_failed", err)
	}
	row, err := s.threads.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.Backend("get_thread_failed", err)
	}
	return row, nil
}

// DeleteThread removes a thread, its messages, and every blob those messages
// reference. Rows go first so the thread disappears even when blob cleanup
// degrades; blob deletes then run concurrently and all of them are attempted
// regardless of individual failures. A missing thread is not an error, the
// end state the caller asked for already holds.
func (s *chatService) DeleteThread(ctx context.Context, id uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := s.threads.GetByID(dbc, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("delete of missing thread, treating as done", "thread_id", id.String())
			return nil
		}
		return apierr.Backend("get_thread_failed", err)
	}

	rows, err := s.messages.ListByThreadID(dbc, id)
	if err != nil {
		return apierr.Backend("list_messages_failed", err)
	}
	objectIDs := collectObjectIDs(rows)

	if err := s.messages.HardDeleteByThreadID(dbc, id); err != nil {
		return apierr.Backend("delete_messages_failed", err)
	}
	if err := s.threads.HardDeleteByID(dbc, id); err != nil {
		return apierr.Backend("delete_thread_failed", err)
	}

	if len(objectIDs) == 0 {
		return nil
	}

	errs := make([]error, len(objectIDs))
	var wg sync.WaitGroup
	for i, objectID := range objectIDs {
		wg.Add(1)
		go func(i int, objectID string) {
			defer wg.Done()
			errs[i] = s.blob.Delete(ctx, objectID)
		}(i, objectID)
	}
	wg.Wait()

	var failedIDs []string
	var failedErrs []error
	for i, e := range errs {
		if e != nil {
			failedIDs = append(failedIDs, objectIDs[i])
			failedErrs = append(failedErrs, e)
		}
	}
	if len(failedIDs) > 0 {
		s.log.Error("thread deleted but some blobs remain",
			"thread_id", id.String(),
			"failed", len(failedIDs),
			"total", len(objectIDs),
		)
		return &apierr.PartialFailure{Op: "delete_thread", FailedIDs: failedIDs, Errs: failedErrs}
	}
	return nil
}

func (s *chatService) GetMessages(ctx context.Context, threadID uuid.UUID) ([]*types.ChatMessage, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.threads.GetByID(dbc, threadID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("thread_not_found", err)
		}
		return nil, apierr.Backend("get_thread_failed", err)
	}
	rows, err := s.messages.ListByThreadID(dbc, threadID)
	if err != nil {
		return nil, apierr.Backend("list_messages_failed", err)
	}
	return s.rehydrateMessages(ctx, rows), nil
}

func (s *chatService) AppendMessage(ctx context.Context, threadID uuid.UUID, in MessageInput) (*types.ChatMessage, error) {
	switch in.Role {
	case types.RoleUser, types.RoleAssistant, types.RoleSystem:
	default:
		return nil, apierr.Validation("bad_role", fmt.Errorf("unknown role %q", in.Role))
	}

	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.threads.GetByID(dbc, threadID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound("thread_not_found", err)
		}
		return nil, apierr.Backend("get_thread_failed", err)
	}

	attJSON, err := types.EncodeAttachments(s.normalizer.NormalizeForStorage(in.Attachments))
	if err != nil {
		return nil, apierr.Validation("bad_attachments", err)
	}

	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := &types.ChatMessage{
		ID:          id,
		ThreadID:    threadID,
		ParentID:    in.ParentID,
		Role:        in.Role,
		Status:      rawToJSON(in.Status),
		Content:     rawToJSON(in.Content),
		Attachments: attJSON,
		Metadata:    rawToJSON(in.Metadata),
		RunConfig:   rawToJSON(in.RunConfig),
	}
	created, err := s.messages.Create(dbc, row)
	if err != nil {
		return nil, apierr.Backend("append_message_failed", err)
	}

	// Touch the thread so it sorts to the top of the list.
	if err := s.threads.UpdateFields(dbc, threadID, map[string]interface{}{}); err != nil {
		s.log.Warn("thread touch failed after append", "thread_id", threadID.String(), "error", err.Error())
	}
	return created, nil
}

// rehydrateMessages rewrites each message's attachments with fresh signed
// URLs. One URL cache spans the whole list and the messages are resolved
// concurrently, so an object id repeated across messages is signed exactly
// once per read. The persisted rows are never mutated; callers get copies.
func (s *chatService) rehydrateMessages(ctx context.Context, rows []*types.ChatMessage) []*types.ChatMessage {
	out := make([]*types.ChatMessage, len(rows))
	cache := s.normalizer.NewCache()
	var wg sync.WaitGroup
	for i, row := range rows {
		out[i] = row
		atts, err := types.DecodeAttachments(row.Attachments)
		if err != nil {
			s.log.Warn("undecodable attachments on read, passing through",
				"message_id", row.ID.String(), "error", err.Error())
			continue
		}
		if len(atts) == 0 {
			continue
		}
		wg.Add(1)
		go func(i int, row *types.ChatMessage, atts []types.Attachment) {
			defer wg.Done()
			rehydrated, err := types.EncodeAttachments(s.normalizer.Rehydrate(ctx, cache, atts))
			if err != nil {
				return
			}
			cp := *row
			cp.Attachments = rehydrated
			out[i] = &cp
		}(i, row, atts)
	}
	wg.Wait()
	return out
}

// collectObjectIDs gathers the distinct blob object ids referenced by a set
// of messages, in first-seen order.
func collectObjectIDs(rows []*types.ChatMessage) []string {
	seen := map[string]bool{}
	var out []string
	for _, row := range rows {
		atts, err := types.DecodeAttachments(row.Attachments)
		if err != nil {
			continue
		}
		for i := range atts {
			if ref, ok := atts[i].StorageRef(); ok && !seen[ref.ObjectID] {
				seen[ref.ObjectID] = true
				out = append(out, ref.ObjectID)
			}
		}
	}
	return out
}

func rawToJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

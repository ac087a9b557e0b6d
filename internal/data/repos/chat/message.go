package chat

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/chatline-backend/internal/domain/chat"
	"github.com/yungbote/chatline-backend/internal/platform/dbctx"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
)

// ChatMessageRepo is an append-only log. There is no update path for a
// message row; deletion happens only through the whole-thread cascade.
type ChatMessageRepo interface {
	Create(dbc dbctx.Context, row *types.ChatMessage) (*types.ChatMessage, error)
	ListByThreadID(dbc dbctx.Context, threadID uuid.UUID) ([]*types.ChatMessage, error)
	HardDeleteByThreadID(dbc dbctx.Context, threadID uuid.UUID) error
}

type chatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, log *logger.Logger) ChatMessageRepo {
	return &chatMessageRepo{db: db, log: log.With("repo", "ChatMessageRepo")}
}

func (r *chatMessageRepo) Create(dbc dbctx.Context, row *types.ChatMessage) (*types.ChatMessage, error) {
	if row == nil {
		return nil, fmt.Errorf("missing message row")
	}
	if row.ThreadID == uuid.Nil {
		return nil, fmt.Errorf("missing thread_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *chatMessageRepo) ListByThreadID(dbc dbctx.Context, threadID uuid.UUID) ([]*types.ChatMessage, error) {
	if threadID == uuid.Nil {
		return nil, fmt.Errorf("missing thread_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.ChatMessage
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.ChatMessage{}).
		Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chatMessageRepo) HardDeleteByThreadID(dbc dbctx.Context, threadID uuid.UUID) error {
	if threadID == uuid.Nil {
		return fmt.Errorf("missing thread_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Where("thread_id = ?", threadID).
		Delete(&types.ChatMessage{}).Error
}

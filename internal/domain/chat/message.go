package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ChatMessage is an append-only log entry. Rows are never updated in place;
// the only delete path is the whole-thread cascade. ParentID forms the
// conversation tree but is opaque to storage - integrity is the client's
// concern.
type ChatMessage struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ThreadID uuid.UUID  `gorm:"type:uuid;not null;index" json:"threadId"`
	ParentID *uuid.UUID `gorm:"type:uuid;column:parent_id" json:"parentId"`

	Role   MessageRole    `gorm:"column:role;not null" json:"role"`
	Status datatypes.JSON `gorm:"type:jsonb;column:status" json:"status,omitempty"`

	Content     datatypes.JSON `gorm:"type:jsonb;column:content" json:"content,omitempty"`
	Attachments datatypes.JSON `gorm:"type:jsonb;column:attachments" json:"attachments,omitempty"`
	Metadata    datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
	RunConfig   datatypes.JSON `gorm:"type:jsonb;column:run_config" json:"runConfig,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}

func (ChatMessage) TableName() string { return "chat_message" }

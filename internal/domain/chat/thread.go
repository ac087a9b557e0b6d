package chat

import (
	"time"

	"github.com/google/uuid"
)

const DefaultThreadTitle = "New chat"

type ChatThread struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title    string    `gorm:"column:title;not null;default:'New chat'" json:"title"`
	Archived bool      `gorm:"column:archived;not null;default:false;index" json:"archived"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updatedAt"`
}

func (ChatThread) TableName() string { return "chat_thread" }

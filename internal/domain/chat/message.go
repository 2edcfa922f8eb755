package chat

import (
	"time"

	"gorm.io/datatypes"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

type Message struct {
	ID     string `gorm:"type:text;primaryKey" json:"id"`
	ChatID string `gorm:"type:text;not null;index;uniqueIndex:idx_message_chat_seq,priority:1" json:"chatId"`

	Role        Role           `gorm:"column:role;type:text;not null" json:"role"`
	Parts       Parts          `gorm:"column:parts;not null" json:"parts"`
	Attachments datatypes.JSON `gorm:"column:attachments;not null" json:"attachments"`

	// Seq is the insertion order within the chat; it breaks CreatedAt ties.
	Seq int64 `gorm:"column:seq;not null;uniqueIndex:idx_message_chat_seq,priority:2" json:"-"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (Message) TableName() string { return "message" }

package chat

import (
	"time"

	"gorm.io/datatypes"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// Chat is one conversation. The id is chosen by the client before the first turn.
type Chat struct {
	ID     string `gorm:"type:text;primaryKey" json:"id"`
	UserID string `gorm:"type:text;not null;index" json:"userId"`

	Title      string     `gorm:"column:title;type:text;not null" json:"title"`
	Visibility Visibility `gorm:"column:visibility;type:text;not null" json:"visibility"`

	// LastContext is the usage snapshot of the latest completed assistant turn.
	LastContext datatypes.JSON `gorm:"column:last_context" json:"lastContext,omitempty"`

	// NextSeq allocates Message.Seq within the chat.
	NextSeq int64 `gorm:"column:next_seq;not null" json:"-"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (Chat) TableName() string { return "chat" }

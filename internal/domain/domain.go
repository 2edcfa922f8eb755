package domain

import (
	"github.com/yungbote/galaxychat-backend/internal/domain/chat"
	"github.com/yungbote/galaxychat-backend/internal/domain/user"
)

type (
	User = user.User

	Chat        = chat.Chat
	Message     = chat.Message
	Part        = chat.Part
	Parts       = chat.Parts
	Usage       = chat.Usage
	Role        = chat.Role
	Visibility  = chat.Visibility
	ContextSize = chat.ContextLimit
	Cost        = chat.Cost
)

// Models lists every persisted table, in migration order.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&chat.Chat{},
		&chat.Message{},
	}
}

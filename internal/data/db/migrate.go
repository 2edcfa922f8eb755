package db

import (
	"fmt"

	types "github.com/yungbote/galaxychat-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("migrate models: %w", err)
	}
	// history pagination reads (user_id, created_at DESC, id DESC)
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_chat_user_created ON chat (user_id, created_at, id)`).Error; err != nil {
		return fmt.Errorf("create idx_chat_user_created: %w", err)
	}
	return nil
}

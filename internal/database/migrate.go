package database

import (
	"fmt"

	"github.com/pageza/chopchop/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate creates or updates the tables used by the service
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("running auto-migration", zap.String("dialect", db.Dialector.Name()))
	if err := db.AutoMigrate(&models.ChatMessage{}); err != nil {
		return fmt.Errorf("failed to migrate chat_messages: %w", err)
	}

	// history is always read per user in send order
	if !db.Migrator().HasIndex(&models.ChatMessage{}, "idx_chat_messages_email_sent_at") {
		if err := db.Exec("CREATE INDEX idx_chat_messages_email_sent_at ON chat_messages (email, sent_at)").Error; err != nil {
			return fmt.Errorf("failed to create history index: %w", err)
		}
	}
	return nil
}

// Rollback drops the tables created by Migrate
func Rollback(db *gorm.DB, logger *zap.Logger) error {
	logger.Warn("dropping chat history tables")
	if err := db.Migrator().DropTable(&models.ChatMessage{}); err != nil {
		return fmt.Errorf("failed to drop chat_messages: %w", err)
	}
	return nil
}

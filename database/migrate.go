// database/migrate.go - Database Migration Runner
package database

import (
	"fmt"

	"fitchallenge/models"
	"fitchallenge/utils"

	"gorm.io/gorm"
)

// Migrate creates or updates every table and index. It is safe to run on
// each start.
func Migrate(db *gorm.DB) error {
	utils.Logger.Info("Running database migrations")

	if err := db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Challenge{},
		&models.Participant{},
		&models.Comment{},
		&models.CommentReaction{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return err
	}

	utils.Logger.Info("All migrations completed successfully")
	return nil
}

// createIndexes adds the composite indexes the list queries rely on
func createIndexes(db *gorm.DB) error {
	statements := []string{
		// Directory listing and history
		"CREATE INDEX IF NOT EXISTS idx_challenges_created ON challenges(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_challenges_category_difficulty ON challenges(category, difficulty)",

		// Comment threads
		"CREATE INDEX IF NOT EXISTS idx_comments_challenge_created ON challenge_comments(challenge_id, created_at)",

		// History screen: challenges a user joined
		"CREATE INDEX IF NOT EXISTS idx_participants_user_joined ON challenge_participants(user_id, joined_at DESC)",
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

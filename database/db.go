// database/db.go - Database Connection (PostgreSQL)
package database

import (
	"fmt"
	"time"

	"fitchallenge/config"
	"fitchallenge/utils"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// InitDB opens the PostgreSQL connection, configures the pool and runs migrations
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	logMode := logger.Info
	if cfg.IsProduction() {
		logMode = logger.Warn
	}

	conn, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	utils.Logger.Info("PostgreSQL database connected",
		zap.String("host", cfg.DBHost), zap.String("database", cfg.DBName))

	if err := Migrate(conn); err != nil {
		return nil, err
	}

	db = conn
	return db, nil
}

// GetDB returns the connection opened by InitDB
func GetDB() *gorm.DB {
	if db == nil {
		utils.Logger.Fatal("Database not initialized. Call InitDB() first.")
	}
	return db
}

// CloseDB closes the database connection
func CloseDB() error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	utils.Logger.Info("Database connection closed")
	return nil
}

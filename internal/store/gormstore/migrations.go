package gormstore

import (
	"log/slog"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/suPer8Hu/companion-api/internal/models"
	"gorm.io/gorm"
)

func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0001_initial",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.User{}, &models.UsageStats{}, &models.Session{}, &models.Message{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.Message{}, &models.Session{}, &models.UsageStats{}, &models.User{})
			},
		},
		{
			ID: "0002_payments_and_summaries",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Payment{}, &models.SummaryJob{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.SummaryJob{}, &models.Payment{})
			},
		},
	})

	migrator.InitSchema(func(tx *gorm.DB) error {
		// Clean database: create the latest schema directly.
		slog.Info("clean database detected, running full schema initialization")
		return tx.AutoMigrate(allModels()...)
	})

	return migrator
}

func allModels() []any {
	return []any{
		&models.User{},
		&models.UsageStats{},
		&models.Session{},
		&models.Message{},
		&models.Payment{},
		&models.SummaryJob{},
	}
}

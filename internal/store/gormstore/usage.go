package gormstore

import (
	"context"
	"errors"

	"github.com/suPer8Hu/companion-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) GetUsage(ctx context.Context, userID string) (*models.UsageStats, error) {
	var st models.UsageStats
	err := s.db.WithContext(ctx).First(&st, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UsageStats{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) IncrementMessages(ctx context.Context, userID string, delta int) (*models.UsageStats, error) {
	return s.bump(ctx, userID, "total_messages", delta)
}

func (s *Store) AddCallSeconds(ctx context.Context, userID string, seconds int) (*models.UsageStats, error) {
	return s.bump(ctx, userID, "total_call_seconds", seconds)
}

// bump adds delta to one counter column, creating the row on first use.
func (s *Store) bump(ctx context.Context, userID, column string, delta int) (*models.UsageStats, error) {
	var st models.UsageStats
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.UsageStats{UserID: userID}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.UsageStats{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{column: gorm.Expr(column+" + ?", delta)}).Error; err != nil {
			return err
		}
		return tx.First(&st, "user_id = ?", userID).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

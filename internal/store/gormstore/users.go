package gormstore

import (
	"context"
	"time"

	"github.com/suPer8Hu/companion-api/internal/models"
	"gorm.io/gorm/clause"
)

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.db.WithContext(ctx).Create(u).Error)
}

func (s *Store) EnsureUser(ctx context.Context, u *models.User) (*models.User, error) {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(u).Error; err != nil {
		return nil, translate(err)
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) UpdateUserSettings(ctx context.Context, id string, name, persona *string) (*models.User, error) {
	updates := map[string]any{}
	if name != nil {
		updates["name"] = *name
	}
	if persona != nil {
		updates["persona"] = *persona
	}
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, translate(res.Error)
		}
	}
	return s.GetUser(ctx, id)
}

func (s *Store) SetPremium(ctx context.Context, id string, premium bool, until *time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"premium":       premium,
			"premium_until": until,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero rows when the values did not change.
		_, err := s.GetUser(ctx, id)
		return err
	}
	return nil
}

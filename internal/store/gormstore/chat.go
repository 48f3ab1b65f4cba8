package gormstore

import (
	"context"

	"github.com/suPer8Hu/companion-api/internal/models"
)

func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	return translate(s.db.WithContext(ctx).Create(sess).Error)
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	if err := s.db.WithContext(ctx).First(&sess, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &sess, nil
}

func (s *Store) LatestSession(ctx context.Context, userID, sessionType string) (*models.Session, error) {
	var sess models.Session
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, sessionType).
		Order("started_at DESC, id DESC").
		First(&sess).Error; err != nil {
		return nil, translate(err)
	}
	return &sess, nil
}

func (s *Store) InsertMessage(ctx context.Context, m *models.Message) error {
	return translate(s.db.WithContext(ctx).Create(m).Error)
}

// ListMessages returns messages in ASC order (oldest -> newest).
func (s *Store) ListMessages(ctx context.Context, userID, sessionID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, translate(err)
	}
	return msgs, nil
}

// ListRecentMessagesDesc returns the most recent messages in DESC order (newest -> oldest).
func (s *Store) ListRecentMessagesDesc(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 6
	}
	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, translate(err)
	}
	return msgs, nil
}

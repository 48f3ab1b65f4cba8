package gormstore

import (
	"context"

	"github.com/suPer8Hu/companion-api/internal/models"
	"github.com/suPer8Hu/companion-api/internal/store"
	"gorm.io/gorm"
)

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) GetPayment(ctx context.Context, orderID string) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).First(&p, "order_id = ?", orderID).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) (models.PaymentStatus, error) {
	var prev models.PaymentStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Payment
		if err := tx.First(&p, "order_id = ?", orderID).Error; err != nil {
			return err
		}
		prev = p.Status
		if prev == status {
			return nil
		}
		res := tx.Model(&models.Payment{}).
			Where("order_id = ? AND status = ?", orderID, prev).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// lost a race with a concurrent webhook delivery
			return store.ErrConflict
		}
		return nil
	})
	if err != nil {
		return "", translate(err)
	}
	return prev, nil
}

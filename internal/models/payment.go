package models

import "time"

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type Payment struct {
	OrderID          string        `gorm:"type:varchar(64);primaryKey" json:"order_id"`
	UserID           string        `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Amount           float64       `gorm:"not null" json:"amount"`
	Currency         string        `gorm:"type:varchar(8);not null" json:"currency"`
	Status           PaymentStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	PaymentSessionID string        `gorm:"type:varchar(256)" json:"payment_session_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

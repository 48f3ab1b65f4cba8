package models

import "time"

type User struct {
	ID           string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	Phone        *string    `gorm:"type:varchar(20);uniqueIndex" json:"phone,omitempty"`
	Name         string     `gorm:"type:varchar(128)" json:"name"`
	Persona      string     `gorm:"type:varchar(32);not null;default:''" json:"persona"`
	Premium      bool       `gorm:"not null;default:false" json:"premium"`
	PremiumUntil *time.Time `json:"premium_until,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// IsPremium reports whether the premium flag is set and not expired at now.
func (u *User) IsPremium(now time.Time) bool {
	if u == nil || !u.Premium {
		return false
	}
	return u.PremiumUntil == nil || now.Before(*u.PremiumUntil)
}

// UsageStats holds per-user counters. No decrement path exists.
type UsageStats struct {
	UserID           string    `gorm:"type:varchar(64);primaryKey" json:"user_id"`
	TotalMessages    int       `gorm:"not null;default:0" json:"total_messages"`
	TotalCallSeconds int       `gorm:"not null;default:0" json:"total_call_seconds"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (UsageStats) TableName() string { return "usage_stats" }

// Package store defines the persistence interfaces shared by the relational
// and in-memory implementations. One implementation is chosen at startup.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/suPer8Hu/companion-api/internal/models"
	"gorm.io/datatypes"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	// EnsureUser returns the stored user with u.ID, inserting u when absent.
	EnsureUser(ctx context.Context, u *models.User) (*models.User, error)
	UpdateUserSettings(ctx context.Context, id string, name, persona *string) (*models.User, error)
	SetPremium(ctx context.Context, id string, premium bool, until *time.Time) error
}

type ChatStore interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	// LatestSession returns the most recently started session of the given type.
	LatestSession(ctx context.Context, userID, sessionType string) (*models.Session, error)

	InsertMessage(ctx context.Context, m *models.Message) error
	// ListMessages returns the user's messages of a session, oldest first.
	ListMessages(ctx context.Context, userID, sessionID string) ([]models.Message, error)
	// ListRecentMessagesDesc returns the newest messages of a session, newest first.
	ListRecentMessagesDesc(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
}

type UsageStore interface {
	// GetUsage returns zero counters for users without a row.
	GetUsage(ctx context.Context, userID string) (*models.UsageStats, error)
	IncrementMessages(ctx context.Context, userID string, delta int) (*models.UsageStats, error)
	AddCallSeconds(ctx context.Context, userID string, seconds int) (*models.UsageStats, error)
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, orderID string) (*models.Payment, error)
	// UpdatePaymentStatus returns the previous status.
	UpdatePaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) (models.PaymentStatus, error)
}

type JobStore interface {
	CreateJob(ctx context.Context, j *models.SummaryJob) error
	GetJob(ctx context.Context, id string) (*models.SummaryJob, error)
	UpdateJobStatusRunning(ctx context.Context, id string) error
	MarkJobSucceeded(ctx context.Context, id string, result datatypes.JSON) error
	MarkJobFailed(ctx context.Context, id string, errMsg string) error
}

// Store is the full persistence surface used by the services.
type Store interface {
	UserStore
	ChatStore
	UsageStore
	PaymentStore
	JobStore

	Ping(ctx context.Context) error
	Close() error
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// SummaryJob tracks one asynchronous insights summary of a chat session.
type SummaryJob struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID    string `gorm:"size:64;index;not null"`
	SessionID string `gorm:"size:64;index;not null"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	Result datatypes.JSON

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SummaryJob) TableName() string { return "summary_jobs" }

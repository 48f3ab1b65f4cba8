package gormstore

import (
	"context"

	"github.com/suPer8Hu/companion-api/internal/models"
	"gorm.io/datatypes"
)

// Job CRUD
func (s *Store) CreateJob(ctx context.Context, job *models.SummaryJob) error {
	return translate(s.db.WithContext(ctx).Create(job).Error)
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.SummaryJob, error) {
	var j models.SummaryJob
	if err := s.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &j, nil
}

func (s *Store) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&models.SummaryJob{}).
		Where("id = ? AND status = ?", id, models.JobQueued).
		Update("status", models.JobRunning).Error
}

func (s *Store) MarkJobSucceeded(ctx context.Context, id string, result datatypes.JSON) error {
	return s.db.WithContext(ctx).Model(&models.SummaryJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": models.JobSucceeded,
			"result": result,
			"error":  nil,
		}).Error
}

func (s *Store) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return s.db.WithContext(ctx).Model(&models.SummaryJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": models.JobFailed,
			"error":  errMsg,
			"result": nil,
		}).Error
}

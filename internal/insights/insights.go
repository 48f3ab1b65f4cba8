// Package insights produces "relationship insights" summaries of a chat
// session asynchronously.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/suPer8Hu/companion-api/internal/ai"
	"github.com/suPer8Hu/companion-api/internal/common"
	"github.com/suPer8Hu/companion-api/internal/models"
	"github.com/suPer8Hu/companion-api/internal/queue"
	"github.com/suPer8Hu/companion-api/internal/store"
	"gorm.io/datatypes"
)

var (
	ErrNoMessages    = errors.New("session has no messages")
	ErrNotConfigured = errors.New("insights provider not configured")
)

type Repo interface {
	store.ChatStore
	store.JobStore
}

type Service struct {
	repo      Repo
	publisher queue.Publisher
}

func NewService(repo Repo, publisher queue.Publisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

// Enqueue creates a queued job for a session the user owns or has written
// in, and publishes it.
func (s *Service) Enqueue(ctx context.Context, userID, sessionID string) (*models.SummaryJob, error) {
	if err := s.checkAccess(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	job := &models.SummaryJob{
		ID:        id,
		UserID:    userID,
		SessionID: sessionID,
		Status:    models.JobQueued,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if err := s.publisher.PublishJob(ctx, job.ID); err != nil {
		_ = s.repo.MarkJobFailed(ctx, job.ID, "enqueue failed")
		return nil, fmt.Errorf("publish job: %w", err)
	}
	return job, nil
}

func (s *Service) checkAccess(ctx context.Context, userID, sessionID string) error {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err == nil && sess.UserID == userID {
		return nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	msgs, err := s.repo.ListMessages(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Get returns the user's job; other users' jobs are reported as not found.
func (s *Service) Get(ctx context.Context, userID, jobID string) (*models.SummaryJob, error) {
	j, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.UserID != userID {
		return nil, store.ErrNotFound
	}
	return j, nil
}

// Processor runs queued jobs against the upstream model.
type Processor struct {
	repo     Repo
	provider ai.Provider
}

func NewProcessor(repo Repo, provider ai.Provider) *Processor {
	return &Processor{repo: repo, provider: provider}
}

const insightsPrompt = `You analyse a conversation between a user ("You") and their AI companion.
Reply with a single JSON object and nothing else, using these keys:
"summary" (2-3 sentences), "mood" (one word), "topics" (array of short strings),
"engagement" (integer 1-10), "suggestions" (array of up to 3 short strings for the user).`

func (p *Processor) Process(ctx context.Context, jobID string) error {
	jobStart := time.Now()

	if err := p.repo.UpdateJobStatusRunning(ctx, jobID); err != nil {
		return err
	}
	j, err := p.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	result, err := p.summarize(ctx, j)
	if err != nil {
		if markErr := p.repo.MarkJobFailed(ctx, jobID, err.Error()); markErr != nil {
			slog.ErrorContext(ctx, "mark job failed", "job_id", jobID, "err", markErr)
		}
		return err
	}
	if err := p.repo.MarkJobSucceeded(ctx, jobID, result); err != nil {
		return err
	}

	slog.InfoContext(ctx, "summary job done", "job_id", jobID, "session_id", j.SessionID, "total", time.Since(jobStart))
	return nil
}

func (p *Processor) summarize(ctx context.Context, j *models.SummaryJob) (datatypes.JSON, error) {
	if p.provider == nil {
		return nil, ErrNotConfigured
	}
	msgs, err := p.repo.ListMessages(ctx, j.UserID, j.SessionID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrNoMessages
	}

	var transcript strings.Builder
	for _, m := range msgs {
		speaker := "You"
		if m.Role == models.RoleAI {
			speaker = "Companion"
		}
		fmt.Fprintf(&transcript, "%s: %s\n", speaker, m.Text)
	}

	reply, err := p.provider.Chat(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: insightsPrompt},
		{Role: ai.RoleUser, Content: transcript.String()},
	})
	if err != nil {
		return nil, err
	}
	return toJSON(reply)
}

// toJSON keeps a JSON object reply as-is (code fences stripped) and wraps
// anything else as {"summary": reply}.
func toJSON(reply string) (datatypes.JSON, error) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "{") && json.Valid([]byte(s)) {
		return datatypes.JSON(s), nil
	}
	b, err := json.Marshal(map[string]string{"summary": strings.TrimSpace(reply)})
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

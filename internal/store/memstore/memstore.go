// Package memstore is the in-memory store.Store used when no database is
// configured. State is lost on restart.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/suPer8Hu/companion-api/internal/models"
	"github.com/suPer8Hu/companion-api/internal/store"
	"gorm.io/datatypes"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]models.User
	phones   map[string]string
	sessions map[string]models.Session
	messages map[string][]models.Message // by session id, insertion order
	usage    map[string]models.UsageStats
	payments map[string]models.Payment
	jobs     map[string]models.SummaryJob
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[string]models.User),
		phones:   make(map[string]string),
		sessions: make(map[string]models.Session),
		messages: make(map[string][]models.Message),
		usage:    make(map[string]models.UsageStats),
		payments: make(map[string]models.Payment),
		jobs:     make(map[string]models.SummaryJob),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error { return nil }

func now() time.Time { return time.Now().UTC() }

// users

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	s.mu.RLock()
	id, ok := s.phones[phone]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUserLocked(u)
}

func (s *Store) createUserLocked(u *models.User) error {
	if _, ok := s.users[u.ID]; ok {
		return store.ErrConflict
	}
	if u.Phone != nil {
		if _, ok := s.phones[*u.Phone]; ok {
			return store.ErrConflict
		}
		s.phones[*u.Phone] = u.ID
	}
	t := now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = t
	}
	u.UpdatedAt = t
	s.users[u.ID] = *u
	return nil
}

func (s *Store) EnsureUser(_ context.Context, u *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.ID]; ok {
		return &existing, nil
	}
	if err := s.createUserLocked(u); err != nil {
		return nil, err
	}
	created := s.users[u.ID]
	return &created, nil
}

func (s *Store) UpdateUserSettings(_ context.Context, id string, name, persona *string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if name != nil {
		u.Name = *name
	}
	if persona != nil {
		u.Persona = *persona
	}
	u.UpdatedAt = now()
	s.users[id] = u
	return &u, nil
}

func (s *Store) SetPremium(_ context.Context, id string, premium bool, until *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Premium = premium
	u.PremiumUntil = until
	u.UpdatedAt = now()
	s.users[id] = u
	return nil
}

// chat

func (s *Store) CreateSession(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return store.ErrConflict
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) LatestSession(_ context.Context, userID, sessionType string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Session
	for _, sess := range s.sessions {
		if sess.UserID != userID || sess.Type != sessionType {
			continue
		}
		if latest == nil || sess.StartedAt.After(latest.StartedAt) ||
			(sess.StartedAt.Equal(latest.StartedAt) && sess.ID > latest.ID) {
			cp := sess
			latest = &cp
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

func (s *Store) InsertMessage(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}
	s.messages[m.SessionID] = append(s.messages[m.SessionID], *m)
	return nil
}

func (s *Store) ListMessages(_ context.Context, userID, sessionID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, 0, len(s.messages[sessionID]))
	for _, m := range s.messages[sessionID] {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sortAsc(out)
	return out, nil
}

func (s *Store) ListRecentMessagesDesc(_ context.Context, sessionID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 6
	}
	s.mu.RLock()
	all := append([]models.Message(nil), s.messages[sessionID]...)
	s.mu.RUnlock()

	sortAsc(all)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.Message, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func sortAsc(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// usage

func (s *Store) GetUsage(_ context.Context, userID string) (*models.UsageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.usage[userID]
	if !ok {
		st = models.UsageStats{UserID: userID}
	}
	return &st, nil
}

func (s *Store) IncrementMessages(_ context.Context, userID string, delta int) (*models.UsageStats, error) {
	return s.bump(userID, func(st *models.UsageStats) { st.TotalMessages += delta }), nil
}

func (s *Store) AddCallSeconds(_ context.Context, userID string, seconds int) (*models.UsageStats, error) {
	return s.bump(userID, func(st *models.UsageStats) { st.TotalCallSeconds += seconds }), nil
}

func (s *Store) bump(userID string, apply func(*models.UsageStats)) *models.UsageStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.usage[userID]
	if !ok {
		st = models.UsageStats{UserID: userID}
	}
	apply(&st)
	st.UpdatedAt = now()
	s.usage[userID] = st
	return &st
}

// payments

func (s *Store) CreatePayment(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[p.OrderID]; ok {
		return store.ErrConflict
	}
	t := now()
	p.CreatedAt, p.UpdatedAt = t, t
	s.payments[p.OrderID] = *p
	return nil
}

func (s *Store) GetPayment(_ context.Context, orderID string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) UpdatePaymentStatus(_ context.Context, orderID string, status models.PaymentStatus) (models.PaymentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[orderID]
	if !ok {
		return "", store.ErrNotFound
	}
	prev := p.Status
	p.Status = status
	p.UpdatedAt = now()
	s.payments[orderID] = p
	return prev, nil
}

// jobs

func (s *Store) CreateJob(_ context.Context, j *models.SummaryJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return store.ErrConflict
	}
	t := now()
	j.CreatedAt, j.UpdatedAt = t, t
	s.jobs[j.ID] = *j
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*models.SummaryJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &j, nil
}

func (s *Store) UpdateJobStatusRunning(_ context.Context, id string) error {
	return s.updateJob(id, func(j *models.SummaryJob) {
		if j.Status == models.JobQueued {
			j.Status = models.JobRunning
		}
	})
}

func (s *Store) MarkJobSucceeded(_ context.Context, id string, result datatypes.JSON) error {
	return s.updateJob(id, func(j *models.SummaryJob) {
		j.Status = models.JobSucceeded
		j.Result = result
		j.Error = nil
	})
}

func (s *Store) MarkJobFailed(_ context.Context, id string, errMsg string) error {
	return s.updateJob(id, func(j *models.SummaryJob) {
		j.Status = models.JobFailed
		j.Error = &errMsg
		j.Result = nil
	})
}

func (s *Store) updateJob(id string, apply func(*models.SummaryJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	apply(&j)
	j.UpdatedAt = now()
	s.jobs[id] = j
	return nil
}

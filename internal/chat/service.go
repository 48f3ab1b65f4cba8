package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/suPer8Hu/companion-api/internal/ai"
	"github.com/suPer8Hu/companion-api/internal/common"
	"github.com/suPer8Hu/companion-api/internal/models"
	"github.com/suPer8Hu/companion-api/internal/persona"
	"github.com/suPer8Hu/companion-api/internal/store"
	"github.com/suPer8Hu/companion-api/internal/usage"
)

// Repo is the persistence the relay needs.
type Repo interface {
	store.ChatStore
	store.UsageStore
}

type Service struct {
	repo              Repo
	provider          ai.Provider
	personas          *persona.Registry
	gate              usage.Gate
	contextWindowSize int
	now               func() time.Time
}

// NewService builds the relay. A nil provider leaves the service unconfigured:
// every turn fails with ErrNotConfigured before anything is persisted.
func NewService(repo Repo, provider ai.Provider, personas *persona.Registry, gate usage.Gate, contextWindowSize int) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 6
	}
	return &Service{
		repo:              repo,
		provider:          provider,
		personas:          personas,
		gate:              gate,
		contextWindowSize: contextWindowSize,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Gate() usage.Gate { return s.gate }

// OpenSession returns the user's most recent chat session, creating one when
// none exists.
func (s *Service) OpenSession(ctx context.Context, userID string) (*models.Session, error) {
	sess, err := s.repo.LatestSession(ctx, userID, models.SessionTypeChat)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	sid, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	sess = &models.Session{
		ID:        sid,
		UserID:    userID,
		Type:      models.SessionTypeChat,
		StartedAt: s.now(),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) ListMessages(ctx context.Context, userID, sessionID string) ([]models.MessageView, error) {
	msgs, err := s.repo.ListMessages(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.View())
	}
	return out, nil
}

// Turn is one admitted exchange whose upstream stream is open.
type Turn struct {
	SessionID string

	svc          *Service
	userID       string
	stream       ai.Stream
	messageCount int
	messageLimit int
}

// StartTurn runs every step up to and including opening the upstream stream:
// validation, quota check, session resolution, inbound persist, context
// assembly. Errors returned here happen before any byte is streamed.
func (s *Service) StartTurn(ctx context.Context, user *models.User, content, sessionID string) (*Turn, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	stats, err := s.repo.GetUsage(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}
	decision := s.gate.Check(user.IsPremium(s.now()), stats)
	if !decision.Admit {
		return nil, &PaywallError{MessageCount: decision.MessageCount, MessageLimit: decision.MessageLimit}
	}

	sp, ok := s.provider.(ai.StreamProvider)
	if s.provider == nil || !ok {
		return nil, ErrNotConfigured
	}

	if strings.TrimSpace(sessionID) == "" {
		sess, err := s.OpenSession(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("open session: %w", err)
		}
		sessionID = sess.ID
	}

	inbound := &models.Message{
		ID:        common.MustULID(),
		SessionID: sessionID,
		UserID:    user.ID,
		Role:      models.RoleUser,
		Tag:       models.TagChat,
		Text:      content,
		CreatedAt: s.now(),
	}
	if err := s.repo.InsertMessage(ctx, inbound); err != nil {
		return nil, fmt.Errorf("insert user message: %w", err)
	}

	history, err := s.recentHistory(ctx, sessionID, inbound.ID)
	if err != nil {
		return nil, err
	}

	p := s.personas.Get(user.Persona)
	prompt := []ai.Message{
		{Role: ai.RoleSystem, Content: buildInstructions(p, history)},
		{Role: ai.RoleUser, Content: content},
	}

	stream, err := sp.OpenStream(ctx, prompt)
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			return nil, ErrNotConfigured
		}
		slog.ErrorContext(ctx, "open upstream stream", "user_id", user.ID, "session_id", sessionID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return &Turn{
		SessionID:    sessionID,
		svc:          s,
		userID:       user.ID,
		stream:       stream,
		messageCount: decision.MessageCount,
		messageLimit: decision.MessageLimit,
	}, nil
}

// recentHistory returns up to contextWindowSize messages preceding the
// inbound one, oldest first.
func (s *Service) recentHistory(ctx context.Context, sessionID, inboundID string) ([]models.Message, error) {
	recentDesc, err := s.repo.ListRecentMessagesDesc(ctx, sessionID, s.contextWindowSize+1)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	// reverse to ASC (oldest -> newest), skipping the message just written
	out := make([]models.Message, 0, len(recentDesc))
	for i := len(recentDesc) - 1; i >= 0; i-- {
		if recentDesc[i].ID == inboundID {
			continue
		}
		out = append(out, recentDesc[i])
	}
	if len(out) > s.contextWindowSize {
		out = out[len(out)-s.contextWindowSize:]
	}
	return out, nil
}

func buildInstructions(p persona.Persona, history []models.Message) string {
	var b strings.Builder
	b.WriteString(persona.BuildSystemPrompt(p))
	if len(history) == 0 {
		return b.String()
	}
	b.WriteString("\n\nRecent conversation:\n")
	for _, m := range history {
		speaker := "You"
		if m.Role == models.RoleAI {
			speaker = p.Name
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, m.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Run forwards upstream deltas to emit and finishes the turn with exactly one
// terminal frame. The assistant reply is persisted and counted only when the
// stream ends cleanly with non-empty text.
func (t *Turn) Run(ctx context.Context, emit func(frame any) error) error {
	defer t.stream.Close()

	var full strings.Builder
	for {
		delta, err := t.stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return t.fail(ctx, emit, fmt.Errorf("read upstream: %w", err))
		}
		full.WriteString(delta)
		if err := emit(DeltaFrame{Content: delta}); err != nil {
			return t.fail(ctx, emit, fmt.Errorf("write frame: %w", err))
		}
	}

	reply := full.String()
	count := t.messageCount
	if reply != "" {
		if err := t.svc.repo.InsertMessage(ctx, &models.Message{
			ID:        common.MustULID(),
			SessionID: t.SessionID,
			UserID:    t.userID,
			Role:      models.RoleAI,
			Tag:       models.TagChat,
			Text:      reply,
			CreatedAt: t.svc.now(),
		}); err != nil {
			return t.fail(ctx, emit, fmt.Errorf("insert assistant message: %w", err))
		}

		stats, err := t.svc.repo.IncrementMessages(ctx, t.userID, 1)
		if err != nil {
			slog.ErrorContext(ctx, "increment usage", "user_id", t.userID, "err", err)
			count++
		} else {
			count = stats.TotalMessages
		}
	}

	return emit(DoneFrame{
		Done:         true,
		SessionID:    t.SessionID,
		MessageCount: count,
		MessageLimit: t.messageLimit,
		FullResponse: reply,
	})
}

func (t *Turn) fail(ctx context.Context, emit func(frame any) error, err error) error {
	slog.WarnContext(ctx, "chat turn failed", "user_id", t.userID, "session_id", t.SessionID, "err", err)
	_ = emit(ErrorFrame{Error: "failed to generate a reply", Done: true})
	return err
}

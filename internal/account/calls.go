package account

import (
	"context"

	"github.com/suPer8Hu/companion-api/internal/models"
	"github.com/suPer8Hu/companion-api/internal/usage"
)

// CallTicket is what the browser voice SDK needs to start a call.
type CallTicket struct {
	AssistantID  string `json:"assistantId"`
	PublicKey    string `json:"publicKey,omitempty"`
	PersonaKey   string `json:"persona"`
	PersonaName  string `json:"personaName"`
	Greeting     string `json:"greeting"`
	MessageCount int    `json:"messageCount"`
	MessageLimit int    `json:"messageLimit"`
}

// StartCall applies the same free-tier gate as chat. When the decision is
// not admitted the ticket is nil.
func (s *Service) StartCall(ctx context.Context, u *models.User) (*CallTicket, usage.Decision, error) {
	stats, err := s.repo.GetUsage(ctx, u.ID)
	if err != nil {
		return nil, usage.Decision{}, err
	}
	d := s.gate.Check(u.IsPremium(s.now()), stats)
	if !d.Admit {
		return nil, d, nil
	}

	p := s.personas.Get(u.Persona)
	return &CallTicket{
		AssistantID:  s.opts.VapiAssistantID,
		PublicKey:    s.opts.VapiPublicKey,
		PersonaKey:   p.Key,
		PersonaName:  p.Name,
		Greeting:     p.Greeting,
		MessageCount: d.MessageCount,
		MessageLimit: d.MessageLimit,
	}, d, nil
}

func (s *Service) EndCall(ctx context.Context, userID string, durationSeconds int) (*models.UsageStats, error) {
	if durationSeconds < 0 {
		return nil, ErrInvalidCallLength
	}
	return s.repo.AddCallSeconds(ctx, userID, durationSeconds)
}

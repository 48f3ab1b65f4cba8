// Package account resolves callers to users and owns the OTP login flow,
// profile settings, premium upgrades and call accounting.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/suPer8Hu/companion-api/internal/auth"
	"github.com/suPer8Hu/companion-api/internal/models"
	"github.com/suPer8Hu/companion-api/internal/persona"
	"github.com/suPer8Hu/companion-api/internal/sms"
	"github.com/suPer8Hu/companion-api/internal/store"
	"github.com/suPer8Hu/companion-api/internal/store/redisstore"
	"github.com/suPer8Hu/companion-api/internal/usage"
)

var (
	ErrInvalidPhone      = errors.New("invalid phone number")
	ErrCooldown          = errors.New("otp recently sent")
	ErrCodeExpired       = errors.New("otp expired or not found")
	ErrInvalidCode       = errors.New("invalid otp")
	ErrTooManyAttempts   = errors.New("too many otp attempts")
	ErrUnknownPersona    = errors.New("unknown persona")
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidCallLength = errors.New("duration must be non-negative")
)

const (
	otpDigits      = 6
	maxOTPAttempts = 5
	maxNameLen     = 64
)

// numbers without a +country prefix are read as Indian
const defaultPhoneRegion = "IN"

// OTPStore keeps hashed one-time codes with expiry, resend cooldowns and
// attempt counters.
type OTPStore interface {
	SaveOTP(ctx context.Context, phone, codeHash string, ttl time.Duration) error
	GetOTP(ctx context.Context, phone string) (string, error)
	DeleteOTP(ctx context.Context, phone string) error
	AcquireCooldown(ctx context.Context, phone string, d time.Duration) (bool, error)
	ReleaseCooldown(ctx context.Context, phone string) error
	IncrAttempts(ctx context.Context, phone string, ttl time.Duration) (int64, error)
}

type Repo interface {
	store.UserStore
	store.UsageStore
}

type Options struct {
	JWTSecret   string
	JWTTTL      time.Duration
	OTPTTL      time.Duration
	OTPCooldown time.Duration

	DevUserID     string
	PremiumPeriod time.Duration

	VapiAssistantID string
	VapiPublicKey   string
}

type Service struct {
	repo     Repo
	otp      OTPStore
	sms      sms.Sender
	personas *persona.Registry
	gate     usage.Gate
	opts     Options
	now      func() time.Time
}

func NewService(repo Repo, otp OTPStore, sender sms.Sender, personas *persona.Registry, gate usage.Gate, opts Options) *Service {
	if sender == nil {
		sender = sms.LogSender{}
	}
	if opts.DevUserID == "" {
		opts.DevUserID = "dev-user"
	}
	return &Service{
		repo:     repo,
		otp:      otp,
		sms:      sender,
		personas: personas,
		gate:     gate,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DevUser returns the development fallback user, creating it on first use.
func (s *Service) DevUser(ctx context.Context) (*models.User, error) {
	return s.repo.EnsureUser(ctx, &models.User{
		ID:      s.opts.DevUserID,
		Name:    "Dev User",
		Persona: persona.DefaultKey,
	})
}

// UserFromToken verifies a bearer token and loads its user.
func (s *Service) UserFromToken(ctx context.Context, token string) (*models.User, error) {
	uid, err := auth.ParseJWT(token, s.opts.JWTSecret)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.GetUser(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return nil, auth.ErrInvalidToken
	}
	return u, err
}

// NormalizePhone parses a user-entered number and returns it in E.164 form.
func NormalizePhone(phone string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(phone), defaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func (s *Service) SendOTP(ctx context.Context, phone string) error {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	ok, err := s.otp.AcquireCooldown(ctx, phone, s.opts.OTPCooldown)
	if err != nil {
		return fmt.Errorf("otp cooldown: %w", err)
	}
	if !ok {
		return ErrCooldown
	}

	code, err := auth.GenerateOTP(otpDigits)
	if err != nil {
		return err
	}
	hash, err := auth.HashCode(code)
	if err != nil {
		return err
	}
	if err := s.otp.SaveOTP(ctx, phone, hash, s.opts.OTPTTL); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}

	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.opts.OTPTTL.Minutes()))
	if err := s.sms.Send(ctx, phone, body); err != nil {
		// nothing was delivered, so the user may retry right away
		_ = s.otp.DeleteOTP(ctx, phone)
		if relErr := s.otp.ReleaseCooldown(ctx, phone); relErr != nil {
			slog.WarnContext(ctx, "release otp cooldown", "err", relErr)
		}
		return err
	}
	return nil
}

// VerifyOTP checks the code, finds or creates the user for the phone and
// returns a signed session token.
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (string, *models.User, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return "", nil, err
	}

	hash, err := s.otp.GetOTP(ctx, phone)
	if errors.Is(err, redisstore.ErrNoCode) {
		return "", nil, ErrCodeExpired
	}
	if err != nil {
		return "", nil, fmt.Errorf("load otp: %w", err)
	}

	attempts, err := s.otp.IncrAttempts(ctx, phone, s.opts.OTPTTL)
	if err != nil {
		return "", nil, fmt.Errorf("otp attempts: %w", err)
	}
	if attempts > maxOTPAttempts {
		_ = s.otp.DeleteOTP(ctx, phone)
		return "", nil, ErrTooManyAttempts
	}
	if !auth.CheckCode(hash, strings.TrimSpace(code)) {
		return "", nil, ErrInvalidCode
	}
	_ = s.otp.DeleteOTP(ctx, phone)

	user, err := s.findOrCreateByPhone(ctx, phone)
	if err != nil {
		return "", nil, err
	}

	token, err := auth.SignJWT(user.ID, s.opts.JWTSecret, s.opts.JWTTTL)
	if err != nil {
		return "", nil, err
	}
	slog.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return token, user, nil
}

func (s *Service) findOrCreateByPhone(ctx context.Context, phone string) (*models.User, error) {
	u, err := s.repo.GetUserByPhone(ctx, phone)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	u = &models.User{
		ID:      uuid.NewString(),
		Phone:   &phone,
		Persona: persona.DefaultKey,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		// lost a signup race for the same phone
		if errors.Is(err, store.ErrConflict) {
			return s.repo.GetUserByPhone(ctx, phone)
		}
		return nil, err
	}
	return u, nil
}

type Profile struct {
	User         *models.User       `json:"user"`
	Usage        *models.UsageStats `json:"usage"`
	MessageLimit int                `json:"messageLimit"`
	IsPremium    bool               `json:"isPremium"`
}

func (s *Service) Profile(ctx context.Context, u *models.User) (*Profile, error) {
	stats, err := s.repo.GetUsage(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{
		User:         u,
		Usage:        stats,
		MessageLimit: s.gate.Limit,
		IsPremium:    u.IsPremium(s.now()),
	}, nil
}

func (s *Service) UpdateSettings(ctx context.Context, userID string, name, personaKey *string) (*models.User, error) {
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" || len(n) > maxNameLen {
			return nil, ErrInvalidName
		}
		name = &n
	}
	if personaKey != nil {
		if !s.personas.Has(*personaKey) {
			return nil, ErrUnknownPersona
		}
		k := s.personas.Get(*personaKey).Key
		personaKey = &k
	}
	return s.repo.UpdateUserSettings(ctx, userID, name, personaKey)
}

// GrantPremium flags the user premium for the configured period. A zero
// period grants premium without expiry.
func (s *Service) GrantPremium(ctx context.Context, userID string) error {
	var until *time.Time
	if s.opts.PremiumPeriod > 0 {
		t := s.now().Add(s.opts.PremiumPeriod)
		until = &t
	}
	return s.repo.SetPremium(ctx, userID, true, until)
}

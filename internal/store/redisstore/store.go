package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoCode is returned when no live OTP exists for a phone.
var ErrNoCode = errors.New("otp expired or not found")

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func codeKey(phone string) string     { return "otp:code:" + phone }
func cooldownKey(phone string) string { return "otp:cooldown:" + phone }
func attemptsKey(phone string) string { return "otp:attempts:" + phone }

// SaveOTP stores the hashed code and resets the attempt counter.
func (s *Store) SaveOTP(ctx context.Context, phone, codeHash string, ttl time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, codeKey(phone), codeHash, ttl)
	pipe.Del(ctx, attemptsKey(phone))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) GetOTP(ctx context.Context, phone string) (string, error) {
	v, err := s.rdb.Get(ctx, codeKey(phone)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoCode
	}
	return v, err
}

func (s *Store) DeleteOTP(ctx context.Context, phone string) error {
	return s.rdb.Del(ctx, codeKey(phone), attemptsKey(phone)).Err()
}

// AcquireCooldown reports false while a previous send is still cooling down.
func (s *Store) AcquireCooldown(ctx context.Context, phone string, d time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, cooldownKey(phone), 1, d).Result()
}

func (s *Store) ReleaseCooldown(ctx context.Context, phone string) error {
	return s.rdb.Del(ctx, cooldownKey(phone)).Err()
}

// IncrAttempts counts a verification attempt; the counter expires with the code.
func (s *Store) IncrAttempts(ctx context.Context, phone string, ttl time.Duration) (int64, error) {
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, attemptsKey(phone))
	pipe.Expire(ctx, attemptsKey(phone), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

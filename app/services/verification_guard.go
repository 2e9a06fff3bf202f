// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRateLimited = errors.New("rate limited")

// VerificationGuard throttles verification resends and failed code attempts per owner and channel
type VerificationGuard interface {
	// AllowResend reserves the resend slot; it fails with ErrRateLimited inside the cooldown
	AllowResend(ctx context.Context, ownerType string, ownerID uint, kind string) error
	// ReleaseResend gives back a reserved slot when the resend did not go out
	ReleaseResend(ctx context.Context, ownerType string, ownerID uint, kind string) error
	// CheckAttempts fails with ErrRateLimited once too many wrong codes were submitted
	CheckAttempts(ctx context.Context, ownerType string, ownerID uint, kind string) error
	RecordFailure(ctx context.Context, ownerType string, ownerID uint, kind string) error
	Reset(ctx context.Context, ownerType string, ownerID uint, kind string) error
}

type RedisVerificationGuard struct {
	rdb            *redis.Client
	prefix         string
	resendCooldown time.Duration
	maxAttempts    int
	attemptWindow  time.Duration
}

func NewRedisVerificationGuard(rdb *redis.Client, prefix string, resendCooldown time.Duration, maxAttempts int, attemptWindow time.Duration) VerificationGuard {
	return &RedisVerificationGuard{
		rdb:            rdb,
		prefix:         prefix + "verification:",
		resendCooldown: resendCooldown,
		maxAttempts:    maxAttempts,
		attemptWindow:  attemptWindow,
	}
}

func (g *RedisVerificationGuard) key(kind, ownerType string, ownerID uint, channel string) string {
	return g.prefix + strings.Join([]string{kind, ownerType, strconv.FormatUint(uint64(ownerID), 10), channel}, ":")
}

func (g *RedisVerificationGuard) AllowResend(ctx context.Context, ownerType string, ownerID uint, kind string) error {
	if g.resendCooldown <= 0 {
		return nil
	}
	ok, err := g.rdb.SetNX(ctx, g.key("resend", ownerType, ownerID, kind), 1, g.resendCooldown).Result()
	if err != nil {
		return fmt.Errorf("verification guard unavailable: %w", err)
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}

func (g *RedisVerificationGuard) ReleaseResend(ctx context.Context, ownerType string, ownerID uint, kind string) error {
	if g.resendCooldown <= 0 {
		return nil
	}
	return g.rdb.Del(ctx, g.key("resend", ownerType, ownerID, kind)).Err()
}

func (g *RedisVerificationGuard) CheckAttempts(ctx context.Context, ownerType string, ownerID uint, kind string) error {
	if g.maxAttempts <= 0 {
		return nil
	}
	n, err := g.rdb.Get(ctx, g.key("attempts", ownerType, ownerID, kind)).Int()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("verification guard unavailable: %w", err)
	}
	if n >= g.maxAttempts {
		return ErrRateLimited
	}
	return nil
}

func (g *RedisVerificationGuard) RecordFailure(ctx context.Context, ownerType string, ownerID uint, kind string) error {
	key := g.key("attempts", ownerType, ownerID, kind)
	n, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return g.rdb.Expire(ctx, key, g.attemptWindow).Err()
	}
	return nil
}

func (g *RedisVerificationGuard) Reset(ctx context.Context, ownerType string, ownerID uint, kind string) error {
	return g.rdb.Del(ctx, g.key("attempts", ownerType, ownerID, kind), g.key("resend", ownerType, ownerID, kind)).Err()
}

// NoopVerificationGuard never throttles
type NoopVerificationGuard struct{}

func NewNoopVerificationGuard() VerificationGuard { return NoopVerificationGuard{} }

func (NoopVerificationGuard) AllowResend(context.Context, string, uint, string) error   { return nil }
func (NoopVerificationGuard) ReleaseResend(context.Context, string, uint, string) error { return nil }
func (NoopVerificationGuard) CheckAttempts(context.Context, string, uint, string) error { return nil }
func (NoopVerificationGuard) RecordFailure(context.Context, string, uint, string) error { return nil }
func (NoopVerificationGuard) Reset(context.Context, string, uint, string) error         { return nil }

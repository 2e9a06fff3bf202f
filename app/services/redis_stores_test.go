package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func TestRedisVerificationGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("ResendCooldown", func(t *testing.T) {
		mr, rc := newTestRedis(t)
		guard := NewRedisVerificationGuard(rc, "test:", time.Minute, 3, time.Hour)

		require.NoError(t, guard.AllowResend(ctx, "lead", 1, "phone"))
		assert.ErrorIs(t, guard.AllowResend(ctx, "lead", 1, "phone"), ErrRateLimited)
		assert.NoError(t, guard.AllowResend(ctx, "lead", 1, "email"), "channels are throttled separately")
		assert.NoError(t, guard.AllowResend(ctx, "partner", 1, "phone"), "owner types are throttled separately")

		mr.FastForward(time.Minute + time.Second)
		assert.NoError(t, guard.AllowResend(ctx, "lead", 1, "phone"))
	})

	t.Run("ReleaseFreesSlot", func(t *testing.T) {
		mr, rc := newTestRedis(t)
		guard := NewRedisVerificationGuard(rc, "test:", time.Minute, 3, time.Hour)

		require.NoError(t, guard.AllowResend(ctx, "partner", 5, "phone"))
		require.True(t, mr.Exists("test:verification:resend:partner:5:phone"))
		require.NoError(t, guard.ReleaseResend(ctx, "partner", 5, "phone"))
		assert.False(t, mr.Exists("test:verification:resend:partner:5:phone"))
		assert.NoError(t, guard.AllowResend(ctx, "partner", 5, "phone"))
	})

	t.Run("AttemptLimit", func(t *testing.T) {
		mr, rc := newTestRedis(t)
		guard := NewRedisVerificationGuard(rc, "test:", 0, 3, 15*time.Minute)

		for range 3 {
			require.NoError(t, guard.CheckAttempts(ctx, "lead", 2, "phone"))
			require.NoError(t, guard.RecordFailure(ctx, "lead", 2, "phone"))
		}
		assert.ErrorIs(t, guard.CheckAttempts(ctx, "lead", 2, "phone"), ErrRateLimited)

		ttl := mr.TTL("test:verification:attempts:lead:2:phone")
		assert.Equal(t, 15*time.Minute, ttl, "window starts at the first failure")

		mr.FastForward(16 * time.Minute)
		assert.NoError(t, guard.CheckAttempts(ctx, "lead", 2, "phone"))
	})

	t.Run("ResetClearsCounters", func(t *testing.T) {
		_, rc := newTestRedis(t)
		guard := NewRedisVerificationGuard(rc, "test:", time.Minute, 1, time.Hour)

		require.NoError(t, guard.AllowResend(ctx, "user", 3, "email"))
		require.NoError(t, guard.RecordFailure(ctx, "user", 3, "email"))
		require.ErrorIs(t, guard.CheckAttempts(ctx, "user", 3, "email"), ErrRateLimited)

		require.NoError(t, guard.Reset(ctx, "user", 3, "email"))
		assert.NoError(t, guard.CheckAttempts(ctx, "user", 3, "email"))
		assert.NoError(t, guard.AllowResend(ctx, "user", 3, "email"))
	})

	t.Run("UnavailableRedis", func(t *testing.T) {
		mr, rc := newTestRedis(t)
		guard := NewRedisVerificationGuard(rc, "test:", time.Minute, 3, time.Hour)
		mr.Close()

		err := guard.AllowResend(ctx, "lead", 4, "phone")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrRateLimited)
	})
}

func TestRedisAdminSessionStore(t *testing.T) {
	ctx := context.Background()
	mr, rc := newTestRedis(t)
	store := NewRedisAdminSessionStore(rc, "test:")

	sess, err := store.Create(ctx, 5, time.Hour)
	require.NoError(t, err)
	assert.Len(t, sess.Token, 64)
	assert.Equal(t, uint(5), sess.AdminID)

	got, err := store.Get(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(5), got.AdminID)
	assert.WithinDuration(t, sess.ExpiresAt, got.ExpiresAt, time.Second)

	_, err = store.Get(ctx, "unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Delete(ctx, sess.Token))
	_, err = store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	short, err := store.Create(ctx, 6, time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, short.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryAdminSessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryAdminSessionStore()

	sess, err := store.Create(ctx, 1, time.Hour)
	require.NoError(t, err)
	got, err := store.Get(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(1), got.AdminID)

	expired, err := store.Create(ctx, 2, -time.Second)
	require.NoError(t, err)
	_, err = store.Get(ctx, expired.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Delete(ctx, sess.Token))
	_, err = store.Get(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisRevocationStore(t *testing.T) {
	ctx := context.Background()
	mr, rc := newTestRedis(t)
	store := NewRedisRevocationStore(rc, "test:")

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Now().Add(10*time.Minute)))
	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// already expired tokens are not stored
	require.NoError(t, store.Revoke(ctx, "jti-2", time.Now().Add(-time.Minute)))
	revoked, err = store.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.FastForward(11 * time.Minute)
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	svc, err := NewTokenService(time.Minute, time.Hour, "iss", "", false, "", "", testSecret, store)
	require.NoError(t, err)
	access, _, err := svc.GenerateTokens(SubjectUser, 1)
	require.NoError(t, err)
	require.NoError(t, svc.RevokeToken(ctx, access))
	_, err = svc.ValidateToken(ctx, access)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

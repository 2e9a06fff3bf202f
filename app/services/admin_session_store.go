// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amirphl/realty-workflow/utils"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrCaptchaUnavailable = errors.New("captcha unavailable")
)

// AdminSession is a server-side admin login
type AdminSession struct {
	Token     string
	AdminID   uint
	ExpiresAt time.Time
}

// AdminSessionStore keeps opaque admin sessions on the server
type AdminSessionStore interface {
	Create(ctx context.Context, adminID uint, ttl time.Duration) (*AdminSession, error)
	Get(ctx context.Context, token string) (*AdminSession, error)
	Delete(ctx context.Context, token string) error
}

func newSessionToken() (string, error) {
	b := make([]byte, utils.SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// RedisAdminSessionStore stores sessions as redis keys that expire with the session
type RedisAdminSessionStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisAdminSessionStore(rdb *redis.Client, prefix string) AdminSessionStore {
	return &RedisAdminSessionStore{rdb: rdb, prefix: prefix + "admin_session:"}
}

func (s *RedisAdminSessionStore) Create(ctx context.Context, adminID uint, ttl time.Duration) (*AdminSession, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}
	expiresAt := utils.UTCNow().Add(ttl)
	value := fmt.Sprintf("%d:%d", adminID, expiresAt.Unix())
	if err := s.rdb.Set(ctx, s.prefix+token, value, ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store admin session: %w", err)
	}
	return &AdminSession{Token: token, AdminID: adminID, ExpiresAt: expiresAt}, nil
}

func (s *RedisAdminSessionStore) Get(ctx context.Context, token string) (*AdminSession, error) {
	value, err := s.rdb.Get(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load admin session: %w", err)
	}

	var adminID, expires uint64
	if _, err := fmt.Sscanf(value, "%d:%d", &adminID, &expires); err != nil {
		return nil, ErrSessionNotFound
	}
	return &AdminSession{Token: token, AdminID: uint(adminID), ExpiresAt: time.Unix(int64(expires), 0).UTC()}, nil
}

func (s *RedisAdminSessionStore) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, s.prefix+token).Err()
}

// MemoryAdminSessionStore is used when redis is not configured
type MemoryAdminSessionStore struct {
	mu       sync.Mutex
	sessions map[string]AdminSession
}

func NewMemoryAdminSessionStore() AdminSessionStore {
	return &MemoryAdminSessionStore{sessions: make(map[string]AdminSession)}
}

func (s *MemoryAdminSessionStore) Create(ctx context.Context, adminID uint, ttl time.Duration) (*AdminSession, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}
	sess := AdminSession{Token: token, AdminID: adminID, ExpiresAt: utils.UTCNow().Add(ttl)}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := utils.UTCNow()
	for k, v := range s.sessions {
		if now.After(v.ExpiresAt) {
			delete(s.sessions, k)
		}
	}
	s.sessions[token] = sess
	return &sess, nil
}

func (s *MemoryAdminSessionStore) Get(ctx context.Context, token string) (*AdminSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if utils.UTCNow().After(sess.ExpiresAt) {
		delete(s.sessions, token)
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemoryAdminSessionStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

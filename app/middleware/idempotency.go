package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/dto"
)

// IdempotencyKeyHeader is the optional request header that makes a POST replayable
const IdempotencyKeyHeader = "Idempotency-Key"

// how long the in-progress marker survives a handler that never finishes
const provisionalLockTTL = 60 * time.Second

type idempEntry struct {
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	Body        []byte    `json:"body"`
	ContentType string    `json:"content_type"`
	BodySHA256  string    `json:"body_sha256"`
	CreatedAt   time.Time `json:"created_at"`
}

// Idempotency replays the stored response when a mutating request repeats its Idempotency-Key.
// Requests without the header pass through untouched. A nil client disables the middleware.
func Idempotency(rdb *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		if rdb == nil {
			return c.Next()
		}
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(IdempotencyKeyHeader))
		if key == "" {
			return c.Next()
		}
		if len(key) > 255 {
			return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
				Success: false,
				Message: "Idempotency-Key is too long",
				Error:   dto.ErrorDetail{Code: "INVALID_IDEMPOTENCY_KEY"},
			})
		}

		bhash := bodyHash(c.Body())
		redisKey := prefix + "idemp:" + strings.ToLower(c.Method()) + ":" + c.Path() + ":" + key

		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		ok, err := provisionalSet(ctx, rdb, redisKey, idempEntry{
			InProgress: true,
			BodySHA256: bhash,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
				Success: false,
				Message: "Idempotency store unavailable",
				Error:   dto.ErrorDetail{Code: "IDEMPOTENCY_UNAVAILABLE"},
			})
		}
		if !ok {
			cur, loadErr := loadEntry(ctx, rdb, redisKey)
			if loadErr != nil && logger != nil {
				logger.Warn("failed to load idempotency entry", zap.String("key", redisKey), zap.Error(loadErr))
			}
			if cur.BodySHA256 != "" && cur.BodySHA256 != bhash {
				return c.Status(fiber.StatusConflict).JSON(dto.APIResponse{
					Success: false,
					Message: "Idempotency-Key reused with a different body",
					Error:   dto.ErrorDetail{Code: "IDEMPOTENCY_KEY_REUSED"},
				})
			}
			if !cur.InProgress && cur.Code != 0 {
				if cur.ContentType != "" {
					c.Set(fiber.HeaderContentType, cur.ContentType)
				}
				c.Set("Idempotent-Replayed", "true")
				return c.Status(cur.Code).Send(cur.Body)
			}
			return c.Status(fiber.StatusConflict).JSON(dto.APIResponse{
				Success: false,
				Message: "Request is already in progress",
				Error:   dto.ErrorDetail{Code: "REQUEST_IN_PROGRESS"},
			})
		}

		if err := c.Next(); err != nil {
			// let nothing be replayed for a request that errored out of the chain
			_ = rdb.Del(context.Background(), redisKey).Err()
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			// server errors are retryable, so the key is released
			_ = rdb.Del(context.Background(), redisKey).Err()
			return nil
		}

		final := idempEntry{
			Code:        status,
			Body:        append([]byte(nil), c.Response().Body()...),
			ContentType: string(c.Response().Header.ContentType()),
			BodySHA256:  bhash,
			CreatedAt:   time.Now().UTC(),
		}
		if err := saveFinal(context.Background(), rdb, redisKey, final, ttl); err != nil && logger != nil {
			logger.Warn("failed to store idempotent response", zap.String("key", redisKey), zap.Error(err))
		}
		return nil
	}
}

func bodyHash(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

func provisionalSet(ctx context.Context, rdb *redis.Client, key string, entry idempEntry) (bool, error) {
	payload, _ := json.Marshal(entry)
	return rdb.SetNX(ctx, key, payload, provisionalLockTTL).Result()
}

func loadEntry(ctx context.Context, rdb *redis.Client, key string) (idempEntry, error) {
	var e idempEntry
	v, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return e, err
	}
	_ = json.Unmarshal(v, &e)
	return e, nil
}

func saveFinal(ctx context.Context, rdb *redis.Client, key string, entry idempEntry, ttl time.Duration) error {
	payload, _ := json.Marshal(entry)
	return rdb.Set(ctx, key, payload, ttl).Err()
}

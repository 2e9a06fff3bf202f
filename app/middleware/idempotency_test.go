package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newIdempotentApp(t *testing.T, rdb *redis.Client, status int) (*fiber.App, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	app := fiber.New()
	app.Post("/offers", Idempotency(rdb, "test:", time.Hour, zap.NewNop()), func(c fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(status).JSON(fiber.Map{"call": n})
	})
	app.Get("/offers", Idempotency(rdb, "test:", time.Hour, zap.NewNop()), func(c fiber.Ctx) error {
		calls.Add(1)
		return c.SendStatus(fiber.StatusOK)
	})
	return app, &calls
}

func post(t *testing.T, app *fiber.App, key, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/offers", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestIdempotency(t *testing.T) {
	t.Run("ReplaysStoredResponse", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		app, calls := newIdempotentApp(t, rdb, fiber.StatusCreated)

		first, firstBody := post(t, app, "key-1", `{"amount":"1"}`)
		assert.Equal(t, fiber.StatusCreated, first.StatusCode)

		second, secondBody := post(t, app, "key-1", `{"amount":"1"}`)
		assert.Equal(t, fiber.StatusCreated, second.StatusCode)
		assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
		assert.Equal(t, firstBody, secondBody)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("DifferentBodyConflicts", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		app, calls := newIdempotentApp(t, rdb, fiber.StatusCreated)

		post(t, app, "key-2", `{"amount":"1"}`)
		resp, body := post(t, app, "key-2", `{"amount":"2"}`)
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
		assert.Contains(t, body, "IDEMPOTENCY_KEY_REUSED")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("InProgressConflicts", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		app, calls := newIdempotentApp(t, rdb, fiber.StatusCreated)

		require.NoError(t, mr.Set("test:idemp:post:/offers:key-3", `{"in_progress":true,"body_sha256":""}`))
		resp, body := post(t, app, "key-3", `{}`)
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
		assert.Contains(t, body, "REQUEST_IN_PROGRESS")
		assert.Zero(t, calls.Load())
	})

	t.Run("ServerErrorReleasesKey", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		app, calls := newIdempotentApp(t, rdb, fiber.StatusBadGateway)

		post(t, app, "key-4", `{}`)
		assert.False(t, mr.Exists("test:idemp:post:/offers:key-4"))
		post(t, app, "key-4", `{}`)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("PassThrough", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		app, calls := newIdempotentApp(t, rdb, fiber.StatusCreated)

		post(t, app, "", `{}`)
		post(t, app, "", `{}`)
		assert.Equal(t, int32(2), calls.Load(), "no key, no replay")

		req := httptest.NewRequest(http.MethodGet, "/offers", nil)
		req.Header.Set(IdempotencyKeyHeader, "key-5")
		_, err := app.Test(req)
		require.NoError(t, err)
		_, err = app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, int32(4), calls.Load(), "reads are never replayed")
	})

	t.Run("KeyTooLong", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		app, _ := newIdempotentApp(t, rdb, fiber.StatusCreated)

		resp, _ := post(t, app, strings.Repeat("k", 256), `{}`)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("NilClientDisables", func(t *testing.T) {
		app, calls := newIdempotentApp(t, nil, fiber.StatusCreated)
		post(t, app, "key-6", `{}`)
		post(t, app, "key-6", `{}`)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("StoreDown", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		app, calls := newIdempotentApp(t, rdb, fiber.StatusCreated)
		mr.Close()

		resp, _ := post(t, app, "key-7", `{}`)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
		assert.Zero(t, calls.Load())
	})
}

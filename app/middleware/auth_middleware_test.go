package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/realty-workflow/app/services"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/utils"
)

type fakeInvestors map[string]error

func (f fakeInvestors) Authenticate(ctx context.Context, token string) (*models.InstitutionalInvestor, error) {
	if err, ok := f[token]; ok {
		if err != nil {
			return nil, err
		}
		return &models.InstitutionalInvestor{ID: 7}, nil
	}
	return nil, businessflow.NewBusinessError("UNAUTHENTICATED", "invalid session", businessflow.ErrUnauthenticated)
}

type fakeAdmins map[string]uint

func (f fakeAdmins) Authenticate(ctx context.Context, token string) (*models.Admin, error) {
	if id, ok := f[token]; ok {
		return &models.Admin{ID: id}, nil
	}
	return nil, businessflow.NewBusinessError("UNAUTHENTICATED", "invalid session", businessflow.ErrUnauthenticated)
}

func newAuthApp(t *testing.T) (*fiber.App, services.TokenService) {
	t.Helper()
	tokens, err := services.NewTokenService(15*time.Minute, time.Hour, "iss", "aud", false, "", "", "test-secret-key-for-jwt-signing-32-chars", nil)
	require.NoError(t, err)

	m := NewAuthMiddleware(tokens,
		fakeInvestors{
			"good-session":    nil,
			"expired-session": businessflow.NewBusinessError("SESSION_EXPIRED", "expired", businessflow.ErrSessionExpired),
		},
		fakeAdmins{"admin-session": 1},
	)

	app := fiber.New()
	app.Get("/partner", m.Authenticate(services.SubjectPartner), func(c fiber.Ctx) error {
		return c.SendString(fmt.Sprint(c.Locals(LocalPartnerID)))
	})
	app.Get("/investor", m.InstitutionalAuthenticate(), func(c fiber.Ctx) error {
		return c.SendString(fmt.Sprint(c.Locals(LocalInvestor).(*models.InstitutionalInvestor).ID))
	})
	app.Get("/admin", m.AdminAuthenticate(), func(c fiber.Ctx) error {
		return c.SendString(fmt.Sprint(c.Locals(LocalAdmin).(*models.Admin).ID))
	})
	return app, tokens
}

func TestAuthMiddleware(t *testing.T) {
	app, tokens := newAuthApp(t)

	partnerAccess, partnerRefresh, err := tokens.GenerateTokens(services.SubjectPartner, 12)
	require.NoError(t, err)
	userAccess, _, err := tokens.GenerateTokens(services.SubjectUser, 13)
	require.NoError(t, err)
	revoked, _, err := tokens.GenerateTokens(services.SubjectPartner, 14)
	require.NoError(t, err)
	require.NoError(t, tokens.RevokeToken(context.Background(), revoked))

	tests := []struct {
		name   string
		path   string
		header string
		cookie *http.Cookie
		status int
	}{
		{"partner ok", "/partner", "Bearer " + partnerAccess, nil, fiber.StatusOK},
		{"partner missing header", "/partner", "", nil, fiber.StatusUnauthorized},
		{"partner malformed header", "/partner", "Token " + partnerAccess, nil, fiber.StatusUnauthorized},
		{"partner refresh token", "/partner", "Bearer " + partnerRefresh, nil, fiber.StatusUnauthorized},
		{"user token on partner route", "/partner", "Bearer " + userAccess, nil, fiber.StatusUnauthorized},
		{"revoked token", "/partner", "Bearer " + revoked, nil, fiber.StatusUnauthorized},
		{"investor bearer", "/investor", "Bearer good-session", nil, fiber.StatusOK},
		{"investor cookie", "/investor", "", &http.Cookie{Name: utils.InstitutionalSessionCookie, Value: "good-session"}, fiber.StatusOK},
		{"investor expired", "/investor", "Bearer expired-session", nil, fiber.StatusUnauthorized},
		{"investor unknown", "/investor", "Bearer nope", nil, fiber.StatusUnauthorized},
		{"investor none", "/investor", "", nil, fiber.StatusUnauthorized},
		{"admin cookie", "/admin", "", &http.Cookie{Name: utils.AdminSessionCookie, Value: "admin-session"}, fiber.StatusOK},
		{"admin unknown", "/admin", "Bearer forged", nil, fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/dto"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
	"github.com/amirphl/realty-workflow/models"
)

type stubLeadFlow struct {
	businessflow.LeadFlow
	got          *dto.CreateLeadRequest
	updateCalled bool
	err          error
}

func (s *stubLeadFlow) CreateLead(ctx context.Context, req *dto.CreateLeadRequest, metadata *businessflow.ClientMetadata) (*dto.CreateLeadResponse, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &dto.CreateLeadResponse{
		Message:              "Lead created successfully",
		Lead:                 dto.LeadDTO{ID: 1, Type: req.Type, Email: req.Email},
		RequiresVerification: req.Type == models.LeadTypeBuyer,
	}, nil
}

func (s *stubLeadFlow) UpdateLeadStatus(ctx context.Context, id uint, req *dto.UpdateLeadStatusRequest, metadata *businessflow.ClientMetadata) (*dto.LeadDTO, error) {
	s.updateCalled = true
	return &dto.LeadDTO{ID: id}, nil
}

type stubVerificationFlow struct {
	businessflow.VerificationFlow
	err error
}

func (s *stubVerificationFlow) VerifyPhone(ctx context.Context, ownerType string, ownerID uint, code string, metadata *businessflow.ClientMetadata) (*dto.VerificationResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.VerificationResponse{Message: "Phone verified successfully", OwnerType: ownerType, OwnerID: ownerID, Kind: models.VerificationKindPhone}, nil
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   dto.ErrorDetail `json:"error"`
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out apiResponse
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestLeadHandlerCreateLead(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		flow := &stubLeadFlow{}
		app := fiber.New()
		app.Post("/leads", NewLeadHandler(flow, zap.NewNop()).CreateLead)

		status, out := doJSON(t, app, http.MethodPost, "/leads",
			`{"type":"buyer","name":"Bea","email":"bea@example.com","phone":"+12125550100"}`)
		assert.Equal(t, fiber.StatusCreated, status)
		assert.True(t, out.Success)
		require.NotNil(t, flow.got)
		assert.Equal(t, "bea@example.com", flow.got.Email)
	})

	t.Run("ValidationError", func(t *testing.T) {
		flow := &stubLeadFlow{}
		app := fiber.New()
		app.Post("/leads", NewLeadHandler(flow, zap.NewNop()).CreateLead)

		status, out := doJSON(t, app, http.MethodPost, "/leads", `{"type":"tenant","name":"","email":"nope","phone":"1"}`)
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.False(t, out.Success)
		assert.Equal(t, "VALIDATION_ERROR", out.Error.Code)
		assert.Nil(t, flow.got, "flow is not reached")
	})

	t.Run("MalformedBody", func(t *testing.T) {
		app := fiber.New()
		app.Post("/leads", NewLeadHandler(&stubLeadFlow{}, zap.NewNop()).CreateLead)

		status, out := doJSON(t, app, http.MethodPost, "/leads", `{"type":`)
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "INVALID_REQUEST", out.Error.Code)
	})

	t.Run("UnexpectedErrorIsOpaque", func(t *testing.T) {
		flow := &stubLeadFlow{err: businessflow.NewBusinessError("CREATE_LEAD_FAILED", "Failed to create lead", errors.New("pq: relation does not exist"))}
		app := fiber.New()
		app.Post("/leads", NewLeadHandler(flow, zap.NewNop()).CreateLead)

		status, out := doJSON(t, app, http.MethodPost, "/leads",
			`{"type":"seller","name":"Sam","email":"sam@example.com","phone":"+17185550100"}`)
		assert.Equal(t, fiber.StatusInternalServerError, status)
		assert.Equal(t, "CREATE_LEAD_FAILED", out.Error.Code)
		assert.NotContains(t, out.Message, "pq:")
	})
}

func TestBadInputStopsTheHandler(t *testing.T) {
	flow := &stubLeadFlow{}
	app := fiber.New()
	app.Put("/leads/:id/status", NewLeadHandler(flow, zap.NewNop()).UpdateLeadStatus)

	for _, path := range []string{"/leads/abc/status", "/leads/0/status"} {
		status, out := doJSON(t, app, http.MethodPut, path, `{"status":"contacted"}`)
		assert.Equal(t, fiber.StatusBadRequest, status, path)
		assert.Equal(t, "INVALID_ID", out.Error.Code, path)
	}

	status, out := doJSON(t, app, http.MethodPut, "/leads/3/status", `{"status":`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_REQUEST", out.Error.Code)
	assert.False(t, flow.updateCalled, "flow is not reached")
}

func TestSetSessionCookie(t *testing.T) {
	app := fiber.New()
	app.Get("/login", func(c fiber.Ctx) error {
		setSessionCookie(c, "investor_session", "tok", time.Now().Add(2*time.Hour).UTC().Format(time.RFC3339), true)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/login", nil))
	require.NoError(t, err)
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "tok", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.InDelta(t, 2*60*60, c.MaxAge, 5, "lifetime does not depend on the client clock")
}

func TestVerificationHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"ok", nil, fiber.StatusOK, ""},
		{"wrong code", businessflow.NewBusinessError("INVALID_TOKEN", "bad", businessflow.ErrInvalidToken), fiber.StatusBadRequest, "INVALID_TOKEN"},
		{"expired", businessflow.NewBusinessError("VERIFICATION_EXPIRED", "old", businessflow.ErrVerificationExpired), fiber.StatusBadRequest, "VERIFICATION_EXPIRED"},
		{"already verified", businessflow.NewBusinessError("ALREADY_VERIFIED", "done", businessflow.ErrAlreadyVerified), fiber.StatusConflict, "ALREADY_VERIFIED"},
		{"unknown lead", businessflow.NewBusinessError("LEAD_NOT_FOUND", "missing", businessflow.ErrLeadNotFound), fiber.StatusNotFound, "NOT_FOUND"},
		{"throttled", businessflow.NewBusinessError("TOO_MANY_REQUESTS", "slow down", businessflow.ErrTooManyRequests), fiber.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Post("/verify-phone", NewVerificationHandler(&stubVerificationFlow{err: tt.err}, zap.NewNop()).VerifyLeadPhone)

			status, out := doJSON(t, app, http.MethodPost, "/verify-phone", `{"lead_id":5,"code":"123456"}`)
			assert.Equal(t, tt.status, status)
			if tt.code != "" {
				assert.Equal(t, tt.code, out.Error.Code)
			} else {
				assert.True(t, out.Success)
			}
		})
	}
}

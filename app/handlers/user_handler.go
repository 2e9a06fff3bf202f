package handlers

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/middleware"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
)

// UserHandler serves site user accounts
type UserHandler struct {
	baseHandler
	userFlow businessflow.UserFlow
}

func NewUserHandler(userFlow businessflow.UserFlow, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		baseHandler: newBaseHandler(logger),
		userFlow:    userFlow,
	}
}

// Register creates a user and sends an email verification link
// @Summary Register User
// @Tags Users
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body dto.UserRegisterRequest true "Account data"
// @Success 201 {object} dto.APIResponse{data=dto.UserRegisterResponse}
// @Failure 400 {object} dto.APIResponse "Validation error or duplicate username/email"
// @Router /api/v1/users/register [post]
func (h *UserHandler) Register(c fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/users/register")
	defer cancel()

	res, err := h.userFlow.Register(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "User registration failed", "USER_REGISTRATION_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, res.Message, res)
}

// Login
// @Summary User Login
// @Tags Users
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.APIResponse{data=dto.UserLoginResponse}
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 403 {object} dto.APIResponse "Email not verified"
// @Router /api/v1/users/login [post]
func (h *UserHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/users/login")
	defer cancel()

	res, err := h.userFlow.Login(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Login failed", "LOGIN_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", res)
}

// @Summary Refresh User Token
// @Tags Users
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.TokenPairDTO}
// @Router /api/v1/users/refresh [post]
func (h *UserHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/users/refresh")
	defer cancel()

	pair, err := h.userFlow.Refresh(ctx, &req)
	if err != nil {
		return h.handleFlowError(c, err, "Token refresh failed", "REFRESH_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Token refreshed", pair)
}

// Logout revokes the presented access token and, when supplied, the refresh token
// @Summary User Logout
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.LogoutRequest false "Optional refresh token to revoke"
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/users/logout [post]
func (h *UserHandler) Logout(c fiber.Ctx) error {
	userID, _ := c.Locals(middleware.LocalUserID).(uint)
	accessToken, _ := c.Locals(middleware.LocalAccessToken).(string)
	if userID == 0 || accessToken == "" {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHENTICATED", nil)
	}

	var req dto.LogoutRequest
	if len(c.Body()) > 0 {
		if !h.bindJSON(c, &req) {
			return nil
		}
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/users/logout")
	defer cancel()

	if err := h.userFlow.Logout(ctx, userID, accessToken, req.RefreshToken, h.metadata(c)); err != nil {
		return h.handleFlowError(c, err, "Logout failed", "LOGOUT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Logged out", nil)
}

// @Summary Current User
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.UserDTO}
// @Router /api/v1/users/me [get]
func (h *UserHandler) Me(c fiber.Ctx) error {
	userID, ok := c.Locals(middleware.LocalUserID).(uint)
	if !ok || userID == 0 {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHENTICATED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/users/me")
	defer cancel()

	user, err := h.userFlow.Me(ctx, userID)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to load user", "USER_LOOKUP_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "User retrieved", user)
}

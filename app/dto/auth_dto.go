// Package dto contains Data Transfer Objects for API requests and responses
package dto

// LoginRequest is shared by every username/password login
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=255" example:"acme_realty"`
	Password string `json:"password" validate:"required,max=100"`
}

type TokenPairDTO struct {
	AccessToken  string `json:"access_token" example:"jwt"`
	RefreshToken string `json:"refresh_token" example:"jwt"`
	ExpiresIn    int    `json:"expires_in" example:"86400"`
	TokenType    string `json:"token_type" example:"Bearer"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest optionally names the refresh token to revoke alongside the access token
type LogoutRequest struct {
	RefreshToken *string `json:"refresh_token,omitempty"`
}

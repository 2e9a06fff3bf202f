// Package dto contains Data Transfer Objects for API requests and responses
package dto

type UserRegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=64"`
	Password  string `json:"password" validate:"required,min=8,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	FirstName string `json:"first_name" validate:"omitempty,max=255"`
	LastName  string `json:"last_name" validate:"omitempty,max=255"`
}

type UserRegisterResponse struct {
	Message              string `json:"message"`
	UserID               uint   `json:"user_id"`
	RequiresVerification bool   `json:"requires_verification"`
}

type UserDTO struct {
	ID            uint    `json:"id"`
	UUID          string  `json:"uuid"`
	Username      string  `json:"username"`
	Email         string  `json:"email"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	EmailVerified bool    `json:"email_verified"`
	LastLoginAt   *string `json:"last_login_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

type UserLoginResponse struct {
	User    UserDTO      `json:"user"`
	Session TokenPairDTO `json:"session"`
}

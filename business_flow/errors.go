// Package businessflow contains the core business logic and use cases for the realty workflow
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Entity lookups
	ErrLeadNotFound              = errors.New("lead not found")
	ErrPartnerNotFound           = errors.New("partner not found")
	ErrUserNotFound              = errors.New("user not found")
	ErrInvestorNotFound          = errors.New("investor not found")
	ErrOfferNotFound             = errors.New("offer not found")
	ErrCommunicationNotFound     = errors.New("communication not found")
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrBidServiceRequestNotFound = errors.New("bid service request not found")
	ErrAdminNotFound             = errors.New("admin not found")

	// Credentials and account state
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrNotApproved           = errors.New("account not approved")
	ErrAccountInactive       = errors.New("account is inactive")
	ErrVerificationRequired  = errors.New("verification required")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrEmailAlreadyExists    = errors.New("email already exists")

	// Verification
	ErrInvalidToken            = errors.New("invalid verification token")
	ErrVerificationExpired     = errors.New("verification expired")
	ErrAlreadyVerified         = errors.New("already verified")
	ErrInvalidVerificationKind = errors.New("invalid verification type")
	ErrNoPhoneOnFile           = errors.New("no phone number on file")
	ErrTooManyRequests         = errors.New("too many requests")

	// Approval workflow
	ErrNotPending = errors.New("not pending")

	// Sessions
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidCaptcha     = errors.New("invalid captcha")
	ErrCaptchaUnavailable = errors.New("captcha not available")

	// Recorder
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidAuctionDate = errors.New("invalid auction date")
	ErrNothingToUpdate    = errors.New("at least one field must be provided for update")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// IsNotFound reports whether err wraps any entity-not-found error
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrLeadNotFound,
		ErrPartnerNotFound,
		ErrUserNotFound,
		ErrInvestorNotFound,
		ErrOfferNotFound,
		ErrCommunicationNotFound,
		ErrSubscriptionNotFound,
		ErrBidServiceRequestNotFound,
		ErrAdminNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsNotApproved(err error) bool {
	return errors.Is(err, ErrNotApproved)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsVerificationRequired(err error) bool {
	return errors.Is(err, ErrVerificationRequired)
}

func IsUsernameAlreadyExists(err error) bool {
	return errors.Is(err, ErrUsernameAlreadyExists)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

func IsVerificationExpired(err error) bool {
	return errors.Is(err, ErrVerificationExpired)
}

func IsAlreadyVerified(err error) bool {
	return errors.Is(err, ErrAlreadyVerified)
}

func IsInvalidVerificationKind(err error) bool {
	return errors.Is(err, ErrInvalidVerificationKind)
}

func IsNoPhoneOnFile(err error) bool {
	return errors.Is(err, ErrNoPhoneOnFile)
}

func IsTooManyRequests(err error) bool {
	return errors.Is(err, ErrTooManyRequests)
}

func IsNotPending(err error) bool {
	return errors.Is(err, ErrNotPending)
}

func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

func IsInvalidCaptcha(err error) bool {
	return errors.Is(err, ErrInvalidCaptcha)
}

func IsCaptchaUnavailable(err error) bool {
	return errors.Is(err, ErrCaptchaUnavailable)
}

func IsInvalidStatus(err error) bool {
	return errors.Is(err, ErrInvalidStatus)
}

func IsInvalidAuctionDate(err error) bool {
	return errors.Is(err, ErrInvalidAuctionDate)
}

func IsNothingToUpdate(err error) bool {
	return errors.Is(err, ErrNothingToUpdate)
}

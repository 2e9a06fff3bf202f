// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrProviderNotConfigured = errors.New("notification provider not configured")
	ErrInvalidRecipient      = errors.New("invalid recipient")
)

// NotificationService handles sending notifications via SMS and email
type NotificationService interface {
	SendSMS(ctx context.Context, phone, message string) error
	SendEmail(ctx context.Context, email, subject, message string) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	smsProvider   SMSProvider
	emailProvider EmailProvider
}

// SMSProvider interface for SMS sending
type SMSProvider interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(ctx context.Context, email, subject, message string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(smsProvider SMSProvider, emailProvider EmailProvider) NotificationService {
	return &NotificationServiceImpl{
		smsProvider:   smsProvider,
		emailProvider: emailProvider,
	}
}

// SendSMS sends an SMS message to the specified phone number
func (s *NotificationServiceImpl) SendSMS(ctx context.Context, phone, message string) error {
	if s.smsProvider == nil {
		return fmt.Errorf("sms: %w", ErrProviderNotConfigured)
	}

	normalized, ok := NormalizePhone(phone)
	if !ok {
		return fmt.Errorf("%w: phone number %q", ErrInvalidRecipient, phone)
	}

	return s.smsProvider.SendSMS(ctx, normalized, message)
}

// SendEmail sends an email to the specified email address
func (s *NotificationServiceImpl) SendEmail(ctx context.Context, email, subject, message string) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email: %w", ErrProviderNotConfigured)
	}

	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 {
		return fmt.Errorf("%w: email address %q", ErrInvalidRecipient, email)
	}

	return s.emailProvider.SendEmail(ctx, email, subject, message)
}

// NormalizePhone strips formatting from a phone number and returns it in +<digits> form.
// Ten-digit numbers are treated as North American and get the +1 prefix.
func NormalizePhone(phone string) (string, bool) {
	var digits strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", false
		}
	}

	d := digits.String()
	switch {
	case len(d) == 10:
		return "+1" + d, true
	case len(d) >= 7 && len(d) <= 15:
		return "+" + d, true
	}
	return "", false
}

type MockSMSProvider struct {
	logger *zap.Logger
}

func NewMockSMSProvider(logger *zap.Logger) SMSProvider {
	return &MockSMSProvider{logger: logger}
}

func (p *MockSMSProvider) SendSMS(ctx context.Context, phone, message string) error {
	p.logger.Info("sms sent (mock)", zap.String("to", phone), zap.String("message", message))
	return nil
}

type MockEmailProvider struct {
	logger *zap.Logger
}

func NewMockEmailProvider(logger *zap.Logger) EmailProvider {
	return &MockEmailProvider{logger: logger}
}

func (p *MockEmailProvider) SendEmail(ctx context.Context, email, subject, message string) error {
	p.logger.Info("email sent (mock)", zap.String("to", email), zap.String("subject", subject), zap.String("message", message))
	return nil
}

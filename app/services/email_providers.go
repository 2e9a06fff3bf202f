// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/amirphl/realty-workflow/config"
)

// NewEmailProvider builds the provider selected by EMAIL_PROVIDER
func NewEmailProvider(ctx context.Context, cfg config.EmailConfig, logger *zap.Logger) (EmailProvider, error) {
	switch cfg.Provider {
	case "smtp":
		return NewSMTPEmailProvider(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.FromEmail, cfg.FromName), nil
	case "sendgrid":
		return NewSendGridEmailProvider(cfg.SendGridAPIKey, cfg.FromEmail, cfg.FromName), nil
	case "ses":
		return NewSESEmailProvider(ctx, cfg.SESRegion, cfg.FromEmail, cfg.FromName)
	case "", "mock":
		return NewMockEmailProvider(logger), nil
	}
	return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
}

type SMTPEmailProvider struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

func NewSMTPEmailProvider(host string, port int, username, password, fromEmail, fromName string) EmailProvider {
	return &SMTPEmailProvider{
		dialer:    gomail.NewDialer(host, port, username, password),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (p *SMTPEmailProvider) SendEmail(ctx context.Context, email, subject, message string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", p.fromEmail, p.fromName)
	m.SetHeader("To", email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", message)

	if err := p.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email via smtp: %w", err)
	}
	return nil
}

type SendGridEmailProvider struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewSendGridEmailProvider(apiKey, fromEmail, fromName string) EmailProvider {
	return &SendGridEmailProvider{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (p *SendGridEmailProvider) SendEmail(ctx context.Context, email, subject, message string) error {
	from := mail.NewEmail(p.fromName, p.fromEmail)
	to := mail.NewEmail("", email)
	msg := mail.NewSingleEmail(from, subject, to, message, "")

	resp, err := p.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send email via sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected email to %s: status %d", email, resp.StatusCode)
	}
	return nil
}

type SESEmailProvider struct {
	client    *ses.Client
	fromEmail string
	fromName  string
}

func NewSESEmailProvider(ctx context.Context, region, fromEmail, fromName string) (EmailProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &SESEmailProvider{
		client:    ses.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

func (p *SESEmailProvider) SendEmail(ctx context.Context, email, subject, message string) error {
	source := p.fromEmail
	if p.fromName != "" {
		source = fmt.Sprintf("%s <%s>", p.fromName, p.fromEmail)
	}

	_, err := p.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(source),
		Destination: &sestypes.Destination{ToAddresses: []string{email}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(message), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email via ses: %w", err)
	}
	return nil
}

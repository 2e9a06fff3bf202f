// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/config"
)

// NewSMSProvider builds the provider selected by SMS_PROVIDER
func NewSMSProvider(ctx context.Context, cfg *config.SMSConfig, logger *zap.Logger) (SMSProvider, error) {
	switch cfg.Provider {
	case "twilio":
		return NewTwilioSMSProvider(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber), nil
	case "sns":
		return NewSNSSMSProvider(ctx, cfg.SNSRegion, cfg.SNSSenderID)
	case "http":
		return NewHTTPSMSProvider(cfg), nil
	case "", "mock":
		return NewMockSMSProvider(logger), nil
	}
	return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
}

// HTTPSMSProvider posts messages to a JSON SMS gateway
type HTTPSMSProvider struct {
	config *config.SMSConfig
	client *http.Client
}

// SMSRequest represents the request payload for the gateway
type SMSRequest struct {
	SrcNum         string `json:"srcNum"`
	Recipient      string `json:"recipient"`
	Body           string `json:"body"`
	RetryCount     int    `json:"retryCount"`
	Type           int    `json:"type"` // Always 1
	ValidityPeriod int    `json:"validityPeriod"`
}

// SMSResponse represents individual message result from the gateway
type SMSResponse struct {
	MessageID  int64  `json:"messageId"`
	SrcNum     string `json:"srcNum"`
	Recipient  string `json:"recipient"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
}

func NewHTTPSMSProvider(cfg *config.SMSConfig) SMSProvider {
	return &HTTPSMSProvider{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (p *HTTPSMSProvider) SendSMS(ctx context.Context, phone, message string) error {
	requestBody, err := json.Marshal([]SMSRequest{{
		SrcNum:         p.config.SourceNumber,
		Recipient:      strings.TrimPrefix(phone, "+"),
		Body:           message,
		RetryCount:     p.config.RetryCount,
		Type:           1,
		ValidityPeriod: p.config.ValidityPeriod,
	}})
	if err != nil {
		return fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	url := fmt.Sprintf("https://%s/api/v3.0.1/send", p.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("SMS gateway returned status %d", resp.StatusCode)
	}

	var results []SMSResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return fmt.Errorf("failed to decode SMS response: %w", err)
	}
	for _, r := range results {
		if r.StatusCode != http.StatusOK || r.Status != "ACCEPTED" {
			return fmt.Errorf("SMS delivery failed for %s: %s (%d)", r.Recipient, r.Status, r.StatusCode)
		}
	}
	return nil
}

type TwilioSMSProvider struct {
	client     *twilio.RestClient
	fromNumber string
}

func NewTwilioSMSProvider(accountSID, authToken, fromNumber string) SMSProvider {
	return &TwilioSMSProvider{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		fromNumber: fromNumber,
	}
}

func (p *TwilioSMSProvider) SendSMS(ctx context.Context, phone, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(p.fromNumber)
	params.SetBody(message)

	if _, err := p.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send sms via twilio: %w", err)
	}
	return nil
}

type SNSSMSProvider struct {
	client   *sns.Client
	senderID string
}

func NewSNSSMSProvider(ctx context.Context, region, senderID string) (SMSProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &SNSSMSProvider{client: sns.NewFromConfig(cfg), senderID: senderID}, nil
}

func (p *SNSSMSProvider) SendSMS(ctx context.Context, phone, message string) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	}
	if p.senderID != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(p.senderID),
		}
	}

	if _, err := p.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("failed to send sms via sns: %w", err)
	}
	return nil
}

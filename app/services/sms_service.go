// Package services provides external service integrations and technical concerns like channel delivery and document rendering
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bf1digital/spot-dispatch/config"
	"github.com/bf1digital/spot-dispatch/utils"
)

// SMSService handles outbound SMS delivery through the configured gateway
type SMSService interface {
	Send(ctx context.Context, recipient, message string) SendResult
}

// SMSServiceImpl implements SMSService
type SMSServiceImpl struct {
	config *config.SMSConfig
	client *http.Client
}

// SMSRequest represents the request payload for the SMS gateway
type SMSRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	Sender  string `json:"sender,omitempty"`
}

// NewSMSService creates a new SMS service instance
func NewSMSService(cfg *config.SMSConfig) SMSService {
	return &SMSServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Send posts one message to the gateway. A missing endpoint or token yields
// ErrNotConfigured instead of an HTTP error so callers can tell "provider
// down" from "provider absent".
func (s *SMSServiceImpl) Send(ctx context.Context, recipient, message string) SendResult {
	if s.config.APIURL == "" || s.config.Token == "" {
		return SendResult{Err: ErrNotConfigured}
	}

	payload := SMSRequest{
		To:      utils.NormalizePhone(recipient),
		Message: message,
		Sender:  s.config.Sender,
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return SendResult{Err: fmt.Errorf("failed to marshal SMS request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.APIURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return SendResult{Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return SendResult{Err: fmt.Errorf("failed to send SMS request: %w", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResult{Err: fmt.Errorf("SMS gateway returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))}
	}

	return SendResult{OK: true, ProviderMessageID: extractProviderMessageID(body)}
}

// MockSMSService implements SMSService for testing
type MockSMSService struct {
	SentMessages []MockChannelMessage
	FailWith     error
}

// MockChannelMessage represents a message captured by a mock channel
type MockChannelMessage struct {
	Recipient string
	Message   string
	SentAt    time.Time
}

// NewMockSMSService creates a new mock SMS service
func NewMockSMSService() *MockSMSService {
	return &MockSMSService{
		SentMessages: make([]MockChannelMessage, 0),
	}
}

// Send records a mock SMS message
func (m *MockSMSService) Send(ctx context.Context, recipient, message string) SendResult {
	if m.FailWith != nil {
		return SendResult{Err: m.FailWith}
	}
	m.SentMessages = append(m.SentMessages, MockChannelMessage{
		Recipient: recipient,
		Message:   message,
		SentAt:    utils.UTCNow(),
	})
	return SendResult{OK: true, ProviderMessageID: fmt.Sprintf("mock-sms-%d", len(m.SentMessages))}
}

// ClearSentMessages clears the sent messages list
func (m *MockSMSService) ClearSentMessages() {
	m.SentMessages = make([]MockChannelMessage, 0)
}

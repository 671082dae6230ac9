// Package services provides external service integrations and technical concerns like channel delivery and document rendering
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bf1digital/spot-dispatch/config"
	"github.com/bf1digital/spot-dispatch/utils"
)

// WhatsAppService handles outbound WhatsApp delivery through the configured gateway
type WhatsAppService interface {
	Send(ctx context.Context, recipient, message string, attachments []Attachment) SendResult
}

// WhatsAppServiceImpl implements WhatsAppService
type WhatsAppServiceImpl struct {
	config *config.WhatsAppConfig
	client *http.Client
}

// WhatsAppRequest represents the request payload for the WhatsApp gateway
type WhatsAppRequest struct {
	To          string              `json:"to"`
	Message     string              `json:"message"`
	Sender      string              `json:"sender,omitempty"`
	Attachments []WhatsAppAttachment `json:"attachments,omitempty"`
}

// WhatsAppAttachment is a base64-encoded file in a WhatsApp gateway request
type WhatsAppAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"`
}

// NewWhatsAppService creates a new WhatsApp service instance
func NewWhatsAppService(cfg *config.WhatsAppConfig) WhatsAppService {
	return &WhatsAppServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Send posts one message (with optional attachments) to the gateway.
func (s *WhatsAppServiceImpl) Send(ctx context.Context, recipient, message string, attachments []Attachment) SendResult {
	if s.config.APIURL == "" || s.config.Token == "" {
		return SendResult{Err: ErrNotConfigured}
	}

	payload := WhatsAppRequest{
		To:      utils.NormalizePhone(recipient),
		Message: message,
		Sender:  s.config.Sender,
	}
	for _, a := range attachments {
		payload.Attachments = append(payload.Attachments, WhatsAppAttachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Data:        base64.StdEncoding.EncodeToString(a.Data),
		})
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return SendResult{Err: fmt.Errorf("failed to marshal WhatsApp request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.APIURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return SendResult{Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return SendResult{Err: fmt.Errorf("failed to send WhatsApp request: %w", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResult{Err: fmt.Errorf("WhatsApp gateway returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))}
	}

	return SendResult{OK: true, ProviderMessageID: extractProviderMessageID(body)}
}

// BuildWhatsAppDeepLink builds a wa.me link that opens a chat with the given
// phone and the message prefilled. The phone keeps digits only, as wa.me
// rejects plus signs and separators.
func BuildWhatsAppDeepLink(phone, message string) string {
	normalized := utils.NormalizePhone(phone)
	digits := strings.TrimPrefix(normalized, "+")
	return fmt.Sprintf("https://wa.me/%s?text=%s", digits, url.QueryEscape(message))
}

// MockWhatsAppService implements WhatsAppService for testing
type MockWhatsAppService struct {
	SentMessages []MockChannelMessage
	Attachments  [][]Attachment
	FailWith     error
}

// NewMockWhatsAppService creates a new mock WhatsApp service
func NewMockWhatsAppService() *MockWhatsAppService {
	return &MockWhatsAppService{
		SentMessages: make([]MockChannelMessage, 0),
	}
}

// Send records a mock WhatsApp message
func (m *MockWhatsAppService) Send(ctx context.Context, recipient, message string, attachments []Attachment) SendResult {
	if m.FailWith != nil {
		return SendResult{Err: m.FailWith}
	}
	m.SentMessages = append(m.SentMessages, MockChannelMessage{
		Recipient: recipient,
		Message:   message,
		SentAt:    utils.UTCNow(),
	})
	m.Attachments = append(m.Attachments, attachments)
	return SendResult{OK: true, ProviderMessageID: fmt.Sprintf("mock-wa-%d", len(m.SentMessages))}
}

// Package services provides external service integrations and technical concerns like channel delivery and document rendering
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/bf1digital/spot-dispatch/config"
	"github.com/bf1digital/spot-dispatch/utils"
)

// EmailService handles outbound email delivery over SMTP
type EmailService interface {
	Send(ctx context.Context, msg EmailMessage) SendResult
}

// EmailMessage is a fully assembled outbound email
type EmailMessage struct {
	To          string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// EmailServiceImpl implements EmailService
type EmailServiceImpl struct {
	config *config.EmailConfig
}

// NewEmailService creates a new email service instance
func NewEmailService(cfg *config.EmailConfig) EmailService {
	return &EmailServiceImpl{config: cfg}
}

// Send assembles a MIME message and hands it to the SMTP host. Plain text
// and HTML bodies go into a multipart/alternative section; attachments wrap
// that in an outer multipart/mixed envelope.
func (s *EmailServiceImpl) Send(ctx context.Context, msg EmailMessage) SendResult {
	if s.config.Host == "" || s.config.FromEmail == "" {
		return SendResult{Err: ErrNotConfigured}
	}

	from := s.config.FromEmail
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail)
	}

	raw, err := buildMIMEMessage(from, msg)
	if err != nil {
		return SendResult{Err: fmt.Errorf("failed to build MIME message: %w", err)}
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	// net/smtp has no context support, so the deadline is enforced by
	// running the dial+send in a goroutine and abandoning it on timeout.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.config.FromEmail, []string{msg.To}, raw)
	}()

	select {
	case err := <-done:
		if err != nil {
			return SendResult{Err: fmt.Errorf("failed to send email to %s: %w", msg.To, err)}
		}
		return SendResult{OK: true}
	case <-ctx.Done():
		return SendResult{Err: fmt.Errorf("email send to %s aborted: %w", msg.To, ctx.Err())}
	}
}

func buildMIMEMessage(from string, msg EmailMessage) ([]byte, error) {
	altBuf := &bytes.Buffer{}
	alt := multipart.NewWriter(altBuf)
	if msg.TextBody != "" {
		part, err := alt.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write([]byte(msg.TextBody)); err != nil {
			return nil, err
		}
	}
	if msg.HTMLBody != "" {
		part, err := alt.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write([]byte(msg.HTMLBody)); err != nil {
			return nil, err
		}
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", utils.UTCNow().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(msg.Attachments) == 0 {
		fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", alt.Boundary())
		buf.Write(altBuf.Bytes())
		return buf.Bytes(), nil
	}

	mixed := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixed.Boundary())

	altHeader := textproto.MIMEHeader{}
	altHeader.Set("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", alt.Boundary()))
	altPart, err := mixed.CreatePart(altHeader)
	if err != nil {
		return nil, err
	}
	if _, err := altPart.Write(altBuf.Bytes()); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", contentType)
		header.Set("Content-Transfer-Encoding", "base64")
		header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
		part, err := mixed.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if err := writeBase64Lines(part, a.Data); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// writeBase64Lines encodes data and wraps it at the RFC 2045 line limit.
func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := w.Write([]byte(encoded[:76] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	if len(encoded) > 0 {
		if _, err := w.Write([]byte(encoded + "\r\n")); err != nil {
			return err
		}
	}
	return nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SentMessages []EmailMessage
	FailWith     error
}

// NewMockEmailService creates a new mock email service
func NewMockEmailService() *MockEmailService {
	return &MockEmailService{
		SentMessages: make([]EmailMessage, 0),
	}
}

// Send records a mock email message
func (m *MockEmailService) Send(ctx context.Context, msg EmailMessage) SendResult {
	if m.FailWith != nil {
		return SendResult{Err: m.FailWith}
	}
	m.SentMessages = append(m.SentMessages, msg)
	return SendResult{OK: true}
}

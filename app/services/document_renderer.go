// Package services provides external service integrations and technical concerns like channel delivery and document rendering
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bf1digital/spot-dispatch/config"
	"github.com/bf1digital/spot-dispatch/models"
)

// DocumentRenderer produces the assignment sheet PDF. Rendering runs in a
// separate document service, so this is a thin HTTP client around it.
type DocumentRenderer interface {
	RenderAssignmentPDF(ctx context.Context, assignment *models.CoverageAssignment) ([]byte, error)
}

// DocumentRendererImpl implements DocumentRenderer
type DocumentRendererImpl struct {
	config *config.RendererConfig
	client *http.Client
}

// NewDocumentRenderer creates a new document renderer instance
func NewDocumentRenderer(cfg *config.RendererConfig) DocumentRenderer {
	return &DocumentRendererImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// RenderAssignmentPDF posts the assignment payload to the renderer and
// returns the resulting PDF bytes.
func (r *DocumentRendererImpl) RenderAssignmentPDF(ctx context.Context, assignment *models.CoverageAssignment) ([]byte, error) {
	if r.config.APIURL == "" {
		return nil, ErrNotConfigured
	}

	requestBody, err := json.Marshal(assignment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal renderer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.config.APIURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")
	if r.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.Token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call document renderer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<14))
		return nil, fmt.Errorf("document renderer returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read renderer response: %w", err)
	}

	return pdf, nil
}

// MockDocumentRenderer implements DocumentRenderer for testing
type MockDocumentRenderer struct {
	PDF      []byte
	FailWith error
	Rendered []*models.CoverageAssignment
}

// NewMockDocumentRenderer creates a new mock document renderer
func NewMockDocumentRenderer() *MockDocumentRenderer {
	return &MockDocumentRenderer{
		PDF: []byte("%PDF-1.4 mock"),
	}
}

// RenderAssignmentPDF returns the canned PDF
func (m *MockDocumentRenderer) RenderAssignmentPDF(ctx context.Context, assignment *models.CoverageAssignment) ([]byte, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.Rendered = append(m.Rendered, assignment)
	return m.PDF, nil
}

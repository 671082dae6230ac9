// Package services provides external service integrations and technical concerns like channel delivery and document rendering
package services

import (
	"encoding/json"
	"errors"
	"strconv"
)

// ErrNotConfigured is returned by channel implementations whose provider
// credentials or endpoint are absent. Callers treat it as a soft failure:
// the attempt is recorded as skipped rather than failed.
var ErrNotConfigured = errors.New("channel provider not configured")

// SendResult is the outcome of a single provider call.
type SendResult struct {
	OK                bool
	ProviderMessageID string
	Err               error
}

// Attachment is a file payload carried alongside a channel message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// extractProviderMessageID pulls a message identifier out of an arbitrary
// provider response body. Gateways disagree on the field name, so the
// common spellings are tried in order; an empty string means none matched.
func extractProviderMessageID(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	for _, key := range []string{"id", "message_id", "sid"} {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}

	return ""
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AttemptChannel identifies the transport a delivery attempt went through
type AttemptChannel string

const (
	AttemptChannelEmail    AttemptChannel = "email"
	AttemptChannelSMS      AttemptChannel = "sms"
	AttemptChannelWhatsApp AttemptChannel = "whatsapp"
	AttemptChannelWeb      AttemptChannel = "web"
)

// String returns the string representation of the channel
func (c AttemptChannel) String() string {
	return string(c)
}

// Valid checks if the channel is valid
func (c AttemptChannel) Valid() bool {
	switch c {
	case AttemptChannelEmail, AttemptChannelSMS, AttemptChannelWhatsApp, AttemptChannelWeb:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AttemptChannel
func (c *AttemptChannel) Scan(value any) error {
	if value == nil {
		*c = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*c = AttemptChannel(v)
	case []byte:
		*c = AttemptChannel(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AttemptChannel", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AttemptChannel
func (c AttemptChannel) Value() (driver.Value, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid AttemptChannel: %s", c)
	}
	return string(c), nil
}

// AttemptStatus represents the outcome of a delivery attempt
type AttemptStatus string

const (
	AttemptStatusQueued    AttemptStatus = "queued"
	AttemptStatusSent      AttemptStatus = "sent"
	AttemptStatusDelivered AttemptStatus = "delivered"
	AttemptStatusFailed    AttemptStatus = "failed"
	AttemptStatusSkipped   AttemptStatus = "skipped"
	AttemptStatusConfirmed AttemptStatus = "confirmed"
)

// String returns the string representation of the status
func (s AttemptStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s AttemptStatus) Valid() bool {
	switch s {
	case AttemptStatusQueued, AttemptStatusSent, AttemptStatusDelivered,
		AttemptStatusFailed, AttemptStatusSkipped, AttemptStatusConfirmed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AttemptStatus
func (s *AttemptStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = AttemptStatus(v)
	case []byte:
		*s = AttemptStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AttemptStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AttemptStatus
func (s AttemptStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AttemptStatus: %s", s)
	}
	return string(s), nil
}

// AttemptMeta is a structured key/value bag stored as jsonb, e.g. the wa.me
// deep link generated for an operator-driven WhatsApp send.
type AttemptMeta map[string]any

// Value implements the driver.Valuer interface for AttemptMeta
func (m AttemptMeta) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(map[string]any{})
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for AttemptMeta
func (m *AttemptMeta) Scan(value any) error {
	if value == nil {
		*m = AttemptMeta{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AttemptMeta", value)
	}

	return json.Unmarshal(bytes, m)
}

// NotificationAttempt is one recorded delivery action belonging to a
// campaign. Attempts are append-only: they are never mutated after creation
// except to mark status when the creating call fails synchronously.
type NotificationAttempt struct {
	ID         uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	CampaignID uuid.UUID             `gorm:"type:uuid;not null;index:idx_attempts_campaign_id" json:"campaign_id"`
	Campaign   *NotificationCampaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`

	Channel AttemptChannel `gorm:"type:attempt_channel;not null;index:idx_attempts_channel" json:"channel"`
	Status  AttemptStatus  `gorm:"type:attempt_status;not null;default:'queued'" json:"status"`

	To      string `gorm:"size:200" json:"to"`
	Subject string `gorm:"size:200" json:"subject,omitempty"`
	Body    string `gorm:"type:text" json:"body,omitempty"`

	Provider          string `gorm:"size:50" json:"provider,omitempty"`
	ProviderMessageID string `gorm:"size:120" json:"provider_message_id,omitempty"`
	Error             string `gorm:"type:text" json:"error,omitempty"`

	Meta AttemptMeta `gorm:"type:jsonb" json:"meta,omitempty"`

	SentAt      *time.Time `json:"sent_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_attempts_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (NotificationAttempt) TableName() string {
	return "notification_attempts"
}

// AttemptFilter represents filter criteria for attempt queries
type AttemptFilter struct {
	ID            *uuid.UUID
	CampaignID    *uuid.UUID
	Channel       *AttemptChannel
	Status        *AttemptStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

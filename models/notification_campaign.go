package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus represents the lifecycle status of a notification campaign
type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusConfirmed CampaignStatus = "confirmed"
	CampaignStatusExpired   CampaignStatus = "expired"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusActive, CampaignStatusConfirmed,
		CampaignStatusExpired, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusConfirmed || s == CampaignStatusExpired || s == CampaignStatusCancelled
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// RecipientKind identifies which assignment member a campaign targets
type RecipientKind string

const (
	RecipientKindJournalist RecipientKind = "journalist"
	RecipientKindDriver     RecipientKind = "driver"
)

// String returns the string representation of the kind
func (k RecipientKind) String() string {
	return string(k)
}

// Valid checks if the kind is valid
func (k RecipientKind) Valid() bool {
	switch k {
	case RecipientKindJournalist, RecipientKindDriver:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RecipientKind
func (k *RecipientKind) Scan(value any) error {
	if value == nil {
		*k = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*k = RecipientKind(v)
	case []byte:
		*k = RecipientKind(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RecipientKind", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RecipientKind
func (k RecipientKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid RecipientKind: %s", k)
	}
	return string(k), nil
}

// NotificationCampaign is one notification thread for one recipient of one
// assignment. The confirm code is generated once at creation and is the sole
// out-of-band correlation token; it is scoped by campaign id, not globally
// unique.
//
// Invariants enforced by the repository layer:
//   - ConfirmedAt is non-nil iff Status == confirmed
//   - NextAttemptAt is nil whenever Status != active
//   - ReminderCount never exceeds MaxReminderCount
type NotificationCampaign struct {
	ID           uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	AssignmentID uuid.UUID           `gorm:"type:uuid;not null;index:idx_campaigns_assignment_id" json:"assignment_id"`
	Assignment   *CoverageAssignment `gorm:"foreignKey:AssignmentID;references:ID" json:"assignment,omitempty"`

	RecipientKind RecipientKind `gorm:"type:recipient_kind;not null" json:"recipient_kind"`
	ToEmail       *string       `gorm:"size:254" json:"to_email,omitempty"`
	ToPhone       *string       `gorm:"size:50" json:"to_phone,omitempty"`

	ConfirmCode string         `gorm:"size:20;not null;index:idx_campaigns_confirm_code" json:"confirm_code"`
	Status      CampaignStatus `gorm:"type:campaign_status;not null;default:'active';index:idx_campaigns_status_next_attempt,priority:1" json:"status"`

	ReminderCount int        `gorm:"not null;default:0" json:"reminder_count"`
	NextAttemptAt *time.Time `gorm:"index:idx_campaigns_status_next_attempt,priority:2" json:"next_attempt_at,omitempty"`

	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedVia string     `gorm:"size:20" json:"confirmed_via,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (NotificationCampaign) TableName() string {
	return "notification_campaigns"
}

// IsConfirmed reports whether the campaign has already been confirmed.
func (c *NotificationCampaign) IsConfirmed() bool {
	return c.ConfirmedAt != nil
}

// CampaignFilter represents filter criteria for campaign queries
type CampaignFilter struct {
	ID            *uuid.UUID
	AssignmentID  *uuid.UUID
	RecipientKind *RecipientKind
	Status        *CampaignStatus
	ConfirmCode   *string
	DueBefore     *time.Time
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

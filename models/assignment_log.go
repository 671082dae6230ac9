package models

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentLog is an append-only trail of assignment lifecycle events,
// kept purely for operational traceability. Rows are never updated or
// deleted.
type AssignmentLog struct {
	ID           uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	AssignmentID uuid.UUID           `gorm:"type:uuid;not null;index:idx_assignment_logs_assignment_id" json:"assignment_id"`
	Assignment   *CoverageAssignment `gorm:"foreignKey:AssignmentID;references:ID" json:"assignment,omitempty"`

	Label string `gorm:"size:100;not null" json:"label"`
	Note  string `gorm:"type:text" json:"note,omitempty"`

	At time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_assignment_logs_at" json:"at"`
}

func (AssignmentLog) TableName() string {
	return "assignment_logs"
}

// Audit label constants
const (
	LogLabelAssignmentCreated     = "assignment_created"
	LogLabelNotificationsPrepared = "notifications_prepared"
	LogLabelInitialEmailSent      = "initial_email_sent"
	LogLabelInitialEmailFailed    = "initial_email_failed"
	LogLabelSMSReminderSent       = "sms_reminder_sent"
	LogLabelSMSReminderFailed     = "sms_reminder_failed"
	LogLabelConfirmationReceived  = "confirmation_received"
	LogLabelEmailNoticeSent       = "email_notice_sent"
	LogLabelWhatsAppNoticeSent    = "whatsapp_notice_prepared"
	LogLabelCampaignExpired       = "campaign_expired"
)

// AssignmentLogFilter represents filter criteria for assignment log queries
type AssignmentLogFilter struct {
	ID           *uuid.UUID
	AssignmentID *uuid.UUID
	Label        *string
	After        *time.Time
	Before       *time.Time
}

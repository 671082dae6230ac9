package dto

import (
	"time"
)

// CreateCampaignsResponse represents the campaigns prepared for an assignment
type CreateCampaignsResponse struct {
	Campaigns []CampaignDTO `json:"campaigns"`
}

// CampaignDTO represents one notification campaign in responses
type CampaignDTO struct {
	ID            string     `json:"id"`
	AssignmentID  string     `json:"assignment_id"`
	RecipientKind string     `json:"recipient_kind"`
	ToEmail       *string    `json:"to_email,omitempty"`
	ToPhone       *string    `json:"to_phone,omitempty"`
	Status        string     `json:"status"`
	ReminderCount int        `json:"reminder_count"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedVia  string     `json:"confirmed_via,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NotifyEmailResponse represents the outcome of an operator email send
type NotifyEmailResponse struct {
	Sent      bool   `json:"sent"`
	Confirmed bool   `json:"confirmed"`
	To        string `json:"to"`
}

// NotifyWhatsAppResponse represents the outcome of an operator WhatsApp send
type NotifyWhatsAppResponse struct {
	Sent      bool   `json:"sent"`
	Confirmed bool   `json:"confirmed"`
	To        string `json:"to"`
	DeepLink  string `json:"deep_link,omitempty"`
	PDFURL    string `json:"pdf_url,omitempty"`
}

// InboundSMSResponse represents the webhook acknowledgement payload
type InboundSMSResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

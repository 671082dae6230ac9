// Package businessflow contains the business logic for the application.
package businessflow

import (
	"github.com/bf1digital/spot-dispatch/app/dto"
	"github.com/bf1digital/spot-dispatch/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for audit notes and tracing
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
	Operator  string `json:"operator,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetOperator records the authenticated operator performing the action
func (cm *ClientMetadata) SetOperator(operator string) {
	cm.Operator = operator
}

// ToCampaignDTO converts a campaign model to its API representation
func ToCampaignDTO(campaign *models.NotificationCampaign) dto.CampaignDTO {
	return dto.CampaignDTO{
		ID:            campaign.ID.String(),
		AssignmentID:  campaign.AssignmentID.String(),
		RecipientKind: campaign.RecipientKind.String(),
		ToEmail:       campaign.ToEmail,
		ToPhone:       campaign.ToPhone,
		Status:        campaign.Status.String(),
		ReminderCount: campaign.ReminderCount,
		NextAttemptAt: campaign.NextAttemptAt,
		ConfirmedAt:   campaign.ConfirmedAt,
		ConfirmedVia:  campaign.ConfirmedVia,
		CreatedAt:     campaign.CreatedAt,
	}
}

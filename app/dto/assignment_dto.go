package dto

import (
	"time"
)

// CreateAssignmentRequest represents the request to create a coverage assignment
type CreateAssignmentRequest struct {
	EventTitle   string     `json:"event_title" validate:"required,min=1,max=255"`
	EventDate    string     `json:"event_date" validate:"required,datetime=2006-01-02"`
	StartTime    string     `json:"start_time" validate:"required,datetime=15:04"`
	EndTime      *string    `json:"end_time,omitempty" validate:"omitempty,datetime=15:04"`
	Address      string     `json:"address" validate:"max=500"`
	MeetingPoint string     `json:"meeting_point,omitempty" validate:"max=500"`
	Description  string     `json:"description,omitempty"`

	JournalistName  *string `json:"journalist_name,omitempty" validate:"omitempty,max=200"`
	JournalistEmail *string `json:"journalist_email,omitempty" validate:"omitempty,email,max=254"`
	JournalistPhone *string `json:"journalist_phone,omitempty" validate:"omitempty,max=50"`
	DriverName      *string `json:"driver_name,omitempty" validate:"omitempty,max=200"`
	DriverPhone     *string `json:"driver_phone,omitempty" validate:"omitempty,max=50"`
}

// CreateAssignmentResponse represents the response after creating an assignment
type CreateAssignmentResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// AssignmentLogDTO represents one audit trail entry in responses
type AssignmentLogDTO struct {
	Label string    `json:"label"`
	Note  string    `json:"note,omitempty"`
	At    time.Time `json:"at"`
}

// Package models contains domain entities and business models for the dispatch notification system
package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus represents the editorial status of a coverage assignment
type AssignmentStatus string

const (
	AssignmentStatusAssigned  AssignmentStatus = "assigned"
	AssignmentStatusInField   AssignmentStatus = "in_field"
	AssignmentStatusDelivered AssignmentStatus = "delivered"
	AssignmentStatusDone      AssignmentStatus = "done"
)

// String returns the string representation of the status
func (s AssignmentStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentStatusAssigned, AssignmentStatusInField,
		AssignmentStatusDelivered, AssignmentStatusDone:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AssignmentStatus
func (s *AssignmentStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = AssignmentStatus(v)
	case []byte:
		*s = AssignmentStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AssignmentStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AssignmentStatus
func (s AssignmentStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AssignmentStatus: %s", s)
	}
	return string(s), nil
}

// CoverageAssignment is a field assignment: an event to cover, with the
// journalist and/or driver dispatched to it. The editorial workflow that
// creates and approves assignments lives in another system; this service
// stores the fields the notification campaigns need to address and describe
// the mission.
type CoverageAssignment struct {
	ID     uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Status AssignmentStatus `gorm:"type:assignment_status;not null;default:'assigned';index:idx_assignments_status" json:"status"`

	EventTitle   string     `gorm:"size:255;not null" json:"event_title"`
	EventDate    time.Time  `gorm:"type:date;not null" json:"event_date"`
	StartTime    time.Time  `gorm:"not null" json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Address      string     `gorm:"size:500" json:"address"`
	MeetingPoint string     `gorm:"size:500" json:"meeting_point,omitempty"`
	Description  string     `gorm:"type:text" json:"description,omitempty"`

	JournalistName  *string `gorm:"size:200" json:"journalist_name,omitempty"`
	JournalistEmail *string `gorm:"size:254" json:"journalist_email,omitempty"`
	JournalistPhone *string `gorm:"size:50" json:"journalist_phone,omitempty"`
	DriverName      *string `gorm:"size:200" json:"driver_name,omitempty"`
	DriverPhone     *string `gorm:"size:50" json:"driver_phone,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CoverageAssignment) TableName() string {
	return "coverage_assignments"
}

// HasJournalist reports whether a journalist is attached to the assignment.
func (a *CoverageAssignment) HasJournalist() bool {
	return a.JournalistName != nil && *a.JournalistName != ""
}

// HasDriver reports whether a driver is attached to the assignment.
func (a *CoverageAssignment) HasDriver() bool {
	return a.DriverName != nil && *a.DriverName != ""
}

// AssignmentFilter represents filter criteria for assignment queries
type AssignmentFilter struct {
	ID            *uuid.UUID
	Status        *AssignmentStatus
	EventDate     *time.Time
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

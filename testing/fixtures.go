// Package testing provides test utilities and database setup for testing the notification system
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/bf1digital/spot-dispatch/models"
	"github.com/bf1digital/spot-dispatch/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestAssignment creates an assignment with both a journalist and a
// driver, each with full contact details
func (tf *TestFixtures) CreateTestAssignment() (*models.CoverageAssignment, error) {
	suffix := rand.Intn(90000000) + 10000000

	assignment := &models.CoverageAssignment{
		ID:           uuid.New(),
		Status:       models.AssignmentStatusAssigned,
		EventTitle:   fmt.Sprintf("Conférence de presse %d", suffix),
		EventDate:    time.Now().UTC().AddDate(0, 0, 2).Truncate(24 * time.Hour),
		StartTime:    time.Date(0, 1, 1, 9, 30, 0, 0, time.UTC),
		Address:      "Ouaga 2000, Ouagadougou",
		MeetingPoint: "Entrée principale",

		JournalistName:  utils.ToPtr("Awa Traoré"),
		JournalistEmail: utils.ToPtr(fmt.Sprintf("awa.traore.%d@bf1tv.bf", suffix)),
		JournalistPhone: utils.ToPtr(fmt.Sprintf("+2267%07d", suffix%10000000)),
		DriverName:      utils.ToPtr("Issouf Kaboré"),
		DriverPhone:     utils.ToPtr(fmt.Sprintf("+2266%07d", suffix%10000000)),
	}

	if err := tf.DB.DB.Create(assignment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test assignment: %w", err)
	}
	return assignment, nil
}

// CreateTestAssignmentWithoutContacts creates an assignment with no
// journalist or driver contact details
func (tf *TestFixtures) CreateTestAssignmentWithoutContacts() (*models.CoverageAssignment, error) {
	assignment := &models.CoverageAssignment{
		ID:         uuid.New(),
		Status:     models.AssignmentStatusAssigned,
		EventTitle: "Reportage sans équipe",
		EventDate:  time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour),
		StartTime:  time.Date(0, 1, 1, 14, 0, 0, 0, time.UTC),
		Address:    "Koudougou",
	}

	if err := tf.DB.DB.Create(assignment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test assignment: %w", err)
	}
	return assignment, nil
}

// CreateTestCampaign creates an active campaign for the given assignment
func (tf *TestFixtures) CreateTestCampaign(assignment *models.CoverageAssignment, kind models.RecipientKind) (*models.NotificationCampaign, error) {
	code, err := utils.GenerateConfirmCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate confirm code: %w", err)
	}

	campaign := &models.NotificationCampaign{
		ID:            uuid.New(),
		AssignmentID:  assignment.ID,
		RecipientKind: kind,
		ConfirmCode:   code,
		Status:        models.CampaignStatusActive,
	}
	switch kind {
	case models.RecipientKindJournalist:
		campaign.ToEmail = assignment.JournalistEmail
		campaign.ToPhone = assignment.JournalistPhone
	case models.RecipientKindDriver:
		campaign.ToPhone = assignment.DriverPhone
	}

	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	campaign.Assignment = assignment
	return campaign, nil
}

// CreateDueCampaign creates an active campaign whose next attempt is already
// in the past, ready to be picked up by the reminder loop
func (tf *TestFixtures) CreateDueCampaign(assignment *models.CoverageAssignment, kind models.RecipientKind, reminderCount int) (*models.NotificationCampaign, error) {
	campaign, err := tf.CreateTestCampaign(assignment, kind)
	if err != nil {
		return nil, err
	}

	due := time.Now().UTC().Add(-time.Minute)
	campaign.ReminderCount = reminderCount
	campaign.NextAttemptAt = &due
	if err := tf.DB.DB.Model(&models.NotificationCampaign{}).
		Where("id = ?", campaign.ID).
		Updates(map[string]any{"reminder_count": reminderCount, "next_attempt_at": due}).Error; err != nil {
		return nil, fmt.Errorf("failed to mark campaign due: %w", err)
	}
	return campaign, nil
}

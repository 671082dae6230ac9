// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bf1digital/spot-dispatch/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// campaignRepository implements CampaignRepository interface
type campaignRepository struct {
	*BaseRepository[models.NotificationCampaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository instance
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &campaignRepository{
		BaseRepository: NewBaseRepository[models.NotificationCampaign, models.CampaignFilter](db),
	}
}

func (r *campaignRepository) FindReusable(ctx context.Context, assignmentID uuid.UUID, kind models.RecipientKind, toEmail, toPhone *string) (*models.NotificationCampaign, error) {
	db := r.getDB(ctx)

	query := db.Where("assignment_id = ? AND recipient_kind = ? AND status IN ?",
		assignmentID, kind, []models.CampaignStatus{models.CampaignStatusActive, models.CampaignStatusConfirmed})

	// Contacts must match exactly, NULLs included, so a changed email or
	// phone yields a fresh campaign instead of reusing a stale one.
	if toEmail != nil {
		query = query.Where("to_email = ?", *toEmail)
	} else {
		query = query.Where("to_email IS NULL")
	}
	if toPhone != nil {
		query = query.Where("to_phone = ?", *toPhone)
	} else {
		query = query.Where("to_phone IS NULL")
	}

	var campaign models.NotificationCampaign
	err := query.Order("created_at DESC").First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find reusable campaign: %w", err)
	}

	return &campaign, nil
}

func (r *campaignRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.NotificationCampaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.NotificationCampaign
	err := db.Where("status = ? AND confirmed_at IS NULL AND next_attempt_at IS NOT NULL AND next_attempt_at <= ?",
		models.CampaignStatusActive, now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}

	return campaigns, nil
}

func (r *campaignRepository) ListActiveByCode(ctx context.Context, code string, limit int) ([]*models.NotificationCampaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.NotificationCampaign
	err := db.Preload("Assignment").
		Where("confirm_code = ? AND status = ? AND confirmed_at IS NULL", code, models.CampaignStatusActive).
		Order("created_at DESC").
		Limit(limit).
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active campaigns by code: %w", err)
	}

	return campaigns, nil
}

func (r *campaignRepository) ClaimDue(ctx context.Context, campaignID uuid.UUID, seenNextAttemptAt time.Time, nextAttemptAt *time.Time, reminderCount int, status models.CampaignStatus) (bool, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.NotificationCampaign{}).
		Where("id = ? AND status = ? AND confirmed_at IS NULL AND next_attempt_at = ?",
			campaignID, models.CampaignStatusActive, seenNextAttemptAt).
		Updates(map[string]any{
			"status":          status,
			"reminder_count":  reminderCount,
			"next_attempt_at": nextAttemptAt,
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim due campaign %s: %w", campaignID, result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *campaignRepository) ClearNextAttempt(ctx context.Context, campaignID uuid.UUID) error {
	db := r.getDB(ctx)

	err := db.Model(&models.NotificationCampaign{}).
		Where("id = ? AND status = ?", campaignID, models.CampaignStatusActive).
		Updates(map[string]any{
			"next_attempt_at": nil,
			"updated_at":      time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to clear next attempt for campaign %s: %w", campaignID, err)
	}

	return nil
}

func (r *campaignRepository) ScheduleFirstReminder(ctx context.Context, campaignID uuid.UUID, at time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.NotificationCampaign{}).
		Where("id = ? AND status = ? AND next_attempt_at IS NULL", campaignID, models.CampaignStatusActive).
		Updates(map[string]any{
			"next_attempt_at": at,
			"updated_at":      time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to schedule first reminder for campaign %s: %w", campaignID, err)
	}

	return nil
}

func (r *campaignRepository) Confirm(ctx context.Context, campaignID uuid.UUID, via string, at time.Time) (bool, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.NotificationCampaign{}).
		Where("id = ? AND confirmed_at IS NULL", campaignID).
		Updates(map[string]any{
			"status":          models.CampaignStatusConfirmed,
			"confirmed_at":    at,
			"confirmed_via":   via,
			"next_attempt_at": nil,
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to confirm campaign %s: %w", campaignID, result.Error)
	}

	return result.RowsAffected > 0, nil
}

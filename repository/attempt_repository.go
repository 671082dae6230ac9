// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"

	"github.com/bf1digital/spot-dispatch/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// attemptRepository implements AttemptRepository interface
type attemptRepository struct {
	*BaseRepository[models.NotificationAttempt, models.AttemptFilter]
}

// NewAttemptRepository creates a new attempt repository instance
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{
		BaseRepository: NewBaseRepository[models.NotificationAttempt, models.AttemptFilter](db),
	}
}

func (r *attemptRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]*models.NotificationAttempt, error) {
	db := r.getDB(ctx)

	var attempts []*models.NotificationAttempt
	err := db.Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts for campaign %s: %w", campaignID, err)
	}

	return attempts, nil
}

func (r *attemptRepository) ExistsByCampaignAndChannel(ctx context.Context, campaignID uuid.UUID, channel models.AttemptChannel) (bool, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.NotificationAttempt{}).
		Where("campaign_id = ? AND channel = ?", campaignID, channel).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count attempts for campaign %s: %w", campaignID, err)
	}

	return count > 0, nil
}

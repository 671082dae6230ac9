// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"

	"github.com/bf1digital/spot-dispatch/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignmentLogRepository implements AssignmentLogRepository interface
type assignmentLogRepository struct {
	*BaseRepository[models.AssignmentLog, models.AssignmentLogFilter]
}

// NewAssignmentLogRepository creates a new assignment log repository instance
func NewAssignmentLogRepository(db *gorm.DB) AssignmentLogRepository {
	return &assignmentLogRepository{
		BaseRepository: NewBaseRepository[models.AssignmentLog, models.AssignmentLogFilter](db),
	}
}

func (r *assignmentLogRepository) ListByAssignment(ctx context.Context, assignmentID uuid.UUID, limit, offset int) ([]*models.AssignmentLog, error) {
	db := r.getDB(ctx)

	var logs []*models.AssignmentLog
	err := db.Where("assignment_id = ?", assignmentID).
		Order("at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list logs for assignment %s: %w", assignmentID, err)
	}

	return logs, nil
}

// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"github.com/bf1digital/spot-dispatch/models"
	"gorm.io/gorm"
)

// assignmentRepository implements AssignmentRepository interface
type assignmentRepository struct {
	*BaseRepository[models.CoverageAssignment, models.AssignmentFilter]
}

// NewAssignmentRepository creates a new assignment repository instance
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{
		BaseRepository: NewBaseRepository[models.CoverageAssignment, models.AssignmentFilter](db),
	}
}

// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/bf1digital/spot-dispatch/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uuid.UUID) (*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
}

// AssignmentRepository defines operations for coverage assignments
type AssignmentRepository interface {
	Repository[models.CoverageAssignment, models.AssignmentFilter]
}

// CampaignRepository defines operations for notification campaigns
type CampaignRepository interface {
	Repository[models.NotificationCampaign, models.CampaignFilter]

	// FindReusable returns the newest campaign for the exact
	// (assignment, kind, email, phone) tuple whose status is active or
	// confirmed, or nil when none exists.
	FindReusable(ctx context.Context, assignmentID uuid.UUID, kind models.RecipientKind, toEmail, toPhone *string) (*models.NotificationCampaign, error)

	// ListDue returns up to limit active unconfirmed campaigns whose
	// next_attempt_at is at or before now, oldest due first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.NotificationCampaign, error)

	// ListActiveByCode returns active unconfirmed campaigns carrying the
	// given confirm code, newest first, up to limit.
	ListActiveByCode(ctx context.Context, code string, limit int) ([]*models.NotificationCampaign, error)

	// ClaimDue conditionally advances a due campaign's reminder state. The
	// update only applies while the row is still active with the
	// next_attempt_at value the caller observed, so concurrent scheduler
	// replicas (or a confirmation racing the batch) cause at most one
	// winner. Returns false when the row was claimed or confirmed by
	// someone else.
	ClaimDue(ctx context.Context, campaignID uuid.UUID, seenNextAttemptAt time.Time, nextAttemptAt *time.Time, reminderCount int, status models.CampaignStatus) (bool, error)

	// ClearNextAttempt drops the retry schedule of an active campaign
	// (used when no phone is available to retry against).
	ClearNextAttempt(ctx context.Context, campaignID uuid.UUID) error

	// ScheduleFirstReminder arms the SMS retry loop on an active campaign
	// that has none scheduled yet.
	ScheduleFirstReminder(ctx context.Context, campaignID uuid.UUID, at time.Time) error

	// Confirm performs the idempotent confirmed transition: it only
	// applies while confirmed_at is still null, and atomically sets
	// confirmed_at, confirmed_via, status and clears next_attempt_at.
	// Returns false when the campaign was already confirmed.
	Confirm(ctx context.Context, campaignID uuid.UUID, via string, at time.Time) (bool, error)
}

// AttemptRepository defines operations for notification attempts
type AttemptRepository interface {
	Repository[models.NotificationAttempt, models.AttemptFilter]

	ListByCampaign(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]*models.NotificationAttempt, error)
	ExistsByCampaignAndChannel(ctx context.Context, campaignID uuid.UUID, channel models.AttemptChannel) (bool, error)
}

// AssignmentLogRepository defines operations for the append-only audit trail
type AssignmentLogRepository interface {
	Repository[models.AssignmentLog, models.AssignmentLogFilter]

	ListByAssignment(ctx context.Context, assignmentID uuid.UUID, limit, offset int) ([]*models.AssignmentLog, error)
}

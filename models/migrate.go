package models

import (
	"fmt"

	"gorm.io/gorm"
)

// enumTypes maps each Postgres enum type to its allowed values. AutoMigrate
// cannot create enum types itself, so they are created up front.
var enumTypes = map[string][]string{
	"assignment_status": {"assigned", "in_field", "delivered", "done"},
	"campaign_status":   {"active", "confirmed", "expired", "cancelled"},
	"recipient_kind":    {"journalist", "driver"},
	"attempt_channel":   {"email", "sms", "whatsapp", "web"},
	"attempt_status":    {"queued", "sent", "delivered", "failed", "skipped", "confirmed"},
}

// AutoMigrate creates the enum types and applies the schema for all
// persistent models.
func AutoMigrate(db *gorm.DB) error {
	for name, values := range enumTypes {
		stmt := fmt.Sprintf(
			`DO $$ BEGIN CREATE TYPE %s AS ENUM ('%s'); EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,
			name, joinEnumValues(values))
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create enum type %s: %w", name, err)
		}
	}

	return db.AutoMigrate(
		&CoverageAssignment{},
		&NotificationCampaign{},
		&NotificationAttempt{},
		&AssignmentLog{},
	)
}

func joinEnumValues(values []string) string {
	out := ""
	for i, v := range values {
		if i > 0 {
			out += "', '"
		}
		out += v
	}
	return out
}

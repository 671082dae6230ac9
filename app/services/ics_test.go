package services

import (
	"strings"
	"testing"
	"time"

	"github.com/bf1digital/spot-dispatch/models"
	"github.com/bf1digital/spot-dispatch/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAssignmentICS(t *testing.T) {
	endTime := time.Date(0, 1, 1, 11, 0, 0, 0, time.UTC)
	assignment := &models.CoverageAssignment{
		ID:          uuid.New(),
		EventTitle:  "Conseil des ministres",
		EventDate:   time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		StartTime:   time.Date(0, 1, 1, 9, 30, 0, 0, time.UTC),
		EndTime:     &endTime,
		Address:     "Kosyam, Ouagadougou",
		Description: "Accès presse\npar l'entrée nord",
	}

	filename, data := BuildAssignmentICS(assignment, "Africa/Ouagadougou", "bf1tv.bf")
	content := string(data)

	assert.Equal(t, "bf1-couverture-20260915.ics", filename)
	assert.True(t, strings.HasPrefix(content, "BEGIN:VCALENDAR\r\n"))
	assert.Contains(t, content, "BEGIN:VEVENT")
	assert.Contains(t, content, "UID:"+assignment.ID.String()+"@bf1tv.bf")
	assert.Contains(t, content, "DTSTART;TZID=Africa/Ouagadougou:20260915T093000")
	assert.Contains(t, content, "DTEND;TZID=Africa/Ouagadougou:20260915T110000")
	assert.Contains(t, content, "SUMMARY:Conseil des ministres")
	assert.Contains(t, content, "LOCATION:Kosyam, Ouagadougou")
	// Newlines in free-text fields must not break the line-based format.
	assert.Contains(t, content, "DESCRIPTION:Accès presse par l'entrée nord")
	assert.Contains(t, content, "END:VCALENDAR")
}

func TestBuildAssignmentICSDefaultsToOneHour(t *testing.T) {
	assignment := &models.CoverageAssignment{
		ID:         uuid.New(),
		EventTitle: "Match de gala",
		EventDate:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		StartTime:  time.Date(0, 1, 1, 15, 0, 0, 0, time.UTC),
	}

	_, data := BuildAssignmentICS(assignment, "Africa/Ouagadougou", "bf1tv.bf")
	content := string(data)

	assert.Contains(t, content, "DTSTART;TZID=Africa/Ouagadougou:20261001T150000")
	assert.Contains(t, content, "DTEND;TZID=Africa/Ouagadougou:20261001T160000")
}

func TestBuildAssignmentICSEmptyTitle(t *testing.T) {
	assignment := &models.CoverageAssignment{
		ID:        uuid.New(),
		EventDate: utils.UTCNow(),
		StartTime: utils.UTCNow(),
	}

	_, data := BuildAssignmentICS(assignment, "Africa/Ouagadougou", "bf1tv.bf")
	require.Contains(t, string(data), "SUMMARY:Couverture BF1")
}

// Package services provides external service integrations and technical concerns like channel delivery and document rendering
package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/bf1digital/spot-dispatch/models"
	"github.com/bf1digital/spot-dispatch/utils"
)

// BuildAssignmentICS renders a single-event iCalendar document for the
// assignment. When no end time is set the event defaults to one hour.
// Returns the suggested download filename and the calendar bytes.
func BuildAssignmentICS(assignment *models.CoverageAssignment, tzid, uidDomain string) (string, []byte) {
	start := combineDateTime(assignment.EventDate, assignment.StartTime)
	var end time.Time
	if assignment.EndTime != nil {
		end = combineDateTime(assignment.EventDate, *assignment.EndTime)
	} else {
		end = start.Add(time.Hour)
	}

	summary := assignment.EventTitle
	if summary == "" {
		summary = "Couverture BF1"
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//BF1 TV//SPOT//FR",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		fmt.Sprintf("UID:%s@%s", assignment.ID, uidDomain),
		fmt.Sprintf("DTSTAMP:%s", utils.UTCNow().Format("20060102T150405Z")),
		fmt.Sprintf("DTSTART;TZID=%s:%s", tzid, start.Format("20060102T150405")),
		fmt.Sprintf("DTEND;TZID=%s:%s", tzid, end.Format("20060102T150405")),
		fmt.Sprintf("SUMMARY:%s", icsEscape(summary)),
		fmt.Sprintf("LOCATION:%s", icsEscape(assignment.Address)),
		fmt.Sprintf("DESCRIPTION:%s", icsEscape(assignment.Description)),
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}

	filename := fmt.Sprintf("bf1-couverture-%s.ics", assignment.EventDate.Format("20060102"))
	return filename, []byte(strings.Join(lines, "\r\n"))
}

func combineDateTime(date, clock time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC)
}

func icsEscape(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(s)
}

// Package status classifies certificate and service due dates for the
// dashboard and reminder lists.
package status

import "time"

type DueStatus string

const (
	Overdue DueStatus = "overdue"
	DueSoon DueStatus = "due_soon"
	Current DueStatus = "current"
)

// DueSoonWindow is how far ahead a due date counts as coming up.
const DueSoonWindow = 30 * 24 * time.Hour

// Classify buckets a due date relative to now. A date exactly now is
// already overdue; a date exactly 30 days out is still due soon.
func Classify(nextDue, now time.Time) DueStatus {
	if !nextDue.After(now) {
		return Overdue
	}
	if !nextDue.After(now.Add(DueSoonWindow)) {
		return DueSoon
	}
	return Current
}

// NextDue returns the annual re-inspection date for a completed
// inspection.
func NextDue(inspectionDate time.Time) time.Time {
	return inspectionDate.AddDate(1, 0, 0)
}

// Package ticket persists scanned haul-ticket records and resolves
// duplicate ticket numbers through suffix versioning.
package ticket

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a ticket or timesheet lookup matches nothing.
var ErrNotFound = errors.New("ticket: not found")

// Record is one persisted scanned ticket. Pointer fields are nullable
// columns; nil means the extractor found nothing.
type Record struct {
	ID          int64
	ForemanID   int64
	TimesheetID int64
	JobPhaseID  int64
	Category    string
	SubCategory string
	ImagePath   string
	RawText     string
	TableData   [][]string

	TicketNumber *string
	TicketDate   *string
	HaulVendor   *string
	TruckNumber  *string
	Material     *string
	JobNumber    *string
	PhaseCode    *string
	Zone         *string
	Hours        *float64

	CreatedAt time.Time
}

// Timesheet is the daily timesheet a scanned ticket attaches to.
type Timesheet struct {
	ID         int64
	ForemanID  int64
	JobPhaseID int64
	Date       time.Time
}

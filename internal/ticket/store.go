package ticket

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Store persists tickets and timesheets in MySQL.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to MySQL with the given DSN and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

const ticketColumns = `id, foreman_id, timesheet_id, job_phase_id, category, sub_category,
	image_path, raw_text_content, table_data, ticket_number, ticket_date, haul_vendor,
	truck_number, material, job_number, phase_code, zone, hours, created_at`

// ForemanExists reports whether a user row exists for the given id.
func (s *Store) ForemanExists(ctx context.Context, foremanID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", foremanID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query foreman %d: %w", foremanID, err)
	}
	return exists, nil
}

// ResolveTimesheet picks the timesheet a new scan attaches to. An explicit
// id wins when it belongs to the foreman. Otherwise the foreman's sheets
// are scanned newest-first: one dated today, else the most recent dated on
// or before today, else the most recent of any date. ErrNotFound means the
// foreman has no timesheets at all.
func (s *Store) ResolveTimesheet(ctx context.Context, foremanID, explicitID int64, today time.Time) (*Timesheet, error) {
	if explicitID > 0 {
		ts, err := s.timesheetByID(ctx, explicitID, foremanID)
		if err == nil {
			return ts, nil
		}
		if err != ErrNotFound {
			return nil, err
		}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, foreman_id, job_phase_id, date FROM timesheets WHERE foreman_id = ? ORDER BY date DESC",
		foremanID)
	if err != nil {
		return nil, fmt.Errorf("query timesheets for foreman %d: %w", foremanID, err)
	}
	defer rows.Close()

	day := today.Truncate(24 * time.Hour)
	var all []Timesheet
	for rows.Next() {
		var ts Timesheet
		if err := rows.Scan(&ts.ID, &ts.ForemanID, &ts.JobPhaseID, &ts.Date); err != nil {
			return nil, fmt.Errorf("scan timesheet: %w", err)
		}
		all = append(all, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timesheets: %w", err)
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	for i, ts := range all {
		if ts.Date.Truncate(24 * time.Hour).Equal(day) {
			return &all[i], nil
		}
	}
	for i, ts := range all {
		if !ts.Date.After(day) {
			return &all[i], nil
		}
	}
	return &all[0], nil
}

func (s *Store) timesheetByID(ctx context.Context, id, foremanID int64) (*Timesheet, error) {
	var ts Timesheet
	err := s.db.QueryRowContext(ctx,
		"SELECT id, foreman_id, job_phase_id, date FROM timesheets WHERE id = ? AND foreman_id = ?",
		id, foremanID).Scan(&ts.ID, &ts.ForemanID, &ts.JobPhaseID, &ts.Date)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query timesheet %d: %w", id, err)
	}
	return &ts, nil
}

// InsertTicket stores a new record and fills in its id.
func (s *Store) InsertTicket(ctx context.Context, r *Record) error {
	tableJSON, err := json.Marshal(r.TableData)
	if err != nil {
		return fmt.Errorf("marshal table data: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO tickets
		(foreman_id, timesheet_id, job_phase_id, category, sub_category, image_path,
		 raw_text_content, table_data, ticket_number, ticket_date, haul_vendor,
		 truck_number, material, job_number, phase_code, zone, hours)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ForemanID, r.TimesheetID, r.JobPhaseID, r.Category, r.SubCategory, r.ImagePath,
		r.RawText, tableJSON, r.TicketNumber, r.TicketDate, r.HaulVendor,
		r.TruckNumber, r.Material, r.JobNumber, r.PhaseCode, r.Zone, r.Hours)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("ticket id: %w", err)
	}
	return nil
}

// GetTicketForForeman loads one ticket, scoped to its owner.
func (s *Store) GetTicketForForeman(ctx context.Context, ticketID, foremanID int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE id = ? AND foreman_id = ?",
		ticketID, foremanID)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query ticket %d: %w", ticketID, err)
	}
	return r, nil
}

// TicketsByForeman returns the foreman's tickets, newest first.
func (s *Store) TicketsByForeman(ctx context.Context, foremanID int64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE foreman_id = ? ORDER BY created_at DESC",
		foremanID)
	if err != nil {
		return nil, fmt.Errorf("query tickets for foreman %d: %w", foremanID, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateExtractedFields rewrites the raw text and every extracted field of
// an existing ticket, typically after a manual text correction.
func (s *Store) UpdateExtractedFields(ctx context.Context, r *Record) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tickets SET raw_text_content = ?,
		ticket_number = ?, ticket_date = ?, haul_vendor = ?, truck_number = ?,
		material = ?, job_number = ?, phase_code = ?, zone = ?, hours = ?
		WHERE id = ? AND foreman_id = ?`,
		r.RawText, r.TicketNumber, r.TicketDate, r.HaulVendor, r.TruckNumber,
		r.Material, r.JobNumber, r.PhaseCode, r.Zone, r.Hours, r.ID, r.ForemanID)
	if err != nil {
		return fmt.Errorf("update ticket %d: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ticket %d: %w", r.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTicket removes a ticket, scoped to its owner.
func (s *Store) DeleteTicket(ctx context.Context, ticketID, foremanID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM tickets WHERE id = ? AND foreman_id = ?", ticketID, foremanID)
	if err != nil {
		return fmt.Errorf("delete ticket %d: %w", ticketID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete ticket %d: %w", ticketID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TicketNumberExists implements NumberIndex with a case-insensitive match.
func (s *Store) TicketNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM tickets WHERE LOWER(ticket_number) = LOWER(?))",
		number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query ticket number %q: %w", number, err)
	}
	return exists, nil
}

// TicketNumbersWithBase implements NumberIndex, returning every stored
// number that starts with the base (case-insensitive).
func (s *Store) TicketNumbersWithBase(ctx context.Context, base string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticket_number FROM tickets
		 WHERE ticket_number IS NOT NULL AND LOWER(ticket_number) LIKE CONCAT(LOWER(?), '%')`,
		base)
	if err != nil {
		return nil, fmt.Errorf("query numbers with base %q: %w", base, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan ticket number: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var tableJSON []byte
	err := row.Scan(&r.ID, &r.ForemanID, &r.TimesheetID, &r.JobPhaseID, &r.Category,
		&r.SubCategory, &r.ImagePath, &r.RawText, &tableJSON, &r.TicketNumber,
		&r.TicketDate, &r.HaulVendor, &r.TruckNumber, &r.Material, &r.JobNumber,
		&r.PhaseCode, &r.Zone, &r.Hours, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(tableJSON) > 0 {
		if err := json.Unmarshal(tableJSON, &r.TableData); err != nil {
			return nil, fmt.Errorf("unmarshal table data: %w", err)
		}
	}
	return &r, nil
}

package ticket

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestInsertTicketStoresTableDataAsJSON(t *testing.T) {
	store, mock := newMockStore(t)
	num := "42"
	mock.ExpectExec("INSERT INTO tickets").
		WithArgs(int64(7), int64(3), int64(5), "Trucking", "Import", "/media/t.pdf",
			"raw", []byte(`[["a",""],["b","c"]]`), "42", nil, nil, nil, nil, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(11, 1))

	r := &Record{
		ForemanID: 7, TimesheetID: 3, JobPhaseID: 5,
		Category: "Trucking", SubCategory: "Import",
		ImagePath: "/media/t.pdf", RawText: "raw",
		TableData:    [][]string{{"a", ""}, {"b", "c"}},
		TicketNumber: &num,
	}
	require.NoError(t, store.InsertTicket(context.Background(), r))

	assert.EqualValues(t, 11, r.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveTimesheetPrefersToday(t *testing.T) {
	store, mock := newMockStore(t)
	cols := []string{"id", "foreman_id", "job_phase_id", "date"}
	mock.ExpectQuery("SELECT id, foreman_id, job_phase_id, date FROM timesheets").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, 7, 1, day("2026-09-02")).
			AddRow(2, 7, 1, day("2026-09-01")).
			AddRow(1, 7, 1, day("2026-08-30")))

	ts, err := store.ResolveTimesheet(context.Background(), 7, 0, day("2026-09-01"))

	require.NoError(t, err)
	assert.EqualValues(t, 2, ts.ID)
}

func TestResolveTimesheetFallsBackToMostRecentPast(t *testing.T) {
	store, mock := newMockStore(t)
	cols := []string{"id", "foreman_id", "job_phase_id", "date"}
	mock.ExpectQuery("SELECT id, foreman_id, job_phase_id, date FROM timesheets").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, 7, 1, day("2026-09-05")).
			AddRow(2, 7, 1, day("2026-08-28")))

	ts, err := store.ResolveTimesheet(context.Background(), 7, 0, day("2026-09-01"))

	require.NoError(t, err)
	assert.EqualValues(t, 2, ts.ID)
}

func TestResolveTimesheetAllFutureTakesNewest(t *testing.T) {
	store, mock := newMockStore(t)
	cols := []string{"id", "foreman_id", "job_phase_id", "date"}
	mock.ExpectQuery("SELECT id, foreman_id, job_phase_id, date FROM timesheets").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(9, 7, 1, day("2026-09-10")).
			AddRow(8, 7, 1, day("2026-09-09")))

	ts, err := store.ResolveTimesheet(context.Background(), 7, 0, day("2026-09-01"))

	require.NoError(t, err)
	assert.EqualValues(t, 9, ts.ID)
}

func TestResolveTimesheetNoSheets(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, foreman_id, job_phase_id, date FROM timesheets").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "foreman_id", "job_phase_id", "date"}))

	_, err := store.ResolveTimesheet(context.Background(), 7, 0, day("2026-09-01"))

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveTimesheetExplicitIDWins(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, foreman_id, job_phase_id, date FROM timesheets WHERE id").
		WithArgs(int64(4), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "foreman_id", "job_phase_id", "date"}).
			AddRow(4, 7, 2, day("2026-08-01")))

	ts, err := store.ResolveTimesheet(context.Background(), 7, 4, day("2026-09-01"))

	require.NoError(t, err)
	assert.EqualValues(t, 4, ts.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTicketNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM tickets").
		WithArgs(int64(99), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteTicket(context.Background(), 99, 7)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketNumberExists(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("1005").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.TicketNumberExists(context.Background(), "1005")

	require.NoError(t, err)
	assert.True(t, exists)
}

func TestTicketNumbersWithBase(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT ticket_number FROM tickets").
		WithArgs("1005").
		WillReturnRows(sqlmock.NewRows([]string{"ticket_number"}).
			AddRow("1005").AddRow("1005.1"))

	numbers, err := store.TicketNumbersWithBase(context.Background(), "1005")

	require.NoError(t, err)
	assert.Equal(t, []string{"1005", "1005.1"}, numbers)
}

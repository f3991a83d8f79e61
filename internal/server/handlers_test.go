package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/ticketscan/internal/scan"
	"github.com/fieldops/ticketscan/internal/ticket"
)

type fakeStore struct {
	foremen   map[int64]bool
	timesheet *ticket.Timesheet
	tickets   map[int64]*ticket.Record

	updated *ticket.Record
	deleted []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		foremen: map[int64]bool{7: true},
		timesheet: &ticket.Timesheet{
			ID: 3, ForemanID: 7, JobPhaseID: 5,
			Date: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		},
		tickets: map[int64]*ticket.Record{},
	}
}

func (s *fakeStore) ForemanExists(_ context.Context, id int64) (bool, error) {
	return s.foremen[id], nil
}

func (s *fakeStore) ResolveTimesheet(_ context.Context, foremanID, _ int64, _ time.Time) (*ticket.Timesheet, error) {
	if s.timesheet == nil || s.timesheet.ForemanID != foremanID {
		return nil, ticket.ErrNotFound
	}
	return s.timesheet, nil
}

func (s *fakeStore) GetTicketForForeman(_ context.Context, ticketID, foremanID int64) (*ticket.Record, error) {
	r, ok := s.tickets[ticketID]
	if !ok || r.ForemanID != foremanID {
		return nil, ticket.ErrNotFound
	}
	return r, nil
}

func (s *fakeStore) TicketsByForeman(_ context.Context, foremanID int64) ([]ticket.Record, error) {
	var out []ticket.Record
	for _, r := range s.tickets {
		if r.ForemanID == foremanID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateExtractedFields(_ context.Context, r *ticket.Record) error {
	existing, ok := s.tickets[r.ID]
	if !ok || existing.ForemanID != r.ForemanID {
		return ticket.ErrNotFound
	}
	existing.RawText = r.RawText
	existing.TicketNumber = r.TicketNumber
	existing.TicketDate = r.TicketDate
	existing.Hours = r.Hours
	s.updated = existing
	return nil
}

func (s *fakeStore) DeleteTicket(_ context.Context, ticketID, foremanID int64) error {
	r, ok := s.tickets[ticketID]
	if !ok || r.ForemanID != foremanID {
		return ticket.ErrNotFound
	}
	delete(s.tickets, ticketID)
	s.deleted = append(s.deleted, ticketID)
	return nil
}

type fakeScheduler struct {
	subs []scan.Submission
	err  error
}

func (f *fakeScheduler) Submit(sub scan.Submission) error {
	if f.err != nil {
		return f.err
	}
	f.subs = append(f.subs, sub)
	return nil
}

func newTestServer(store *fakeStore, sched *fakeScheduler) *Server {
	return NewServer(Config{CORSOrigin: "*", MaxUploadMB: 10},
		store, sched, nil, nil, nil)
}

func multipartScan(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestScanHandlerAcceptsUpload(t *testing.T) {
	store := newFakeStore()
	sched := &fakeScheduler{}
	srv := newTestServer(store, sched)

	body, contentType := multipartScan(t,
		map[string]string{"foreman_id": "7", "category": "hauling"},
		map[string][]byte{"page1.png": []byte("img-bytes")})
	req := httptest.NewRequest(http.MethodPost, "/api/ocr/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.scanHandler(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.TimesheetID)

	require.Len(t, sched.subs, 1)
	sub := sched.subs[0]
	assert.Equal(t, int64(7), sub.ForemanID)
	assert.Equal(t, int64(3), sub.Timesheet.ID)
	assert.Equal(t, "hauling", sub.Category)
	require.Len(t, sub.Files, 1)
	assert.Equal(t, "page1.png", sub.Files[0].Name)
}

func TestScanHandlerUnknownForeman(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeScheduler{})

	body, contentType := multipartScan(t,
		map[string]string{"foreman_id": "99"},
		map[string][]byte{"p.png": []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/api/ocr/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.scanHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Foreman not found")
}

func TestScanHandlerNoTimesheet(t *testing.T) {
	store := newFakeStore()
	store.timesheet = nil
	srv := newTestServer(store, &fakeScheduler{})

	body, contentType := multipartScan(t,
		map[string]string{"foreman_id": "7"},
		map[string][]byte{"p.png": []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/api/ocr/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.scanHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No timesheet")
}

func TestScanHandlerFiltersNonImageParts(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeScheduler{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("foreman_id", "7"))
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="files"; filename="notes.txt"`)
	h.Set("Content-Type", "text/plain")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("not an image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ocr/scan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	srv.scanHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No valid images")
}

func TestScanHandlerQueueFull(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeScheduler{err: scan.ErrQueueFull})

	body, contentType := multipartScan(t,
		map[string]string{"foreman_id": "7"},
		map[string][]byte{"p.png": []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/api/ocr/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.scanHandler(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTicketsByForemanHandler(t *testing.T) {
	store := newFakeStore()
	num := "42"
	store.tickets[1] = &ticket.Record{ID: 1, ForemanID: 7, TicketNumber: &num}
	store.tickets[2] = &ticket.Record{ID: 2, ForemanID: 8}
	srv := newTestServer(store, &fakeScheduler{})

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	req := httptest.NewRequest(http.MethodGet, "/api/ocr/by-foreman/7", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var dtos []TicketDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dtos))
	require.Len(t, dtos, 1)
	assert.Equal(t, int64(1), dtos[0].ID)
	require.NotNil(t, dtos[0].TicketNumber)
	assert.Equal(t, "42", *dtos[0].TicketNumber)
}

func TestImagesByDateHandlerGroupsAndSorts(t *testing.T) {
	store := newFakeStore()
	d1 := "8/30/2026"
	store.tickets[1] = &ticket.Record{ID: 1, ForemanID: 7, TicketDate: &d1}
	store.tickets[2] = &ticket.Record{ID: 2, ForemanID: 7, TicketDate: &d1}
	bad := "not a date"
	store.tickets[3] = &ticket.Record{
		ID: 3, ForemanID: 7, TicketDate: &bad,
		CreatedAt: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}
	srv := newTestServer(store, &fakeScheduler{})

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	req := httptest.NewRequest(http.MethodGet, "/api/ocr/images-by-date/7", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		ImagesByDate []DateGroup `json:"imagesByDate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.ImagesByDate, 2)

	// Newest day first; the unparseable date falls back to the upload day.
	assert.Equal(t, "2026-09-01", resp.ImagesByDate[0].Date)
	assert.Equal(t, 1, resp.ImagesByDate[0].TicketCount)
	assert.Equal(t, "2026-08-30", resp.ImagesByDate[1].Date)
	assert.Equal(t, 2, resp.ImagesByDate[1].TicketCount)
}

func TestUpdateTicketHandlerReextractsFields(t *testing.T) {
	store := newFakeStore()
	store.tickets[5] = &ticket.Record{ID: 5, ForemanID: 7, RawText: "old"}
	srv := newTestServer(store, &fakeScheduler{})

	payload := `{"ticket_id": 5, "foreman_id": 7, "raw_text": "Ticket #: 1234\nHours: 6.5"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ocr/update-ticket-text", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	srv.updateTicketHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.updated)
	require.NotNil(t, store.updated.TicketNumber)
	assert.Equal(t, "1234", *store.updated.TicketNumber)
	require.NotNil(t, store.updated.Hours)
	assert.InDelta(t, 6.5, *store.updated.Hours, 1e-9)
}

func TestUpdateTicketHandlerNotFound(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeScheduler{})

	payload := `{"ticket_id": 123, "foreman_id": 7, "raw_text": "x"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ocr/update-ticket-text", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	srv.updateTicketHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteTicketHandlerRemovesRowAndFile(t *testing.T) {
	pdf := filepath.Join(t.TempDir(), "ticket.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF"), 0o600))

	store := newFakeStore()
	store.tickets[9] = &ticket.Record{ID: 9, ForemanID: 7, ImagePath: pdf}
	srv := newTestServer(store, &fakeScheduler{})

	payload := `{"ticket_id": 9, "foreman_id": 7}`
	req := httptest.NewRequest(http.MethodPost, "/api/ocr/delete-ticket", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	srv.deleteTicketHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{9}, store.deleted)
	assert.NoFileExists(t, pdf)
	assert.Contains(t, rec.Body.String(), pdf)
}

func TestDeleteTicketHandlerMissingFileStillDeletesRow(t *testing.T) {
	store := newFakeStore()
	store.tickets[9] = &ticket.Record{ID: 9, ForemanID: 7, ImagePath: "/nonexistent/ticket.pdf"}
	srv := newTestServer(store, &fakeScheduler{})

	payload := `{"ticket_id": 9, "foreman_id": 7}`
	req := httptest.NewRequest(http.MethodPost, "/api/ocr/delete-ticket", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	srv.deleteTicketHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{9}, store.deleted)
}

func TestDeleteTicketHandlerWrongOwner(t *testing.T) {
	store := newFakeStore()
	store.tickets[9] = &ticket.Record{ID: 9, ForemanID: 8}
	srv := newTestServer(store, &fakeScheduler{})

	payload := `{"ticket_id": 9, "foreman_id": 7}`
	req := httptest.NewRequest(http.MethodPost, "/api/ocr/delete-ticket", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	srv.deleteTicketHandler(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, store.deleted)
}

func TestHealthHandler(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.healthHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeScheduler{})

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	rec := httptest.NewRecorder()
	srv.corsMiddleware(srv.healthHandler)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Body.String())
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops/ticketscan/internal/extract"
	"github.com/fieldops/ticketscan/internal/scan"
	"github.com/fieldops/ticketscan/internal/ticket"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// scanHandler accepts a multipart ticket upload, resolves the target
// timesheet, and queues the pages for background processing. The response
// acknowledges the upload; results arrive over the WebSocket feed.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	foremanID, err := strconv.ParseInt(r.FormValue("foreman_id"), 10, 64)
	if err != nil {
		s.writeErrorResponse(w, "Invalid foreman_id", http.StatusBadRequest)
		return
	}
	var timesheetID int64
	if v := r.FormValue("timesheet_id"); v != "" {
		if timesheetID, err = strconv.ParseInt(v, 10, 64); err != nil {
			s.writeErrorResponse(w, "Invalid timesheet_id", http.StatusBadRequest)
			return
		}
	}

	exists, err := s.store.ForemanExists(r.Context(), foremanID)
	if err != nil {
		s.writeErrorResponse(w, "Database error", http.StatusInternalServerError)
		return
	}
	if !exists {
		s.writeErrorResponse(w, "Foreman not found", http.StatusNotFound)
		return
	}

	sheet, err := s.store.ResolveTimesheet(r.Context(), foremanID, timesheetID, time.Now().UTC())
	if errors.Is(err, ticket.ErrNotFound) {
		s.writeErrorResponse(w, "No timesheet available for this foreman", http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeErrorResponse(w, "Database error", http.StatusInternalServerError)
		return
	}

	files, totalBytes, err := s.collectImageFiles(r)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read uploaded files", http.StatusInternalServerError)
		return
	}
	if len(files) == 0 {
		s.writeErrorResponse(w, "No valid images were provided.", http.StatusBadRequest)
		return
	}
	uploadSizeBytes.Observe(float64(totalBytes))

	sub := scan.Submission{
		ForemanID:   foremanID,
		Timesheet:   *sheet,
		Category:    r.FormValue("category"),
		SubCategory: r.FormValue("sub_category"),
		Files:       files,
	}
	if err := s.scheduler.Submit(sub); err != nil {
		scanRequestsTotal.WithLabelValues("rejected").Inc()
		s.writeErrorResponse(w, "Server busy, try again shortly", http.StatusServiceUnavailable)
		return
	}
	scanRequestsTotal.WithLabelValues("accepted").Inc()

	s.logger.Info("scan accepted",
		"foreman_id", foremanID,
		"timesheet_id", sheet.ID,
		"pages", len(files))
	s.writeJSON(w, http.StatusAccepted, ScanResponse{
		Message:     "Upload successful. Ticket is being processed.",
		Detail:      "The ticket will appear in your list shortly.",
		TimesheetID: sheet.ID,
	})
}

// collectImageFiles reads every uploaded part whose declared content type
// is an image; other parts are silently skipped.
func (s *Server) collectImageFiles(r *http.Request) ([]scan.File, int64, error) {
	if r.MultipartForm == nil {
		return nil, 0, nil
	}
	var files []scan.File
	var total int64
	for _, header := range r.MultipartForm.File["files"] {
		if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
			continue
		}
		f, err := header.Open()
		if err != nil {
			return nil, 0, err
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, 0, err
		}
		files = append(files, scan.File{Name: header.Filename, Data: data})
		total += int64(len(data))
	}
	return files, total, nil
}

// ticketsByForemanHandler lists every ticket belonging to one foreman,
// newest first.
func (s *Server) ticketsByForemanHandler(w http.ResponseWriter, r *http.Request) {
	foremanID, err := strconv.ParseInt(r.PathValue("foreman_id"), 10, 64)
	if err != nil {
		s.writeErrorResponse(w, "Invalid foreman id", http.StatusBadRequest)
		return
	}

	records, err := s.store.TicketsByForeman(r.Context(), foremanID)
	if err != nil {
		s.writeErrorResponse(w, "Database error", http.StatusInternalServerError)
		return
	}

	dtos := make([]TicketDTO, len(records))
	for i := range records {
		dtos[i] = toDTO(&records[i])
	}
	s.writeJSON(w, http.StatusOK, dtos)
}

// DateGroup is one day's worth of tickets in the grouped listing.
type DateGroup struct {
	Date        string      `json:"date"`
	Images      []TicketDTO `json:"images"`
	TicketCount int         `json:"ticket_count"`
}

// imagesByDateHandler lists a foreman's tickets grouped by day, newest day
// first. Tickets are keyed by their extracted date when it parses, and by
// their upload day otherwise.
func (s *Server) imagesByDateHandler(w http.ResponseWriter, r *http.Request) {
	foremanID, err := strconv.ParseInt(r.PathValue("foreman_id"), 10, 64)
	if err != nil {
		s.writeErrorResponse(w, "Invalid foreman id", http.StatusBadRequest)
		return
	}

	records, err := s.store.TicketsByForeman(r.Context(), foremanID)
	if err != nil {
		s.writeErrorResponse(w, "Database error", http.StatusInternalServerError)
		return
	}

	grouped := make(map[string][]TicketDTO)
	for i := range records {
		key := ticketDateKey(&records[i])
		grouped[key] = append(grouped[key], toDTO(&records[i]))
	}

	groups := make([]DateGroup, 0, len(grouped))
	for date, dtos := range grouped {
		groups = append(groups, DateGroup{Date: date, Images: dtos, TicketCount: len(dtos)})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date > groups[j].Date })

	s.writeJSON(w, http.StatusOK, map[string]any{"imagesByDate": groups})
}

// ticketDateKey derives the grouping day for a ticket as YYYY-MM-DD.
func ticketDateKey(r *ticket.Record) string {
	if r.TicketDate != nil {
		for _, layout := range []string{"1/2/2006", "1-2-2006"} {
			if d, err := time.Parse(layout, *r.TicketDate); err == nil {
				return d.Format("2006-01-02")
			}
		}
	}
	return r.CreatedAt.Format("2006-01-02")
}

// TicketUpdatePayload is a manual correction of a ticket's raw text.
type TicketUpdatePayload struct {
	TicketID  int64  `json:"ticket_id"`
	ForemanID int64  `json:"foreman_id"`
	RawText   string `json:"raw_text"`
}

// updateTicketHandler replaces a ticket's raw text and re-runs field
// extraction over the corrected text.
func (s *Server) updateTicketHandler(w http.ResponseWriter, r *http.Request) {
	var payload TicketUpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	fields := extract.Extract(payload.RawText)
	rec := &ticket.Record{
		ID:           payload.TicketID,
		ForemanID:    payload.ForemanID,
		RawText:      payload.RawText,
		TicketNumber: fields.TicketNumber,
		TicketDate:   fields.TicketDate,
		HaulVendor:   fields.HaulVendor,
		TruckNumber:  fields.TruckNumber,
		Material:     fields.Material,
		JobNumber:    fields.JobNumber,
		PhaseCode:    fields.PhaseCode,
		Zone:         fields.Zone,
		Hours:        fields.Hours,
	}
	err := s.store.UpdateExtractedFields(r.Context(), rec)
	if errors.Is(err, ticket.ErrNotFound) {
		s.writeErrorResponse(w, "Ticket not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeErrorResponse(w, "Database error", http.StatusInternalServerError)
		return
	}

	updated, err := s.store.GetTicketForForeman(r.Context(), payload.TicketID, payload.ForemanID)
	if err != nil {
		s.writeErrorResponse(w, "Database error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("ticket text updated", "ticket_id", payload.TicketID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Ticket updated successfully",
		"ticket":  toDTO(updated),
	})
}

// TicketDeletePayload identifies a ticket to delete, scoped to its owner.
type TicketDeletePayload struct {
	TicketID  int64 `json:"ticket_id"`
	ForemanID int64 `json:"foreman_id"`
}

// deleteTicketHandler removes a ticket row and its PDF artifact. A missing
// or undeletable file is logged but never blocks the database delete.
func (s *Server) deleteTicketHandler(w http.ResponseWriter, r *http.Request) {
	var payload TicketDeletePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	rec, err := s.store.GetTicketForForeman(r.Context(), payload.TicketID, payload.ForemanID)
	if errors.Is(err, ticket.ErrNotFound) {
		s.writeErrorResponse(w, "Ticket not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeErrorResponse(w, "Database error", http.StatusInternalServerError)
		return
	}

	var deletedPath string
	if rec.ImagePath != "" {
		if err := os.Remove(rec.ImagePath); err != nil {
			s.logger.Warn("could not remove ticket artifact",
				"ticket_id", payload.TicketID, "path", rec.ImagePath, "error", err)
		} else {
			deletedPath = rec.ImagePath
		}
	}

	err = s.store.DeleteTicket(r.Context(), payload.TicketID, payload.ForemanID)
	if errors.Is(err, ticket.ErrNotFound) {
		s.writeErrorResponse(w, "Ticket not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeErrorResponse(w, "Database error while deleting ticket", http.StatusInternalServerError)
		return
	}

	s.logger.Info("ticket deleted", "ticket_id", payload.TicketID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":           "Ticket deleted successfully",
		"deleted_ticket_id": payload.TicketID,
		"deleted_file_path": deletedPath,
	})
}

// Package server exposes the ticket API over HTTP: scan uploads, ticket
// queries and corrections, and the per-foreman WebSocket notification feed.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldops/ticketscan/internal/notify"
	"github.com/fieldops/ticketscan/internal/scan"
	"github.com/fieldops/ticketscan/internal/ticket"
)

// Store is the slice of the ticket store the handlers need.
type Store interface {
	ForemanExists(ctx context.Context, foremanID int64) (bool, error)
	ResolveTimesheet(ctx context.Context, foremanID, explicitID int64, today time.Time) (*ticket.Timesheet, error)
	GetTicketForForeman(ctx context.Context, ticketID, foremanID int64) (*ticket.Record, error)
	TicketsByForeman(ctx context.Context, foremanID int64) ([]ticket.Record, error)
	UpdateExtractedFields(ctx context.Context, r *ticket.Record) error
	DeleteTicket(ctx context.Context, ticketID, foremanID int64) error
}

// Scheduler accepts validated submissions for background processing.
type Scheduler interface {
	Submit(sub scan.Submission) error
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	store       Store
	scheduler   Scheduler
	hub         *notify.Hub
	limiter     *UploadLimiter
	corsOrigin  string
	maxUploadMB int64
	logger      *slog.Logger
}

// NewServer wires the API handlers to their collaborators. A nil limiter
// disables upload limiting.
func NewServer(cfg Config, store Store, scheduler Scheduler, hub *notify.Hub,
	limiter *UploadLimiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:       store,
		scheduler:   scheduler,
		hub:         hub,
		limiter:     limiter,
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		logger:      logger,
	}
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("POST /api/ocr/scan", s.corsMiddleware(s.limitMiddleware(s.scanHandler)))
	mux.HandleFunc("GET /api/ocr/by-foreman/{foreman_id}", s.corsMiddleware(s.ticketsByForemanHandler))
	mux.HandleFunc("GET /api/ocr/images-by-date/{foreman_id}", s.corsMiddleware(s.imagesByDateHandler))
	mux.HandleFunc("POST /api/ocr/update-ticket-text", s.corsMiddleware(s.updateTicketHandler))
	mux.HandleFunc("POST /api/ocr/delete-ticket", s.corsMiddleware(s.deleteTicketHandler))
	mux.HandleFunc("GET /ws/{foreman_id}", s.wsHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ScanResponse acknowledges an accepted upload before processing finishes.
type ScanResponse struct {
	Message     string `json:"message"`
	Detail      string `json:"detail"`
	TimesheetID int64  `json:"timesheet_id"`
}

// TicketDTO is the wire shape of one ticket record.
type TicketDTO struct {
	ID           int64      `json:"id"`
	ForemanID    int64      `json:"foreman_id"`
	TimesheetID  int64      `json:"timesheet_id"`
	ImageURL     string     `json:"image_url"`
	RawText      string     `json:"raw_text_content"`
	TableData    [][]string `json:"table_data,omitempty"`
	TicketNumber *string    `json:"ticket_number"`
	TicketDate   *string    `json:"ticket_date"`
	HaulVendor   *string    `json:"haul_vendor"`
	TruckNumber  *string    `json:"truck_number"`
	Material     *string    `json:"material"`
	JobNumber    *string    `json:"job_number"`
	PhaseCode    *string    `json:"phase_code"`
	Zone         *string    `json:"zone"`
	Hours        *float64   `json:"hours"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toDTO(r *ticket.Record) TicketDTO {
	return TicketDTO{
		ID:           r.ID,
		ForemanID:    r.ForemanID,
		TimesheetID:  r.TimesheetID,
		ImageURL:     r.ImagePath,
		RawText:      r.RawText,
		TableData:    r.TableData,
		TicketNumber: r.TicketNumber,
		TicketDate:   r.TicketDate,
		HaulVendor:   r.HaulVendor,
		TruckNumber:  r.TruckNumber,
		Material:     r.Material,
		JobNumber:    r.JobNumber,
		PhaseCode:    r.PhaseCode,
		Zone:         r.Zone,
		Hours:        r.Hours,
		CreatedAt:    r.CreatedAt,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, map[string]string{"detail": message})
}

// Package notify pushes scan-completion events to connected foremen over
// websockets. One connection per foreman: a new connection from the same
// foreman replaces the old one.
package notify

import (
	"log/slog"
	"sync"
)

// Event types pushed to clients.
const (
	EventProcessed = "ticket_processed"
	EventDuplicate = "duplicate_ticket"
)

// Event is the JSON payload sent to a foreman's device.
type Event struct {
	Type           string `json:"type"`
	TicketID       int64  `json:"ticket_id"`
	TicketNumber   string `json:"ticket_number,omitempty"`
	DetectedNumber string `json:"detected_number,omitempty"`
	AssignedNumber string `json:"assigned_number,omitempty"`
}

// Notifier reports pipeline outcomes to a foreman's channel.
type Notifier interface {
	TicketProcessed(foremanID, ticketID int64, number string)
	DuplicateTicket(foremanID, ticketID int64, detected, assigned string)
}

// Conn is the write side of a client connection. *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Hub tracks the live connection per foreman and delivers events.
type Hub struct {
	mu     sync.Mutex
	conns  map[int64]Conn
	logger *slog.Logger
}

// NewHub creates an empty connection hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{conns: make(map[int64]Conn), logger: logger}
}

// Register installs the foreman's connection, closing any previous one.
func (h *Hub) Register(foremanID int64, conn Conn) {
	h.mu.Lock()
	old := h.conns[foremanID]
	h.conns[foremanID] = conn
	h.mu.Unlock()
	if old != nil {
		old.Close()
		h.logger.Debug("replaced websocket connection", "foreman_id", foremanID)
	}
}

// Unregister removes the connection, but only when it is still the one on
// record. A stale disconnect from a replaced session must not tear down
// the replacement.
func (h *Hub) Unregister(foremanID int64, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[foremanID] == conn {
		delete(h.conns, foremanID)
	}
}

// TicketProcessed implements Notifier.
func (h *Hub) TicketProcessed(foremanID, ticketID int64, number string) {
	h.send(foremanID, Event{Type: EventProcessed, TicketID: ticketID, TicketNumber: number})
}

// DuplicateTicket implements Notifier. Carrying both numbers lets the
// operator check the source document instead of silently losing the
// original identity.
func (h *Hub) DuplicateTicket(foremanID, ticketID int64, detected, assigned string) {
	h.send(foremanID, Event{
		Type:           EventDuplicate,
		TicketID:       ticketID,
		TicketNumber:   assigned,
		DetectedNumber: detected,
		AssignedNumber: assigned,
	})
}

// send delivers one event. The lock stays held across the write: gorilla
// connections allow only one writer at a time, and two workers can finish
// scans for the same foreman simultaneously.
func (h *Hub) send(foremanID int64, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn := h.conns[foremanID]
	if conn == nil {
		return
	}
	if err := conn.WriteJSON(ev); err != nil {
		h.logger.Warn("websocket send failed", "foreman_id", foremanID, "error", err)
	}
}

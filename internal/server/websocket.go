package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Tablets connect from the field over changing networks; origin
		// filtering happens at the proxy.
		return true
	},
}

// wsHandler upgrades the connection and registers it as the foreman's
// notification feed. The read loop only exists to detect disconnects;
// clients never send application messages.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	foremanID, err := strconv.ParseInt(r.PathValue("foreman_id"), 10, 64)
	if err != nil {
		s.writeErrorResponse(w, "Invalid foreman id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "foreman_id", foremanID, "error", err)
		return
	}

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.hub.Register(foremanID, conn)
	defer s.hub.Unregister(foremanID, conn)
	defer func() { _ = conn.Close() }()

	s.logger.Info("websocket connected", "foreman_id", foremanID, "remote_addr", r.RemoteAddr)

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error", "foreman_id", foremanID, "error", err)
			}
			return
		}
	}
}

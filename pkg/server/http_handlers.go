package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandler reports liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// StatsHandler reports a small operational summary as JSON.
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	rooms, members := s.rooms.Stats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"sessions":      s.sessions.CountOnline(),
		"rooms":         rooms,
		"roomMembers":   members,
		"gameSessions":  s.games.SessionCount(),
		"uptimeSeconds": int64(time.Since(s.startTime).Seconds()),
	})
}

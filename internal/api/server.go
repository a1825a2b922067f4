package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/presence.report/internal/db"
	"github.com/banshee-data/presence.report/internal/presence"
	"github.com/banshee-data/presence.report/internal/scanmux"
)

// Server exposes the latest cycle result and the recorded count history
// over a small JSON API.
type Server struct {
	m     scanmux.ScanMuxInterface
	db    *db.DB
	label string

	mu     sync.RWMutex
	latest *presence.CycleResult
	at     time.Time
}

func NewServer(m scanmux.ScanMuxInterface, database *db.DB, label string) *Server {
	return &Server{
		m:     m,
		db:    database,
		label: label,
	}
}

// SetLatest publishes the most recent cycle result. Called by the scan
// loop once per completed cycle.
func (s *Server) SetLatest(result presence.CycleResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &result
	s.at = time.Now()
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.showStatus)
	mux.HandleFunc("/counts", s.listCounts)
	mux.HandleFunc("/counts/chart", s.showCountChart)
	mux.HandleFunc("/sightings", s.listSightings)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

type statusResponse struct {
	Label     string                `json:"label"`
	Sniffer   string                `json:"sniffer"`
	UpdatedAt time.Time             `json:"updated_at"`
	Latest    *presence.CycleResult `json:"latest,omitempty"`
}

// snifferStatus reports the sniffer stream's health, so a run stuck on a
// dead port is visible from the API rather than just from the logs.
func (s *Server) snifferStatus() string {
	if s.m == nil {
		return "detached"
	}
	if err := s.m.Err(); err != nil {
		return fmt.Sprintf("failed: %v", err)
	}
	return "ok"
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		s.writeJSONError(w, http.StatusNotFound, "no completed cycle yet")
		return
	}
	s.writeJSON(w, statusResponse{
		Label:     s.label,
		Sniffer:   s.snifferStatus(),
		UpdatedAt: s.at,
		Latest:    s.latest,
	})
}

func parseLimit(r *http.Request, fallback int) int {
	limit := fallback
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 10000 {
			limit = parsed
		}
	}
	return limit
}

func (s *Server) listCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.db.Counts(parseLimit(r, 100))
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query counts: %v", err))
		return
	}
	s.writeJSON(w, counts)
}

func (s *Server) listSightings(w http.ResponseWriter, r *http.Request) {
	sightings, err := s.db.Sightings(parseLimit(r, 500))
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query sightings: %v", err))
		return
	}
	s.writeJSON(w, sightings)
}

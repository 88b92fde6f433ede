// Package server exposes the coordinator over a small HTTP JSON API:
// mission creation, status, detail, cancellation, health and metrics.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rangeops/missiond/internal/coordinator"
	"github.com/rangeops/missiond/internal/store"
)

var log = slog.Default()

// Server routes HTTP requests to the coordinator.
type Server struct {
	coord *coordinator.Coordinator
	mux   *http.ServeMux
}

// New builds the handler tree over a coordinator.
func New(coord *coordinator.Coordinator) *Server {
	s := &Server{coord: coord, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /api/missions", s.handleCreate)
	s.mux.HandleFunc("GET /api/missions", s.handleList)
	s.mux.HandleFunc("GET /api/missions/{id}/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/missions/{id}/detail", s.handleDetail)
	s.mux.HandleFunc("POST /api/missions/{id}/cancel", s.handleCancel)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// CreateMissionRequest is the POST /api/missions body.
type CreateMissionRequest struct {
	MissionID   string                 `json:"mission_id"`
	MissionType string                 `json:"mission_type"`
	Hosts       []coordinator.HostSpec `json:"hosts"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateMissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.MissionType == "" {
		req.MissionType = "default"
	}
	if err := s.coord.CreateMission(req.MissionID, req.MissionType, req.Hosts); err != nil {
		switch {
		case errors.Is(err, coordinator.ErrMissionExists):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"mission_id": req.MissionID,
		"status":     "started",
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.coord.ListMissions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"missions": ids})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.coord.GetStatus(r.PathValue("id"))
	if err != nil {
		writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	status, err := s.coord.GetDetailedStatus(r.PathValue("id"))
	if err != nil {
		writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.CancelMission(r.PathValue("id")); err != nil {
		writeStatusError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeStatusError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrMissionNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

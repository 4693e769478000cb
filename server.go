package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/S-3moticon/Smart-Bike-Tracker/history"
	"github.com/S-3moticon/Smart-Bike-Tracker/sms"
)

// Server handles incoming HTTP requests for interacting with the
// tracker core
type Server struct {
	Logger  *slog.Logger
	Tracker *Tracker
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /location", s.handleLocation)
	mux.HandleFunc("POST /location", s.handleReportLocation)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /config", s.handleGetConfig)
	mux.HandleFunc("PUT /config", s.handlePutConfig)
	mux.HandleFunc("POST /fix", s.handleFix)
	mux.HandleFunc("POST /alerts/test", s.handleTestAlert)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)

}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Failed to encode response", "error", err)
	}
}

// handleLocation serves the last persisted fix
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	fix, err := s.Tracker.LastFix()
	if err != nil {
		s.Logger.Error("Failed to load last fix", "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !fix.Valid {
		s.sendError(w, "no location acquired yet", http.StatusNotFound)
		return
	}
	s.sendJSON(w, fix)
}

// handleReportLocation logs a point reported by the paired phone, the
// companion of the modem-sourced entries POST /fix produces
func (s *Server) handleReportLocation(w http.ResponseWriter, r *http.Request) {
	var point struct {
		Lat   float64 `json:"lat"`
		Lon   float64 `json:"lon"`
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&point); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Tracker.ReportLocation(point.Lat, point.Lon, point.Speed); err != nil {
		if errors.Is(err, ErrInvalidCoordinates) {
			s.sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.Logger.Error("Failed to log reported location", "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleHistory serves one page of the history log
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	size := queryInt(r, "size", 10)
	if size <= 0 || size > history.Capacity {
		s.sendError(w, "size must be between 1 and "+strconv.Itoa(history.Capacity), http.StatusBadRequest)
		return
	}

	raw, err := s.Tracker.HistoryPage(page, size)
	if err != nil {
		s.Logger.Error("Failed to render history page", "error", err, "page", page)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

// handleStatus serves the core's health snapshot
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, s.Tracker.Status())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, s.Tracker.Settings())
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var settings Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Tracker.UpdateSettings(settings); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.Logger.Info("Settings updated", "interval", settings.SMSInterval)
	s.sendJSON(w, settings)
}

// handleFix triggers one acquisition cycle
func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	fix, err := s.Tracker.AcquireAndLog(r.Context())
	if err != nil {
		s.Logger.Error("Acquisition failed", "error", err)
		s.sendError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.sendJSON(w, fix)
}

// handleTestAlert sends the test SMS pair to the configured number
func (s *Server) handleTestAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.Tracker.Alert(r.Context(), sms.Test); err != nil {
		s.Logger.Error("Test alert failed", "error", err)
		s.sendError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.Logger.Info("Test alert sent")
	w.WriteHeader(http.StatusOK)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

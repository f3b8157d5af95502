// Package api exposes the operational HTTP endpoints that sit beside the
// websocket surface: a health check and connection statistics. It carries
// no enrollment logic.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HealthChecker reports backing-store availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatsProvider reports live connection counts.
type StatsProvider interface {
	Stats() map[string]int
}

type Server struct {
	store    HealthChecker
	registry StatsProvider
	router   *http.ServeMux
}

func NewServer(store HealthChecker, registry StatsProvider) *Server {
	s := &Server{
		store:    store,
		registry: registry,
		router:   http.NewServeMux(),
	}

	s.router.Handle("/health", s.jsonMiddleware(http.HandlerFunc(s.healthCheck)))
	s.router.Handle("/api/stats", s.jsonMiddleware(http.HandlerFunc(s.handleStats)))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Connections map[string]int `json:"connections"`
}

type StatsResponse struct {
	Connections map[string]int `json:"connections"`
	Timestamp   time.Time      `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.store.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: s.registry.Stats(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	json.NewEncoder(w).Encode(StatsResponse{
		Connections: s.registry.Stats(),
		Timestamp:   time.Now(),
	})
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

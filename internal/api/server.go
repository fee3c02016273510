// Package api exposes the guidance pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lifeflow/guidance/internal/model"
	"github.com/lifeflow/guidance/internal/situation"
)

// Server handles HTTP requests for the guidance API.
type Server struct {
	session *situation.Session
	http    *http.Server
}

// New creates a server bound to addr.
func New(session *situation.Session, cfg model.ServerConfig) *Server {
	s := &Server{session: session}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods("GET")
	r.HandleFunc("/intake/resolve", s.resolve).Methods("POST")
	r.HandleFunc("/situations", s.list).Methods("GET")
	r.HandleFunc("/situations/{id}", s.get).Methods("GET")
	r.HandleFunc("/situations/{id}/clarify", s.clarify).Methods("POST")
	r.HandleFunc("/situations/{id}/guidance", s.generate).Methods("POST")
	r.HandleFunc("/feedback", s.feedback).Methods("POST")

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := model.ErrorKind(err)
	writeJSON(w, statusFor(kind), map[string]errorBody{
		"error": {Kind: kind, Message: err.Error()},
	})
}

// statusFor maps error kinds onto HTTP statuses. Parse failures are a bad
// gateway: the upstream model answered, but not in the agreed format.
func statusFor(kind string) int {
	switch kind {
	case "validation_error":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "generation_in_progress":
		return http.StatusConflict
	case "insufficient_knowledge", "risk_escalation_required":
		return http.StatusUnprocessableEntity
	case "upstream_unavailable":
		return http.StatusServiceUnavailable
	case "classification_parse_error", "generation_parse_error":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

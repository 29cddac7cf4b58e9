// Package api pkg/api/server.go
//
// Package api serves the subagent's operational surface over HTTP:
// session and region status as JSON, a health probe, and Prometheus
// metrics.
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	httpx "github.com/snmpkit/agentx/pkg/http"
	"github.com/snmpkit/agentx/pkg/subagent"
)

// StatusProvider supplies the session view the API renders.
type StatusProvider interface {
	Status() subagent.Status
}

// APIServer is the mux router behind the status endpoint.
type APIServer struct {
	status  StatusProvider
	metrics http.Handler
	router  *mux.Router
}

// NewAPIServer wires the routes. metricsHandler may be nil when
// metrics are disabled.
func NewAPIServer(status StatusProvider, metricsHandler http.Handler) *APIServer {
	s := &APIServer{
		status:  status,
		metrics: metricsHandler,
		router:  mux.NewRouter(),
	}
	s.setupRoutes()

	return s
}

func (s *APIServer) setupRoutes() {
	s.router.Use(httpx.CommonMiddleware)

	s.router.HandleFunc("/api/status", s.getStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.getHealth).Methods(http.MethodGet)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
}

// Router returns the handler for an HTTP server.
func (s *APIServer) Router() http.Handler {
	return s.router
}

func (s *APIServer) getStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(s.status.Status()); err != nil {
		log.Printf("Error encoding status response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *APIServer) getHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.status.Status()

	if st.State != "active" {
		http.Error(w, st.State, http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

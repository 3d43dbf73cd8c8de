package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/chargepal/chargepald/pkg/health"
	"github.com/chargepal/chargepald/pkg/metrics"
)

// HealthServer provides the HTTP surface next to the RPC listener:
// liveness, readiness and Prometheus metrics
type HealthServer struct {
	mux     *http.ServeMux
	checks  map[string]health.Checker
	version string
	server  *http.Server
}

// NewHealthServer creates the health check HTTP server. Checks run on
// every /readyz request; an empty map means always ready.
func NewHealthServer(version string, checks map[string]health.Checker) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		mux:     mux,
		checks:  checks,
		version: version,
	}

	mux.HandleFunc("/healthz", hs.healthHandler)
	mux.HandleFunc("/readyz", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start serves HTTP on addr until Stop or a listener error
func (hs *HealthServer) Start(addr string) error {
	hs.server = &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return hs.server.ListenAndServe()
}

// Stop shuts the HTTP server down, waiting briefly for in-flight requests
func (hs *HealthServer) Stop() {
	if hs.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.server.Shutdown(ctx)
}

// HealthResponse represents the liveness check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler implements /healthz. Liveness only: 200 while the process
// serves HTTP.
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   hs.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler implements /readyz. Runs the configured dependency checks
// and answers 503 while any of them fails.
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ready, results := health.Evaluate(r.Context(), hs.checks)

	checks := make(map[string]string, len(results))
	var failed []string
	for name, result := range results {
		checks[name] = result.Message
		if !result.Healthy {
			failed = append(failed, name)
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	var message string
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
		sort.Strings(failed)
		message = fmt.Sprintf("checks failed: %s", strings.Join(failed, ", "))
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// GetHandler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}

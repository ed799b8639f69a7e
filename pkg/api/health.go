package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/JoseTor101/mom-middleware/pkg/broker"
	"github.com/JoseTor101/mom-middleware/pkg/metrics"
	"github.com/JoseTor101/mom-middleware/pkg/store"
)

// HealthServer provides HTTP health check and metrics endpoints.
type HealthServer struct {
	broker *broker.Broker
	store  store.Store
	mux    *http.ServeMux
}

// NewHealthServer creates the observability HTTP surface for a broker.
func NewHealthServer(b *broker.Broker, s store.Store) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		broker: b,
		store:  s,
		mux:    mux,
	}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start serves the endpoints on addr.
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// healthHandler is a plain liveness probe.
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler reports whether the instance can serve traffic: the
// coordination store answers and the RPC listener is bound.
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if hs.store != nil {
		if _, err := hs.store.Exists(ctx, "topics"); err != nil {
			checks["store"] = err.Error()
			ready = false
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "not configured"
		ready = false
	}

	if hs.broker != nil {
		if hs.broker.Port() > 0 {
			if hs.broker.IsMaster() {
				checks["role"] = "master"
			} else {
				checks["role"] = "worker"
			}
		} else {
			checks["role"] = "rpc listener not bound"
			ready = false
		}
	} else {
		checks["role"] = "not initialized"
		ready = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// GetHandler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}

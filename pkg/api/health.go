package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/self-healing-controller/pkg/history"
	"github.com/cuemby/self-healing-controller/pkg/log"
	"github.com/cuemby/self-healing-controller/pkg/metrics"
	"github.com/cuemby/self-healing-controller/pkg/remediation"
	"github.com/rs/zerolog"
)

// StatsProvider exposes remediation counters
type StatsProvider interface {
	Stats() remediation.Stats
}

// LedgerSizer reports the number of tracked cooldown keys
type LedgerSizer interface {
	Len() int
}

// HealthServer provides the HTTP reporting endpoints
type HealthServer struct {
	stats    StatsProvider
	ledger   LedgerSizer
	recorder history.Recorder
	version  string
	mux      *http.ServeMux
	server   *http.Server
	logger   zerolog.Logger
}

// NewHealthServer creates a new reporting server. Any source may be nil.
func NewHealthServer(stats StatsProvider, ledger LedgerSizer, recorder history.Recorder, version string) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		stats:    stats,
		ledger:   ledger,
		recorder: recorder,
		version:  version,
		mux:      mux,
		logger:   log.WithComponent("api"),
	}
	hs.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Register endpoints
	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/live", getOnly(metrics.LivenessHandler()))
	mux.HandleFunc("/ready", getOnly(metrics.ReadyHandler()))
	mux.HandleFunc("/components", getOnly(metrics.ComponentsHandler()))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/status", hs.statusHandler)
	mux.HandleFunc("/outcomes", hs.outcomesHandler)

	return hs
}

// Start listens on addr and serves until Shutdown is called
func (hs *HealthServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return hs.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called
func (hs *HealthServer) Serve(ln net.Listener) error {
	hs.logger.Info().Str("addr", ln.Addr().String()).Msg("Reporting server listening")
	if err := hs.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx expires
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	return hs.server.Shutdown(ctx)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// healthHandler implements the /health endpoint
// This is a simple liveness check - returns 200 if the process is alive
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   hs.version,
	})
}

// GetHandler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

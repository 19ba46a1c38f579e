package cli

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	coreapp "wrapgen/internal/core/app"
	"wrapgen/internal/shared/observability"
)

// HealthStatus reports the outcome of the most recent watch-mode run.
type HealthStatus struct {
	Status    string    `json:"status"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Modules   []string  `json:"modules,omitempty"`
}

type healthState struct {
	mu     sync.RWMutex
	status HealthStatus
}

func newHealthState() *healthState {
	return &healthState{status: HealthStatus{Status: "up"}}
}

func (h *healthState) record(u coreapp.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = HealthStatus{Status: "up", LastRun: time.Now().UTC()}
	for _, res := range u.Results {
		if res.RunID != "" {
			h.status.Modules = append(h.status.Modules, res.Module)
		}
	}
	if u.Err != nil {
		h.status.Status = "degraded"
		h.status.LastError = u.Err.Error()
	}
}

func (h *healthState) snapshot() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// ObservabilityServer exposes /metrics and /health while watching.
type ObservabilityServer struct {
	addr   string
	health *healthState
	server *http.Server
}

func NewObservabilityServer(addr string, health *healthState) *ObservabilityServer {
	return &ObservabilityServer{addr: addr, health: health}
}

func (s *ObservabilityServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(observability.Registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := s.health.snapshot()
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}

// Start binds the listener before returning so address errors surface
// immediately.
func (s *ObservabilityServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	slog.Info("observability server starting", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability server failed", "error", err)
		}
	}()

	return nil
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

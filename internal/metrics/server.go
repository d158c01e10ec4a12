package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server exposes /metrics, /health and /info on a dedicated port.
// Adapted from the teacher's internal/metrics/server.go: same
// mux/http.Server shape, with log.Printf replaced by an injected
// *zap.Logger (this worker never reaches for the log package-global).
type Server struct {
	server *http.Server
	addr   string
	log    *zap.Logger
}

// NewServer builds a metrics server bound to addr (e.g. ":9090").
func NewServer(addr string, log *zap.Logger) *Server {
	if addr == "" {
		addr = ":9090"
	}
	if addr[0] != ':' {
		addr = ":" + addr
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service": "transformat-worker"}`))
	})

	return &Server{
		addr: addr,
		log:  log,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins serving in the background. It returns immediately;
// listener errors are logged, not returned, matching the teacher's
// fire-and-forget Start/Stop split.
func (s *Server) Start() {
	s.log.Info("starting metrics server", zap.String("addr", s.addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("metrics server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping metrics server")
	return s.server.Shutdown(ctx)
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tether/pkg/logging"
)

// ReadyFunc reports whether tether is ready to serve, with a reason when not.
type ReadyFunc func() (bool, string)

// Server exposes a registry over HTTP:
//
//   - GET /metrics - Prometheus scrape endpoint
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe, 503 until the ReadyFunc agrees
type Server struct {
	addr     string
	registry *prometheus.Registry

	mu       sync.Mutex
	ready    ReadyFunc
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server for registry on addr (host:port).
func NewServer(addr string, registry *prometheus.Registry) *Server {
	return &Server{addr: addr, registry: registry}
}

// SetReady installs the readiness check. Without one the server is ready.
func (s *Server) SetReady(fn ReadyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = fn
}

// Handler returns the router serving the endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	r.Route("/health", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
		r.Get("/ready", s.readiness)
	})
	return r
}

func (s *Server) readiness(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	fn := s.ready
	s.mu.Unlock()

	if fn != nil {
		if ok, reason := fn(); !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(reason))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("metrics server already running on %s", s.listener.Addr())
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.server = srv
	s.listener = ln

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics", err, "Metrics server stopped")
		}
	}()
	logging.Info("Metrics", "Serving metrics on http://%s/metrics", ln.Addr())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// requestLogger logs every request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug("Metrics", "%s %s %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

// Package server provides the HTTP server that wires the gate pipeline together.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tenantgate/tenant-gate/internal/audit"
	"github.com/tenantgate/tenant-gate/internal/config"
	"github.com/tenantgate/tenant-gate/internal/directory"
	"github.com/tenantgate/tenant-gate/internal/identity"
	apperrors "github.com/tenantgate/tenant-gate/internal/pkg/errors"
	"github.com/tenantgate/tenant-gate/internal/pkg/logger"
	"github.com/tenantgate/tenant-gate/internal/pkg/middleware"
	"github.com/tenantgate/tenant-gate/internal/pkg/security"
	"github.com/tenantgate/tenant-gate/internal/ratelimit"
)

// source names this process in audit events.
const source = "tenant-gate"

// Server is the HTTP server running the authorization and rate-limiting
// pipeline in front of every procedure.
type Server struct {
	cfg        Config
	log        *logger.Logger
	httpServer *http.Server

	// Pipeline stages
	store    ratelimit.CounterStore
	admitter middleware.Admitter
	resolver   *identity.Resolver
	errors     *apperrors.Normalizer
	bus        audit.Bus
	auditTopic string

	// Authorization policy
	privilegedRole string
	superAdmins    []string
	origins        []string

	mu      sync.RWMutex
	started bool
}

// Config configures the server.
type Config struct {
	// Host is the address to bind to.
	Host string

	// Port is the HTTP port.
	Port int

	// Version is the application version.
	Version string

	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration

	// WriteTimeout is the HTTP write timeout.
	WriteTimeout time.Duration

	// ShutdownTimeout is the graceful shutdown timeout.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Version:         "dev",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// New creates a server with all pipeline dependencies constructed from
// configuration. Every dependency is built here and injected explicitly;
// nothing in the pipeline reaches for ambient global state.
func New(cfg Config, appCfg *config.Config, log *logger.Logger) (*Server, error) {
	if cfg.Port == 0 {
		cfg = DefaultConfig()
	}

	s := &Server{
		cfg:            cfg,
		log:            log,
		errors:         apperrors.NewNormalizer(log, appCfg.Production()),
		privilegedRole: appCfg.Security.PrivilegedRole,
		superAdmins:    appCfg.SuperAdminList(),
		origins:        appCfg.CORSOriginList(),
	}

	// Counter store and admitter. An absent or unreachable store is a
	// detected, non-fatal state: the limiter fails open.
	switch appCfg.RateLimit.Mode {
	case "local":
		s.admitter = middleware.NewLocalLimiter(appCfg.RateLimit.Limit, appCfg.RateLimit.Window)
	default:
		if appCfg.RateLimit.RedisURL != "" {
			store, err := ratelimit.NewRedisStore(appCfg.RateLimit.RedisURL)
			if err != nil {
				log.Warn("counter store unavailable, rate limiting degrades to fail-open", "error", err)
			} else {
				s.store = store
			}
		} else {
			log.Warn("no counter store configured, rate limiting disabled")
		}
		s.admitter = ratelimit.New(s.store, ratelimit.Config{
			Limit:  appCfg.RateLimit.Limit,
			Window: appCfg.RateLimit.Window,
		}, log)
	}

	// Token verifier
	verifier, err := identity.NewVerifier(appCfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}

	// Tenant directory
	var dir directory.Directory
	if appCfg.Directory.URL != "" {
		dir, err = directory.NewHTTPDirectory(appCfg.Directory.URL, appCfg.Directory.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create directory client: %w", err)
		}
	} else {
		log.Warn("no directory configured, all credentials resolve to anonymous")
		dir = directory.NewMemoryDirectory()
	}

	s.resolver = identity.NewResolver(verifier, dir, log)

	// Audit bus
	bus, err := audit.NewBus(appCfg.Audit, appCfg.KafkaBrokerList())
	if err != nil {
		return nil, fmt.Errorf("failed to create audit bus: %w", err)
	}
	s.bus = bus
	s.auditTopic = appCfg.Audit.KafkaTopic
	if s.auditTopic == "" {
		s.auditTopic = audit.TopicDecisions
	}

	return s, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	handler := s.buildHandler()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info("Starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP shutdown error", "error", err)
		}
	}

	if s.store != nil {
		s.store.Close()
	}
	if s.bus != nil {
		s.bus.Close()
	}

	s.started = false
	s.log.Info("Server stopped")

	return nil
}

// buildHandler assembles the middleware chain around the procedure mux.
//
// The order is fixed: request ID first so every later stage can log it, then
// the rate limiter (cheap, store-backed, identity-free), then identity
// resolution, then the guarded procedures.
func (s *Server) buildHandler() http.Handler {
	mux := s.setupRoutes()

	var handler http.Handler = mux
	handler = middleware.Auth(s.resolver)(handler)
	handler = middleware.RateLimit(middleware.RateLimitOptions{
		Admitter: s.admitter,
		Errors:   s.errors,
		Audit:    s.bus,
		Topic:    s.auditTopic,
		Source:   source,
	})(handler)
	handler = middleware.CORS(s.corsOrigins())(handler)
	handler = s.withLogging(handler)
	handler = middleware.RequestID(handler)

	return handler
}

func (s *Server) corsOrigins() []string {
	if len(s.origins) == 0 {
		return []string{"*"}
	}
	return s.origins
}

// withLogging logs every request at debug level.
func (s *Server) withLogging(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		handler.ServeHTTP(wrapped, r)

		s.log.WithContext(r.Context()).Debug("HTTP request",
			"method", r.Method,
			"path", security.SanitizeForLog(r.URL.Path),
			"status", wrapped.status,
			"duration", time.Since(start),
			"headers", security.MaskSensitiveHeaders(r.Header),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// ABOUTME: Gateway orchestrator that wires the store, registry, and dispatcher
// ABOUTME: Manages the HTTP server and graceful shutdown of all components

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/openacd/cpx-gateway/internal/agent"
	"github.com/openacd/cpx-gateway/internal/auth"
	"github.com/openacd/cpx-gateway/internal/config"
	"github.com/openacd/cpx-gateway/internal/session"
	"github.com/openacd/cpx-gateway/internal/store"
)

// Gateway orchestrates the cpx-gateway server components.
type Gateway struct {
	config     *config.Config
	store      *store.SQLiteStore
	registry   *session.Registry
	manager    *agent.Manager
	supervisor *Supervisor
	dispatcher *Dispatcher
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	if cfg.Seed.Path != "" {
		if err := seedStore(s, cfg.Seed.Path, logger); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	registry := session.New(logger.With("component", "session-registry"))
	manager := agent.NewManager(logger.With("component", "agent-manager"))
	supervisor := NewSupervisor(registry, logger.With("component", "supervisor"))
	validator := auth.NewStoreValidator(s, logger.With("component", "validator"))

	locales, err := newLocaleMatcher(cfg.Static.Locales)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("configuring locales: %w", err)
	}

	classifier := &Classifier{
		AgentRoot:   cfg.Static.AgentRoot,
		ContribRoot: cfg.Static.ContribRoot,
		Exists:      fileExists,
	}

	dispatcher := NewDispatcher(DispatcherConfig{
		Registry:   registry,
		Validator:  validator,
		Factory:    manager,
		Supervisor: supervisor,
		Data:       s,
		Classifier: classifier,
		Locales:    locales,
		APITimeout: cfg.Agents.APITimeout,
		Logger:     logger.With("component", "dispatcher"),
	})

	mux := http.NewServeMux()
	mux.Handle("/", dispatcher)

	return &Gateway{
		config:     cfg,
		store:      s,
		registry:   registry,
		manager:    manager,
		supervisor: supervisor,
		dispatcher: dispatcher,
		logger:     logger.With("component", "gateway"),
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// seedStore loads the TOML fixture file into an empty store.
func seedStore(s *store.SQLiteStore, path string, logger *slog.Logger) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warn("seed file not found, skipping", "path", path)
		return nil
	}

	seed, err := store.LoadSeed(path)
	if err != nil {
		return fmt.Errorf("loading seed: %w", err)
	}
	if err := s.Seed(context.Background(), seed); err != nil {
		return fmt.Errorf("seeding store: %w", err)
	}
	return nil
}

// Run starts the gateway server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the server, the agent workers, and the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	g.manager.Shutdown()
	g.supervisor.Wait()

	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

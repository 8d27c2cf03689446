package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"pantry/internal/api"
	"pantry/internal/assets"
	"pantry/internal/config"
	"pantry/internal/logging"
	"pantry/internal/metrics"
	"pantry/internal/pantry"
	"pantry/internal/recipe"
	"pantry/internal/records"
	"pantry/internal/services/llm"
)

// externalPollInterval is how often the store checks for writes made by other
// processes sharing the database.
const externalPollInterval = time.Second

// Server owns the inventory store, its collaborators, and the HTTP API, and
// enforces one running instance per data directory.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	store     *records.Store
	manager   *pantry.Manager
	generator *recipe.Generator
	metrics   *metrics.Recorder
	api       *api.Server

	running atomic.Bool
	cancel  context.CancelFunc
}

// New opens the store and wires the manager, recipe generator, and API. It
// does not take the instance lock or listen until Start.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
	}

	store, err := records.Open(cfg, records.WithLogger(logger), records.WithExternalPoll(externalPollInterval))
	if err != nil {
		return nil, fmt.Errorf("open inventory store: %w", err)
	}
	assetStore, err := assets.New(ctx, cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open asset store: %w", err)
	}

	manager := pantry.NewManager(store, assetStore, pantry.WithLogger(logger), pantry.WithMetrics(recorder))
	generator := recipe.NewGenerator(llm.NewClient(llm.FromConfig(cfg)), recipe.WithLogger(logger), recipe.WithMetrics(recorder))

	var assetsDir string
	if strings.EqualFold(cfg.Assets.Backend, config.AssetBackendFS) {
		assetsDir = cfg.Assets.Dir
	}

	lockPath := cfg.LockPath()
	return &Server{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "server"),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
		store:     store,
		manager:   manager,
		generator: generator,
		metrics:   recorder,
		api: api.New(api.Options{
			Bind:      cfg.Paths.APIBind,
			Token:     cfg.Paths.APIToken,
			Inventory: manager,
			Recipes:   generator,
			AssetsDir: assetsDir,
			Metrics:   recorder,
			Logger:    logger,
		}),
	}, nil
}

// Start acquires the instance lock and begins serving the API.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("server already running")
	}

	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pantry server is already running for this data directory")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := s.api.Start(runCtx); err != nil {
		cancel()
		_ = s.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}
	s.cancel = cancel

	s.running.Store(true)
	s.logger.Info("pantry server started",
		logging.String("lock", s.lockPath),
		logging.String("address", s.api.Addr()),
		logging.String("database", s.store.Path()),
	)
	return nil
}

// Stop shuts the API down and releases the instance lock.
func (s *Server) Stop() {
	if !s.running.Load() {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.api.Stop()
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release server lock", logging.Error(err))
	}
	s.running.Store(false)
	s.logger.Info("pantry server stopped")
}

// Close stops the server and closes the store.
func (s *Server) Close() error {
	s.Stop()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// Addr is the bound API address while running.
func (s *Server) Addr() string {
	return s.api.Addr()
}

// Manager exposes the inventory manager.
func (s *Server) Manager() *pantry.Manager {
	return s.manager
}

// Running reports whether Start has succeeded and Stop has not yet run.
func (s *Server) Running() bool {
	return s.running.Load()
}

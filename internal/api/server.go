package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pantry/internal/assets"
	"pantry/internal/logging"
	"pantry/internal/metrics"
	"pantry/internal/pantry"
	"pantry/internal/recipe"
	"pantry/internal/services"
)

// Inventory is the subset of the inventory manager the API drives.
type Inventory interface {
	Snapshot(ctx context.Context) ([]pantry.Item, error)
	AddItem(ctx context.Context, draft pantry.Draft, asset []byte) (pantry.Outcome, error)
	EditItem(ctx context.Context, id string, draft pantry.Draft, asset []byte) (pantry.Outcome, error)
	DeleteItem(ctx context.Context, id string) (pantry.Outcome, error)
	Subscribe(ctx context.Context, onChange func([]pantry.Item)) (*pantry.Subscription, error)
}

// RecipeGenerator produces a recipe from a snapshot.
type RecipeGenerator interface {
	Generate(ctx context.Context, items []pantry.Item) (recipe.Result, error)
}

// Options configures a Server.
type Options struct {
	Bind      string
	Token     string
	Inventory Inventory
	Recipes   RecipeGenerator
	// AssetsDir is served under /assets/ when set.
	AssetsDir string
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
}

// Server is the pantry HTTP API.
type Server struct {
	bind      string
	token     string
	inventory Inventory
	recipes   RecipeGenerator
	metrics   *metrics.Recorder
	logger    *slog.Logger
	handler   http.Handler

	recipeBusy atomic.Bool

	listener net.Listener
	server   *http.Server
}

// New builds the server and its routes. It does not listen until Start.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		bind:      strings.TrimSpace(opts.Bind),
		token:     strings.TrimSpace(opts.Token),
		inventory: opts.Inventory,
		recipes:   opts.Recipes,
		metrics:   opts.Metrics,
		logger:    logging.NewComponentLogger(logger, "api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/inventory", s.authorize(s.handleList))
	mux.HandleFunc("POST /api/inventory", s.authorize(s.handleAdd))
	mux.HandleFunc("PUT /api/inventory/{id}", s.authorize(s.handleEdit))
	mux.HandleFunc("DELETE /api/inventory/{id}", s.authorize(s.handleDelete))
	mux.HandleFunc("GET /api/inventory/stream", s.authorize(s.handleStream))
	mux.HandleFunc("POST /api/recipe", s.authorize(s.handleRecipe))
	if dir := strings.TrimSpace(opts.AssetsDir); dir != "" {
		mux.Handle("GET /assets/", http.StripPrefix("/assets/", serveAssets(dir)))
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	s.handler = s.withRequestID(mux)

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the bind address and serves until ctx is done or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return services.Wrap(services.ErrConfiguration, "api", "start", "api bind address not set", nil)
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting up to five seconds for requests to drain.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		ctx := services.WithRequestID(r.Context(), rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authorize requires the configured bearer token. With no token every request
// passes through.
func (s *Server) authorize(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok && r.URL.Path == "/api/inventory/stream" {
			token, ok = r.URL.Query().Get("token"), true
		}
		if !ok || token != s.token {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, ErrorResponse{Error: message, Kind: kind})
}

// writeServiceError maps a services marker onto an HTTP status.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("request failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	s.writeError(w, status, err.Error(), services.Kind(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrUpstream), errors.Is(err, services.ErrTimeout):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// serveAssets serves regular files under dir. The FileStore's lock and
// in-flight temp files are not served, and neither are directory listings.
func serveAssets(dir string) http.Handler {
	files := http.Dir(dir)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Base(r.URL.Path)
		if name == assets.LockFileName || strings.HasPrefix(name, assets.TempFilePrefix) {
			http.NotFound(w, r)
			return
		}
		f, err := files.Open(r.URL.Path)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, name, info.ModTime(), f)
	})
}

package recipe

import (
	"context"
	"log/slog"
	"time"

	"pantry/internal/logging"
	"pantry/internal/metrics"
	"pantry/internal/pantry"
	"pantry/internal/services"
)

// Completer sends a single user prompt and returns the raw reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator runs the recipe pipeline.
type Generator struct {
	completer Completer
	logger    *slog.Logger
	metrics   *metrics.Recorder
}

// Option customizes the generator.
type Option func(*Generator)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics records generation outcomes on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(g *Generator) {
		g.metrics = r
	}
}

// NewGenerator builds a generator around completer.
func NewGenerator(completer Completer, opts ...Option) *Generator {
	g := &Generator{completer: completer, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.NewComponentLogger(g.logger, "recipe")
	return g
}

// Generate asks for a recipe using every item's name. An empty inventory still
// issues the request.
func (g *Generator) Generate(ctx context.Context, items []pantry.Item) (Result, error) {
	ctx = services.WithOperation(ctx, "recipe")
	logger := logging.WithContext(ctx, g.logger)
	started := time.Now()

	if g.completer == nil {
		err := services.Wrap(services.ErrConfiguration, "recipe", "generate", "completion service not configured", nil)
		g.metrics.Recipe(services.Kind(err), time.Since(started))
		return Result{}, err
	}

	prompt := BuildPrompt(pantry.Names(items))
	logger.Debug("requesting recipe", logging.Int("items", len(items)))

	body, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		g.metrics.Recipe(services.Kind(err), time.Since(started))
		logger.Warn("recipe generation failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "recipe_completion_failed"),
			logging.String(logging.FieldErrorHint, "check llm.api_key and llm.base_url"),
			logging.String(logging.FieldImpact, "no recipe returned"),
		)
		return Result{}, err
	}

	result, err := Parse(body)
	if err != nil {
		g.metrics.Recipe("parse_error", time.Since(started))
		logging.WarnWithContext(logger, "recipe reply not parseable", "recipe_parse_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no recipe returned"),
		)
		return Result{}, err
	}

	g.metrics.Recipe("ok", time.Since(started))
	logger.Info("recipe generated",
		logging.String("title", result.Title),
		logging.Int("steps", len(result.Steps)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

package pantry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pantry/internal/assets"
	"pantry/internal/logging"
	"pantry/internal/metrics"
	"pantry/internal/records"
	"pantry/internal/services"
)

// RecordStore is the document store the manager mutates.
type RecordStore interface {
	Create(ctx context.Context, fields records.Fields) (*records.Item, error)
	Get(ctx context.Context, id string) (*records.Item, error)
	Put(ctx context.Context, id string, fields records.Fields) (*records.Item, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]records.Item, error)
	CountByImageKey(ctx context.Context, key, excludeID string) (int, error)
	Subscribe(ctx context.Context) (*records.Subscription, error)
}

// Manager coordinates inventory documents and their photos.
type Manager struct {
	store   RecordStore
	assets  assets.Store
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// Option customizes the manager.
type Option func(*Manager)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records operation outcomes on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) {
		m.metrics = r
	}
}

// NewManager wires a manager to its stores.
func NewManager(store RecordStore, assetStore assets.Store, opts ...Option) *Manager {
	m := &Manager{store: store, assets: assetStore, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "pantry")
	return m
}

// Snapshot reads the current collection once.
func (m *Manager) Snapshot(ctx context.Context) ([]Item, error) {
	items, err := m.store.List(ctx)
	if err != nil {
		return nil, storeFailure("snapshot", "list inventory", err)
	}
	return items, nil
}

// AddItem creates an item. A blank name, price, or quantity skips the call
// without touching either store. When asset is non-empty it is uploaded under
// the item's name and its URL replaces draft.ImageURL.
func (m *Manager) AddItem(ctx context.Context, draft Draft, asset []byte) (Outcome, error) {
	const op = "add"
	ctx = services.WithOperation(ctx, op)
	logger := logging.WithContext(ctx, m.logger)

	valid, ok, err := parseDraft(op, draft)
	if err != nil || !ok {
		return m.finish(op, Outcome{Skipped: !ok && err == nil}, err)
	}

	fields := records.Fields{
		Name:     valid.name,
		Price:    valid.price,
		Quantity: valid.quantity,
		ImageURL: valid.imageURL,
	}
	if len(asset) > 0 {
		key := assets.ImageKey(valid.name)
		url, err := m.assets.Upload(ctx, key, asset)
		if err != nil {
			return m.finish(op, Outcome{}, assetFailure(op, "upload photo", err))
		}
		fields.ImageURL = url
		fields.ImageKey = key
	}

	item, err := m.store.Create(ctx, fields)
	if err != nil {
		return m.finish(op, Outcome{}, storeFailure(op, "create document", err))
	}
	logger.Info("item added",
		logging.String(logging.FieldItemID, item.ID),
		logging.String("name", item.Name),
		logging.Bool("photo", fields.ImageKey != ""),
	)
	return m.finish(op, Outcome{Item: *item}, nil)
}

// EditItem overwrites an existing item with draft. When asset is non-empty it
// is uploaded under the post-edit name, the document is rewritten to point at
// it, and only then is the photo the item previously referenced removed (best
// effort). A failed upload or write leaves the old photo and document intact.
// Without an asset the stored key is kept as long as the image URL is
// unchanged.
func (m *Manager) EditItem(ctx context.Context, id string, draft Draft, asset []byte) (Outcome, error) {
	const op = "edit"
	ctx = services.WithItemID(services.WithOperation(ctx, op), id)
	logger := logging.WithContext(ctx, m.logger)

	valid, ok, err := parseDraft(op, draft)
	if err != nil || !ok {
		return m.finish(op, Outcome{Skipped: !ok && err == nil}, err)
	}

	existing, err := m.store.Get(ctx, id)
	if err != nil {
		return m.finish(op, Outcome{}, storeFailure(op, "read document", err))
	}

	var outcome Outcome
	fields := records.Fields{
		Name:     valid.name,
		Price:    valid.price,
		Quantity: valid.quantity,
		ImageURL: valid.imageURL,
	}
	if len(asset) > 0 {
		key := assets.ImageKey(valid.name)
		url, err := m.assets.Upload(ctx, key, asset)
		if err != nil {
			return m.finish(op, outcome, assetFailure(op, "upload photo", err))
		}
		fields.ImageURL = url
		fields.ImageKey = key
	} else if fields.ImageURL == existing.ImageURL {
		fields.ImageKey = existing.ImageKey
	}

	item, err := m.store.Put(ctx, id, fields)
	if err != nil {
		return m.finish(op, outcome, storeFailure(op, "overwrite document", err))
	}
	outcome.Item = *item

	// An upload under the same key already replaced the old photo in place.
	if previous := storedKey(existing); len(asset) > 0 && existing.ImageURL != "" && previous != fields.ImageKey {
		outcome.Cleanup = m.removeAsset(ctx, logger, id, previous)
	}
	logger.Info("item updated",
		logging.String("name", item.Name),
		logging.Bool("photo_replaced", len(asset) > 0),
	)
	return m.finish(op, outcome, nil)
}

// DeleteItem removes the item's document and then its photo (best effort).
// Deleting an id that does not exist fails with services.ErrNotFound.
func (m *Manager) DeleteItem(ctx context.Context, id string) (Outcome, error) {
	const op = "delete"
	ctx = services.WithItemID(services.WithOperation(ctx, op), id)
	logger := logging.WithContext(ctx, m.logger)

	existing, err := m.store.Get(ctx, id)
	if err != nil {
		return m.finish(op, Outcome{}, storeFailure(op, "read document", err))
	}

	outcome := Outcome{Item: *existing}
	if err := m.store.Delete(ctx, id); err != nil {
		return m.finish(op, outcome, storeFailure(op, "delete document", err))
	}
	outcome.Cleanup = m.removeAsset(ctx, logger, id, storedKey(existing))
	logger.Info("item deleted", logging.String("name", existing.Name))
	return m.finish(op, outcome, nil)
}

// storedKey returns the asset key an item's photo lives under. Items written
// without a key but with a URL fall back to the name-derived key.
func storedKey(item *records.Item) string {
	if item.ImageKey != "" {
		return item.ImageKey
	}
	if item.ImageURL != "" {
		return assets.ImageKey(item.Name)
	}
	return ""
}

// removeAsset deletes key unless another document still references it.
// Failures are logged and reported in the result, never returned.
func (m *Manager) removeAsset(ctx context.Context, logger *slog.Logger, ownerID, key string) Cleanup {
	cleanup := Cleanup{Key: key}
	if key == "" {
		return cleanup
	}

	refs, err := m.store.CountByImageKey(ctx, key, ownerID)
	if err != nil {
		cleanup.Err = err
		m.metrics.Cleanup("failed")
		logging.WarnWithContext(logger, "asset cleanup skipped", "asset_cleanup_failed",
			logging.String("key", key),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the record store"),
			logging.String(logging.FieldImpact, "photo may be orphaned in the asset store"),
		)
		return cleanup
	}
	if refs > 0 {
		m.metrics.Cleanup("shared")
		logger.Debug("asset still referenced; keeping",
			logging.String("key", key),
			logging.Int("references", refs),
		)
		return cleanup
	}

	cleanup.Attempted = true
	if err := m.assets.Delete(ctx, key); err != nil {
		cleanup.Err = err
		m.metrics.Cleanup("failed")
		logging.WarnWithContext(logger, "asset cleanup failed", "asset_cleanup_failed",
			logging.String("key", key),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the photo from the asset store manually"),
			logging.String(logging.FieldImpact, "photo is orphaned in the asset store"),
		)
		return cleanup
	}
	cleanup.Succeeded = true
	m.metrics.Cleanup("deleted")
	logger.Debug("asset removed", logging.String("key", key))
	return cleanup
}

func (m *Manager) finish(op string, outcome Outcome, err error) (Outcome, error) {
	switch {
	case err != nil:
		m.metrics.Mutation(op, services.Kind(err))
	case outcome.Skipped:
		m.metrics.Mutation(op, "skipped")
		m.logger.Debug("mutation skipped: required field empty", logging.String(logging.FieldOperation, op))
	default:
		m.metrics.Mutation(op, "ok")
	}
	return outcome, err
}

func storeFailure(op, message string, err error) error {
	if errors.Is(err, services.ErrNotFound) {
		return fmt.Errorf("pantry: %s: %w", op, err)
	}
	return services.Wrap(services.ErrTransient, "pantry", op, message, err)
}

func assetFailure(op, message string, err error) error {
	if services.Marked(err) {
		return fmt.Errorf("pantry: %s: %s: %w", op, message, err)
	}
	return services.Wrap(services.ErrUpstream, "pantry", op, message, err)
}

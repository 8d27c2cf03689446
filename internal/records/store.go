package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"pantry/internal/config"
	"pantry/internal/logging"
	"pantry/internal/services"
)

// ErrNotFound reports a read, overwrite, or delete of an id with no document.
var ErrNotFound = fmt.Errorf("%w: inventory document", services.ErrNotFound)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store manages the inventory collection backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	hub    *hub

	pollInterval time.Duration
	stopPoll     context.CancelFunc
	pollDone     chan struct{}
}

// Option customizes the store.
type Option func(*Store)

// WithLogger overrides the no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExternalPoll makes the store watch for commits from other processes
// (for example the CLI writing while the server runs) and broadcast them.
// A zero interval disables the watcher.
func WithExternalPoll(interval time.Duration) Option {
	return func(s *Store) {
		s.pollInterval = interval
	}
}

// Open initializes or connects to the inventory database and applies migrations.
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath(), opts...)
}

// OpenPath opens the database at an explicit location.
func OpenPath(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(store)
	}
	store.logger = logging.NewComponentLogger(store.logger, "records")
	store.hub = newHub(store.List, store.logger)

	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	if store.pollInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		store.stopPoll = cancel
		store.pollDone = make(chan struct{})
		go store.watchExternal(ctx)
	}
	return store, nil
}

// Close stops the external watcher, ends every subscription, and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.stopPoll != nil {
		s.stopPoll()
		<-s.pollDone
	}
	s.hub.closeAll()
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create inserts a new document with a generated id.
func (s *Store) Create(ctx context.Context, fields Fields) (*Item, error) {
	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(timeLayout)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO inventory (
            id, name, price, quantity, image_url, image_key, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		fields.Name,
		fields.Price.String(),
		fields.Quantity,
		nullableString(fields.ImageURL),
		nullableString(fields.ImageKey),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	s.hub.notify(ctx)

	return s.Get(ctx, id)
}

// Get fetches a document by identifier.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inventory WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Put overwrites every writable field of an existing document.
func (s *Store) Put(ctx context.Context, id string, fields Fields) (*Item, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE inventory
         SET name = ?, price = ?, quantity = ?, image_url = ?, image_key = ?, updated_at = ?
         WHERE id = ?`,
		fields.Name,
		fields.Price.String(),
		fields.Quantity,
		nullableString(fields.ImageURL),
		nullableString(fields.ImageKey),
		time.Now().UTC().Format(timeLayout),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.hub.notify(ctx)

	return s.Get(ctx, id)
}

// Delete removes a document by identifier.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inventory WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.hub.notify(ctx)
	return nil
}

// List returns the full collection ordered by creation time.
func (s *Store) List(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM inventory ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// CountByImageKey counts documents other than excludeID that reference key.
func (s *Store) CountByImageKey(ctx context.Context, key, excludeID string) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM inventory WHERE image_key = ? AND id <> ?`, key, excludeID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count image key: %w", err)
	}
	return count, nil
}

// Subscribe registers a live listener. The first snapshot carries the current
// collection; each later one follows a change. The subscription ends when ctx
// is done or Close is called.
func (s *Store) Subscribe(ctx context.Context) (*Subscription, error) {
	return s.hub.subscribe(ctx)
}

const itemColumns = "id, name, price, quantity, image_url, image_key, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id         string
		name       string
		priceRaw   string
		quantity   int64
		imageURL   sql.NullString
		imageKey   sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&id, &name, &priceRaw, &quantity, &imageURL, &imageKey, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(strings.TrimSpace(priceRaw))
	if err != nil {
		return nil, fmt.Errorf("item %s: parse price %q: %w", id, priceRaw, err)
	}
	item := &Item{
		ID:       id,
		Name:     name,
		Price:    price,
		Quantity: quantity,
		ImageURL: imageURL.String,
		ImageKey: imageKey.String,
	}
	if created, err := time.Parse(timeLayout, createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := time.Parse(timeLayout, updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

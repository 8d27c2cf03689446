package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"pantry/internal/logging"
	"pantry/internal/services"
)

const (
	// LockFileName and TempFilePrefix name the FileStore's private files.
	LockFileName   = ".assets.lock"
	TempFilePrefix = ".upload-"

	lockRetryDelay = 25 * time.Millisecond
)

// FileStore keeps blobs under a local directory. Writes go through a temp file
// and rename so readers never observe a partial photo, and an advisory file
// lock serializes writers across processes sharing the directory.
type FileStore struct {
	root    string
	baseURL string
	mu      sync.Mutex
	lock    *flock.Flock
	logger  *slog.Logger
}

// NewFileStore creates the directory if needed.
func NewFileStore(root, baseURL string, logger *slog.Logger) (*FileStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "assets", "init", "asset directory not set", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir %q: %w", root, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileStore{
		root:    root,
		baseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		lock:    flock.New(filepath.Join(root, LockFileName)),
		logger:  logging.NewComponentLogger(logger, "assets"),
	}, nil
}

// Upload implements Store.
func (s *FileStore) Upload(ctx context.Context, key string, data []byte) (string, error) {
	target, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.release()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create asset parent: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), TempFilePrefix+"*")
	if err != nil {
		return "", fmt.Errorf("create temp asset: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write asset %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close asset %q: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("publish asset %q: %w", key, err)
	}

	s.logger.Debug("asset stored",
		logging.String("key", key),
		logging.Int("bytes", len(data)),
	)
	return s.URL(key), nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove asset %q: %w", key, err)
	}
	s.logger.Debug("asset removed", logging.String("key", key))
	return nil
}

// URL returns the public address of key.
func (s *FileStore) URL(key string) string {
	dir, name := splitKey(key)
	escaped := url.PathEscape(fileName(name))
	if dir == "" {
		return s.baseURL + "/" + escaped
	}
	return s.baseURL + "/" + url.PathEscape(dir) + "/" + escaped
}

// resolve maps key onto a file below root. The first segment of a key is its
// namespace directory; everything after it is one flat file name, so item
// names containing "/" or dot segments never address another file.
func (s *FileStore) resolve(key string) (string, error) {
	dir, name := splitKey(key)
	if name == "" {
		return "", services.Wrap(services.ErrValidation, "assets", "resolve", fmt.Sprintf("invalid asset key %q", key), nil)
	}
	if dir != "" && (strings.HasPrefix(dir, ".") || strings.ContainsAny(dir, `\`+"\x00")) {
		return "", services.Wrap(services.ErrValidation, "assets", "resolve", fmt.Sprintf("invalid asset namespace %q", dir), nil)
	}
	return filepath.Join(s.root, dir, fileName(name)), nil
}

func splitKey(key string) (dir, name string) {
	dir, name, found := strings.Cut(key, "/")
	if !found {
		return "", key
	}
	if dir == "" {
		return "", ""
	}
	return dir, name
}

var fileNameEscaper = strings.NewReplacer(
	"%", "%25",
	"#", "%23",
	"/", "%2F",
	`\`, "%5C",
	"\x00", "%00",
)

// maxFileName stays under the common 255-byte limit.
const maxFileName = 240

// fileName encodes name as a single path element. The encoding is injective:
// '%' is escaped first, a leading '.' is escaped so names never collide with
// the lock or temp files, and over-long names are replaced by their digest,
// which starts with '#', a byte the escaper always rewrites.
func fileName(name string) string {
	encoded := fileNameEscaper.Replace(name)
	if strings.HasPrefix(encoded, ".") {
		encoded = "%2E" + encoded[1:]
	}
	if len(encoded) > maxFileName {
		sum := sha256.Sum256([]byte(name))
		return "#" + hex.EncodeToString(sum[:])
	}
	return encoded
}

// acquire takes the in-process mutex first; a Flock handle reports success to
// every caller once it holds the file lock.
func (s *FileStore) acquire(ctx context.Context) error {
	s.mu.Lock()
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("acquire asset lock: %w", err)
	}
	if !ok {
		s.mu.Unlock()
		return services.Wrap(services.ErrTransient, "assets", "lock", "asset directory busy", nil)
	}
	return nil
}

func (s *FileStore) release() {
	defer s.mu.Unlock()
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("asset lock release failed", logging.Error(err))
	}
}

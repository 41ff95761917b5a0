package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/glhm/console/internal/cryptoutil"
)

// FileStorage persists values as a JSON object in a single file.
// Writes go to a temp file in the same directory and are renamed into place.
type FileStorage struct {
	mu     sync.Mutex
	path   string
	sealer cryptoutil.Sealer
	logger *slog.Logger
}

// FileStorageOptions groups optional dependencies for FileStorage.
type FileStorageOptions struct {
	Path string
	// Sealer encrypts values at rest. Defaults to cryptoutil.PlainSealer.
	Sealer cryptoutil.Sealer
	Logger *slog.Logger
}

// NewFileStorage creates a file-backed storage. The file is created on first write.
func NewFileStorage(opts FileStorageOptions) (*FileStorage, error) {
	if opts.Path == "" {
		return nil, errors.New("file storage path is required")
	}
	sealer := opts.Sealer
	if sealer == nil {
		sealer = cryptoutil.PlainSealer{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStorage{
		path:   opts.Path,
		sealer: sealer,
		logger: logger.With("component", "file_storage"),
	}, nil
}

// Path returns the storage file location.
func (f *FileStorage) Path() string { return f.path }

func (f *FileStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.load()
	if err != nil {
		return "", false, err
	}
	sealed, ok := items[key]
	if !ok {
		return "", false, nil
	}
	v, err := f.sealer.Open(sealed)
	if err != nil {
		// An unreadable value (key rotated, file edited) reads as absent.
		f.logger.WarnContext(ctx, "discarding unreadable stored value", "key", key, "error", err)
		return "", false, nil
	}
	return v, true, nil
}

func (f *FileStorage) SetItem(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	sealed, err := f.sealer.Seal(value)
	if err != nil {
		return fmt.Errorf("seal value: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.load()
	if err != nil {
		return err
	}
	items[key] = sealed
	return f.save(items)
}

func (f *FileStorage) RemoveItem(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	items, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := items[key]; !ok {
		return nil
	}
	delete(items, key)
	return f.save(items)
}

func (f *FileStorage) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read storage file: %w", err)
	}
	items := make(map[string]string)
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode storage file %s: %w", f.path, err)
	}
	return items, nil
}

func (f *FileStorage) save(items map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage file: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".storage-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) error {
		return errors.Join(cause, tmp.Close(), os.Remove(tmpName))
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("write temp file: %w", err))
	}
	if err := tmp.Chmod(0o600); err != nil {
		return cleanup(fmt.Errorf("chmod temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("sync temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(fmt.Errorf("close temp file: %w", err), os.Remove(tmpName))
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.Join(fmt.Errorf("replace storage file: %w", err), os.Remove(tmpName))
	}
	return nil
}

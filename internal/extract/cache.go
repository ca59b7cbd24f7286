// Package extract materializes packed archive files as real temporary files.
package extract

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/asar/internal/asartype"
	"github.com/meigma/asar/internal/integrity"
	"github.com/meigma/asar/internal/pathutil"
	"github.com/meigma/asar/internal/platform"
	"github.com/meigma/asar/internal/sizing"
)

// tempPrefix prefixes every extracted file name.
const tempPrefix = "asar-"

// Source provides random access to the archive bytes.
type Source interface {
	io.ReaderAt
	Size() int64
}

// Cache maps in-archive paths to temporary files holding their content.
//
// Each key is materialized at most once for the lifetime of the Cache.
// Concurrent first requests for the same key share a single copy; copies
// for different keys proceed in parallel, since the map lock is never held
// across I/O. The Cache is safe for concurrent use.
type Cache struct {
	source Source
	dir    string
	verify bool
	logger *slog.Logger

	mu     sync.Mutex
	files  map[string]string
	closed bool
	group  singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithTempDir sets the directory temporary files are created in.
// The default is os.TempDir().
func WithTempDir(dir string) Option {
	return func(c *Cache) {
		c.dir = dir
	}
}

// WithVerifyIntegrity verifies extracted bytes against integrity digests
// recorded in the header, when present.
func WithVerifyIntegrity(enabled bool) Option {
	return func(c *Cache) {
		c.verify = enabled
	}
}

// WithLogger sets the logger for extraction events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a Cache that copies byte ranges out of source.
func New(source Source, opts ...Option) *Cache {
	c := &Cache{
		source: source,
		files:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Get returns the temporary path for key if it has been extracted.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path, ok := c.files[key]
	return path, ok
}

// Len returns the number of extracted files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files)
}

// Extract returns a temporary file holding the bytes described by info,
// copying them out of the source on the first call for key.
//
// The temporary file keeps the extension of key, and on POSIX systems is
// made executable when info says so. A source shorter than the recorded
// range is an asartype.ErrIO failure; nothing is cached on failure.
func (c *Cache) Extract(key string, info asartype.FileInfo) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", asartype.ErrClosed
	}
	if path, ok := c.files[key]; ok {
		c.mu.Unlock()
		return path, nil
	}
	c.mu.Unlock()

	result, err, shared := c.group.Do(key, func() (any, error) {
		// Another flight may have finished between the check above and Do.
		if path, ok := c.Get(key); ok {
			return path, nil
		}
		path, err := c.materialize(key, info)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			_ = os.Remove(path)
			return "", asartype.ErrClosed
		}
		c.files[key] = path
		return path, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.logger.Debug("shared in-flight extraction", "path", key)
	}
	return result.(string), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// Close removes every extracted file and empties the cache. Further
// extractions fail with asartype.ErrClosed.
func (c *Cache) Close() error {
	c.mu.Lock()
	files := c.files
	c.files = make(map[string]string)
	c.closed = true
	c.mu.Unlock()

	var errs []error
	for key, path := range files {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove extracted %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// materialize copies info's byte range into a new temporary file.
func (c *Cache) materialize(key string, info asartype.FileInfo) (_ string, err error) {
	if !sizing.InBounds(info.Offset, uint64(info.Size), c.source.Size()) {
		return "", fmt.Errorf("%w: range [%d, +%d) exceeds archive size %d",
			asartype.ErrIO, info.Offset, info.Size, c.source.Size())
	}
	offset, err := sizing.ToInt64(info.Offset, asartype.ErrIO)
	if err != nil {
		return "", err
	}

	var verifier *integrity.Verifier
	if c.verify && info.Integrity != nil {
		if verifier, err = integrity.NewVerifier(info.Integrity); err != nil {
			return "", err
		}
	}

	ext := strings.ReplaceAll(pathutil.Ext(key), "*", "")
	tmp, err := os.CreateTemp(c.dir, tempPrefix+"*"+ext)
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", asartype.ErrIO, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	var w io.Writer = tmp
	if verifier != nil {
		w = io.MultiWriter(tmp, verifier)
	}
	section := io.NewSectionReader(c.source, offset, int64(info.Size))
	written, err := io.Copy(w, section)
	if err != nil {
		return "", fmt.Errorf("%w: copy %s: %v", asartype.ErrIO, key, err)
	}
	if written != int64(info.Size) {
		return "", fmt.Errorf("%w: copy %s: short read (%d of %d bytes)", asartype.ErrIO, key, written, info.Size)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close temp file: %v", asartype.ErrIO, err)
	}
	if verifier != nil {
		if err = verifier.Verify(); err != nil {
			return "", fmt.Errorf("verify %s: %w", key, err)
		}
	}
	if info.Executable {
		if err = platform.MarkExecutable(tmpPath); err != nil {
			return "", fmt.Errorf("%w: mark executable: %v", asartype.ErrIO, err)
		}
	}

	c.logger.Debug("extracted file", "path", key, "size", info.Size, "temp", tmpPath)
	return tmpPath, nil
}

package asar

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// archiveExt marks a path component as an archive.
const archiveExt = ".asar"

// Registry shares open archives by path.
//
// A Registry is process-wide state with an explicit lifetime: create it
// at startup, hand it to every component that serves archive paths, and
// Close it at shutdown. Concurrent Get calls for an unopened archive open
// it once. Failed opens are not remembered, so a later call retries.
type Registry struct {
	opts   []Option
	logger *slog.Logger

	mu       sync.Mutex
	archives map[string]*Archive
	closed   bool
	group    singleflight.Group
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithArchiveOptions sets the options every archive is opened with.
func WithArchiveOptions(opts ...Option) RegistryOption {
	return func(r *Registry) {
		r.opts = append(r.opts, opts...)
	}
}

// WithRegistryLogger sets the logger for registry events.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{archives: make(map[string]*Archive)}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Get returns the archive at path, opening it on first use.
func (r *Registry) Get(path string) (*Archive, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if a, ok := r.archives[key]; ok {
		r.mu.Unlock()
		return a, nil
	}
	r.mu.Unlock()

	result, err, _ := r.group.Do(key, func() (any, error) {
		r.mu.Lock()
		a, ok := r.archives[key]
		r.mu.Unlock()
		if ok {
			return a, nil
		}

		a, err := Open(key, r.opts...)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			_ = a.Close()
			return nil, ErrClosed
		}
		r.archives[key] = a
		r.logger.Debug("registered archive", "path", key)
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Archive), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// Lookup splits a real filesystem path that points inside an archive and
// returns the archive together with the in-archive path.
// Paths that do not pass through an archive fail with ErrNotFound.
func (r *Registry) Lookup(path string) (*Archive, string, error) {
	archivePath, inner, ok := SplitPath(path)
	if !ok {
		return nil, "", fmt.Errorf("%s: %w: not inside an archive", path, ErrNotFound)
	}
	a, err := r.Get(archivePath)
	if err != nil {
		return nil, "", err
	}
	return a, inner, nil
}

// Len returns the number of open archives.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.archives)
}

// Close closes every archive. Later Get calls fail with ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	archives := r.archives
	r.archives = make(map[string]*Archive)
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for path, a := range archives {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// SplitPath splits a real filesystem path at its innermost component
// ending in ".asar". It returns the archive path and the slash-separated
// path inside it; the inner path is "" when path names the archive itself.
// ok is false when no component is an archive.
//
// Components ending in ".asar.unpacked" are real directories, not archives.
func SplitPath(path string) (archivePath, inner string, ok bool) {
	cur := filepath.Clean(path)
	var rest []string
	for {
		if strings.HasSuffix(filepath.Base(cur), archiveExt) {
			slices.Reverse(rest)
			return cur, strings.Join(rest, "/"), true
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", "", false
		}
		rest = append(rest, filepath.Base(cur))
		cur = parent
	}
}

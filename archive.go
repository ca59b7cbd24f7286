package asar

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/meigma/asar/internal/extract"
	"github.com/meigma/asar/internal/header"
	"github.com/meigma/asar/internal/integrity"
	"github.com/meigma/asar/internal/pathutil"
	"github.com/meigma/asar/internal/sizing"
)

// unpackedSuffix names the sibling directory holding unpacked files.
const unpackedSuffix = ".unpacked"

// invalidFD is returned by FD for archives without a local file.
const invalidFD = ^uintptr(0)

// Archive is an open packed archive.
//
// The header is parsed once, when the Archive is created, and never
// changes afterwards, so metadata queries need no locking. The only
// mutable state is the set of files extracted by CopyFileOut. An Archive
// is safe for concurrent use.
type Archive struct {
	path            string
	source          ByteSource
	file            *os.File
	modTime         time.Time
	hdr             *header.Header
	extracted       *extract.Cache
	logger          *slog.Logger
	tempDir         string
	maxLinkDepth    int
	verifyIntegrity bool
	closed          atomic.Bool
}

// Open opens the archive file at path and parses its header.
//
// A missing file yields an error matching fs.ErrNotExist, which callers
// with optional archives may treat as benign. A file that exists but
// cannot be parsed yields ErrFormat, or ErrIO when it is truncated.
func Open(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path) //nolint:gosec // opening caller-named archives is the point
	if err != nil {
		a := &Archive{}
		for _, opt := range opts {
			opt(a)
		}
		if errors.Is(err, fs.ErrNotExist) {
			a.log().Debug("archive not found", "path", path)
			return nil, fmt.Errorf("open archive: %w", err)
		}
		a.log().Warn("failed to open archive", "path", path, "error", err)
		return nil, fmt.Errorf("open archive: %w: %w", ErrIO, err)
	}

	src, err := newFileSource(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}

	a, err := New(src, append([]Option{WithPath(path)}, opts...)...)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.file = f
	a.modTime = src.modTime
	return a, nil
}

// New creates an Archive over source and parses its header.
//
// Use WithPath to locate unpacked files; without it they cannot be read.
func New(source ByteSource, opts ...Option) (*Archive, error) {
	a := &Archive{source: source}
	for _, opt := range opts {
		opt(a)
	}

	hdr, err := header.Read(source, header.WithMaxLinkDepth(a.maxLinkDepth))
	if err != nil {
		switch {
		case errors.Is(err, ErrFormat):
			a.log().Warn("corrupt archive header", "path", a.path, "source", source.SourceID(), "error", err)
		default:
			a.log().Warn("failed to read archive header", "path", a.path, "source", source.SourceID(), "error", err)
		}
		return nil, fmt.Errorf("open archive %s: %w", a.displayName(), err)
	}
	a.hdr = hdr
	a.extracted = extract.New(source,
		extract.WithTempDir(a.tempDir),
		extract.WithVerifyIntegrity(a.verifyIntegrity),
		extract.WithLogger(a.log()),
	)
	a.log().Debug("opened archive", "path", a.path, "header_size", hdr.Size(), "size", source.Size())
	return a, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

func (a *Archive) displayName() string {
	if a.path != "" {
		return a.path
	}
	return a.source.SourceID()
}

// Path returns the on-disk location of the archive, or "" if unknown.
func (a *Archive) Path() string {
	return a.path
}

// ModTime returns the modification time of the archive file, or the zero
// time for other sources.
func (a *Archive) ModTime() time.Time {
	return a.modTime
}

// HeaderSize returns the byte offset at which packed contents begin.
func (a *Archive) HeaderSize() uint64 {
	return a.hdr.Size()
}

// Size returns the total archive size in bytes.
func (a *Archive) Size() int64 {
	return a.source.Size()
}

// GetFileInfo returns the byte layout of the file at name.
//
// Symlinks, including a final one, are followed to the file they point at.
// Directories fail with ErrIsDir.
func (a *Archive) GetFileInfo(name string) (FileInfo, error) {
	info, _, err := a.fileInfo(name)
	if err != nil {
		return FileInfo{}, &fs.PathError{Op: "fileinfo", Path: name, Err: err}
	}
	return info, nil
}

// fileInfo resolves name to a file, returning its metadata and canonical
// path.
func (a *Archive) fileInfo(name string) (FileInfo, string, error) {
	node, canonical, err := a.hdr.Resolve(name)
	if err != nil {
		return FileInfo{}, "", err
	}
	if node.IsDir() {
		return FileInfo{}, "", ErrIsDir
	}
	info, err := node.FileInfo(a.hdr.Size())
	if err != nil {
		return FileInfo{}, "", err
	}
	return info, canonical, nil
}

// Stat describes the node at name. Unlike GetFileInfo, a final symlink is
// reported as a symlink rather than followed.
func (a *Archive) Stat(name string) (Stats, error) {
	node, err := a.hdr.Lookup(name)
	if err != nil {
		return Stats{}, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	switch {
	case node.IsLink():
		return Stats{IsLink: true}, nil
	case node.IsDir():
		return Stats{IsDirectory: true}, nil
	}
	info, err := node.FileInfo(a.hdr.Size())
	if err != nil {
		return Stats{}, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return Stats{FileInfo: info, IsFile: true}, nil
}

// Readdir returns the names of the entries in the directory at name,
// sorted lexically. A symlink to a directory is followed.
func (a *Archive) Readdir(name string) ([]string, error) {
	node, _, err := a.hdr.Resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	if !node.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotDir}
	}
	return node.Names(), nil
}

// Realpath returns the target of the symlink at name, or name itself if it
// is not a symlink. Only one level is dereferenced.
func (a *Archive) Realpath(name string) (string, error) {
	node, err := a.hdr.Lookup(name)
	if err != nil {
		return "", &fs.PathError{Op: "realpath", Path: name, Err: err}
	}
	if node.IsLink() {
		return node.Target(), nil
	}
	return name, nil
}

// CopyFileOut returns a real filesystem path holding the content of the
// file at name.
//
// Unpacked files resolve to their location beside the archive. Packed
// files are copied to a temporary file on the first call; later calls for
// the same path return the same temporary file. Temporary files are
// removed by Close.
func (a *Archive) CopyFileOut(name string) (string, error) {
	key := pathutil.Clean(name)
	if path, ok := a.extracted.Get(key); ok {
		return path, nil
	}

	info, canonical, err := a.fileInfo(name)
	if err != nil {
		return "", &fs.PathError{Op: "copyfileout", Path: name, Err: err}
	}
	if info.Unpacked {
		path, err := a.unpackedPath(canonical)
		if err != nil {
			return "", &fs.PathError{Op: "copyfileout", Path: name, Err: err}
		}
		return path, nil
	}

	path, err := a.extracted.Extract(key, info)
	if err != nil {
		a.log().Warn("failed to extract file", "archive", a.path, "path", name, "error", err)
		return "", &fs.PathError{Op: "copyfileout", Path: name, Err: err}
	}
	return path, nil
}

// OpenFile opens the file at name for reading, following symlinks.
// Packed files are read straight from the archive; unpacked files are
// opened from disk. The caller must Close the returned File.
//
// With WithVerifyIntegrity, a packed file carrying integrity digests is
// checked in full before OpenFile returns, so every read of the returned
// File, sequential or random, sees verified bytes.
func (a *Archive) OpenFile(name string) (File, FileInfo, error) {
	if a.closed.Load() {
		return nil, FileInfo{}, &fs.PathError{Op: "open", Path: name, Err: ErrClosed}
	}
	info, canonical, err := a.fileInfo(name)
	if err != nil {
		return nil, FileInfo{}, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if info.Unpacked {
		f, err := a.openUnpacked(canonical)
		if err != nil {
			return nil, FileInfo{}, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return f, info, nil
	}
	section, err := a.section(info)
	if err != nil {
		return nil, FileInfo{}, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if a.verifyIntegrity && info.Integrity != nil {
		if err := verifySection(section, info.Integrity); err != nil {
			a.log().Warn("integrity check failed", "archive", a.path, "path", name, "error", err)
			return nil, FileInfo{}, &fs.PathError{Op: "open", Path: name, Err: err}
		}
	}
	return sectionFile{section}, info, nil
}

// ReadFile returns the content of the file at name, following symlinks.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	f, info, err := a.OpenFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	content := make([]byte, info.Size)
	if n, err := io.ReadFull(f, content); err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name,
			Err: fmt.Errorf("%w: short read (%d of %d bytes): %v", ErrIO, n, info.Size, err)}
	}
	return content, nil
}

// FD returns the native handle of the archive file so callers can map byte
// ranges directly. Archives not backed by a local file return ^uintptr(0).
func (a *Archive) FD() uintptr {
	if a.file == nil {
		return invalidFD
	}
	return a.file.Fd()
}

// File returns the underlying archive file, or nil if the archive is not
// backed by a local file. The Archive retains ownership.
func (a *Archive) File() *os.File {
	return a.file
}

// Close removes extracted temporary files and closes the archive file.
// Close is idempotent.
func (a *Archive) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	errs := []error{a.extracted.Close()}
	if a.file != nil {
		errs = append(errs, a.file.Close())
	}
	a.log().Debug("closed archive", "path", a.path)
	return errors.Join(errs...)
}

// section returns a bounded reader over a packed file's bytes.
func (a *Archive) section(info FileInfo) (*io.SectionReader, error) {
	if !sizing.InBounds(info.Offset, uint64(info.Size), a.source.Size()) {
		return nil, fmt.Errorf("%w: range [%d, +%d) exceeds archive size %d",
			ErrIO, info.Offset, info.Size, a.source.Size())
	}
	offset, err := sizing.ToInt64(info.Offset, ErrIO)
	if err != nil {
		return nil, err
	}
	return io.NewSectionReader(a.source, offset, int64(info.Size)), nil
}

// verifySection reads section through an integrity verifier and rewinds it.
func verifySection(section *io.SectionReader, rec *Integrity) error {
	v, err := integrity.NewVerifier(rec)
	if err != nil {
		return err
	}
	if _, err := io.Copy(v, section); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := v.Verify(); err != nil {
		return err
	}
	_, err = section.Seek(0, io.SeekStart)
	return err
}

// unpackedPath returns the on-disk location of the unpacked file at the
// canonical path rel.
func (a *Archive) unpackedPath(rel string) (string, error) {
	if a.path == "" {
		return "", fmt.Errorf("%w: unpacked file without a local archive path", ErrNotFound)
	}
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: unpacked path %q escapes the archive", ErrFormat, rel)
	}
	return filepath.Join(a.path+unpackedSuffix, local), nil
}

func (a *Archive) openUnpacked(rel string) (*os.File, error) {
	path, err := a.unpackedPath(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path) //nolint:gosec // path is confined to the .unpacked sibling
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return f, nil
}

// sectionFile adapts an io.SectionReader to File.
type sectionFile struct {
	*io.SectionReader
}

func (sectionFile) Close() error { return nil }

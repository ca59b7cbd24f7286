package asar

import "github.com/meigma/asar/internal/asartype"

// Sentinel errors re-exported from internal/asartype.
var (
	// ErrNotFound is returned when a path does not resolve to a node.
	// errors.Is(err, fs.ErrNotExist) also holds for it.
	ErrNotFound = asartype.ErrNotFound

	// ErrFormat is returned when the archive header, or a node within it,
	// is malformed.
	ErrFormat = asartype.ErrFormat

	// ErrIO is returned when the archive cannot be read, including short
	// reads of a file's byte range.
	ErrIO = asartype.ErrIO

	// ErrNotDir is returned by Readdir for paths that are not directories.
	// It matches ErrNotFound.
	ErrNotDir = asartype.ErrNotDir

	// ErrIsDir is returned when a file operation names a directory.
	// It matches ErrNotFound.
	ErrIsDir = asartype.ErrIsDir

	// ErrLinkDepth is returned when a symlink chain is too long or cyclic.
	// It matches ErrFormat.
	ErrLinkDepth = asartype.ErrLinkDepth

	// ErrIntegrity is returned when content fails integrity verification.
	ErrIntegrity = asartype.ErrIntegrity

	// ErrClosed is returned by I/O on a closed archive.
	ErrClosed = asartype.ErrClosed
)

package asar

import (
	"io"

	"github.com/meigma/asar/internal/asartype"
	"github.com/meigma/asar/internal/header"
)

// Re-export types from internal/asartype for public API.
type (
	// FileInfo describes where a file's bytes live.
	FileInfo = asartype.FileInfo

	// Stats describes a node without following a final symlink.
	Stats = asartype.Stats

	// Integrity holds the content digests recorded for a file.
	Integrity = asartype.Integrity
)

// DefaultMaxLinkDepth is the default bound on symlink hops.
const DefaultMaxLinkDepth = header.DefaultMaxLinkDepth

// ByteSource provides random access to the archive bytes.
//
// Implementations exist for local files and HTTP range requests.
// SourceID must return a stable identifier for the underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// File is an open archive file.
type File interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
}

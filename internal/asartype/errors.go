package asartype

import (
	"errors"
	"io/fs"
)

// Sentinel errors for archive operations.
var (
	// ErrNotFound is returned when a path does not resolve to a node.
	// It matches fs.ErrNotExist under errors.Is.
	ErrNotFound = &kindError{msg: "asar: not found", is: fs.ErrNotExist}

	// ErrFormat is returned when the header envelope, the header payload,
	// or a node's mandatory fields are malformed.
	ErrFormat = errors.New("asar: malformed archive")

	// ErrIO is returned when the archive cannot be read or a byte range
	// read returns fewer bytes than requested.
	ErrIO = errors.New("asar: i/o failure")

	// ErrNotDir is returned when a directory was expected.
	ErrNotDir = &kindError{msg: "asar: not a directory", is: ErrNotFound}

	// ErrIsDir is returned when a file was expected but a directory was found.
	ErrIsDir = &kindError{msg: "asar: is a directory", is: ErrNotFound}

	// ErrLinkDepth is returned when symlink resolution exceeds the hop limit.
	ErrLinkDepth = &kindError{msg: "asar: too many levels of symbolic links", is: ErrFormat}

	// ErrIntegrity is returned when extracted content does not match the
	// integrity digests recorded in the header.
	ErrIntegrity = errors.New("asar: integrity check failed")

	// ErrClosed is returned by operations on a closed archive.
	ErrClosed = &kindError{msg: "asar: archive closed", is: fs.ErrClosed}
)

// kindError is a sentinel that also matches a broader sentinel, so callers
// can test for either the precise failure or its class.
type kindError struct {
	msg string
	is  error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool {
	return target == e.is || errors.Is(e.is, target)
}

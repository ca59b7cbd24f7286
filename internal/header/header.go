package header

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/asar/internal/asartype"
)

// sizeRecordLen is the fixed length of the leading size record.
const sizeRecordLen = 8

// DefaultMaxLinkDepth bounds symlink chasing during resolution.
const DefaultMaxLinkDepth = 32

// Header is the parsed, immutable directory tree of an archive.
//
// A Header is safe for concurrent use; nothing mutates it after Read.
type Header struct {
	root         *Node
	size         uint64
	maxLinkDepth int
}

// Option configures a Header.
type Option func(*Header)

// WithMaxLinkDepth sets the maximum number of symlink hops followed while
// resolving a path. Values <= 0 select DefaultMaxLinkDepth.
func WithMaxLinkDepth(n int) Option {
	return func(h *Header) {
		h.maxLinkDepth = n
	}
}

// sizer is implemented by sources that know their total length.
type sizer interface {
	Size() int64
}

// Read decodes the preamble at the start of r.
//
// A short read wraps asartype.ErrIO; a malformed record or payload wraps
// asartype.ErrFormat. If r reports its size, a header that claims to extend
// past the end of the source is treated as truncated before any large
// allocation happens.
func Read(r io.ReaderAt, opts ...Option) (*Header, error) {
	sizeBuf := make([]byte, sizeRecordLen)
	if err := readFull(r, sizeBuf, 0); err != nil {
		return nil, fmt.Errorf("read header size: %w", err)
	}
	n, err := readUint32Record(sizeBuf)
	if err != nil {
		return nil, fmt.Errorf("parse header size: %w", err)
	}

	if s, ok := r.(sizer); ok && int64(n) > s.Size()-sizeRecordLen {
		return nil, fmt.Errorf("read header: %w: header of %d bytes exceeds archive size %d",
			asartype.ErrIO, n, s.Size())
	}

	buf := make([]byte, n)
	if err := readFull(r, buf, sizeRecordLen); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	payload, err := readStringRecord(buf)
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	h, err := Parse(payload, opts...)
	if err != nil {
		return nil, err
	}
	h.size = sizeRecordLen + uint64(n)
	return h, nil
}

// Parse decodes a JSON header payload. The returned Header reports a Size
// of zero; Read fills it in from the preamble.
func Parse(payload []byte, opts ...Option) (*Header, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("parse header: %w: root is not an object", asartype.ErrFormat)
	}
	var root Node
	if err := json.Unmarshal(trimmed, &root); err != nil {
		return nil, fmt.Errorf("parse header: %w: %v", asartype.ErrFormat, err)
	}

	h := &Header{root: &root}
	for _, opt := range opts {
		opt(h)
	}
	if h.maxLinkDepth <= 0 {
		h.maxLinkDepth = DefaultMaxLinkDepth
	}
	return h, nil
}

// Size returns the byte offset at which packed file contents begin.
func (h *Header) Size() uint64 {
	return h.size
}

// Root returns the root directory node.
func (h *Header) Root() *Node {
	return h.root
}

// readFull reads len(buf) bytes at off, mapping any shortfall to ErrIO.
func readFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: short read (%d of %d bytes)", asartype.ErrIO, n, len(buf))
	}
	return fmt.Errorf("%w: %v", asartype.ErrIO, err)
}

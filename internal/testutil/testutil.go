// Package testutil builds archives and byte sources for tests.
package testutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/meigma/asar/internal/header"
	"github.com/meigma/asar/internal/integrity"
)

// Builder assembles an archive in memory.
//
// File contents are appended to the packed region in the order they are
// added. Parent directories are created implicitly.
type Builder struct {
	root           *header.Node
	data           bytes.Buffer
	integrityBlock int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{root: &header.Node{Files: map[string]*header.Node{}}}
}

// WithIntegrity records integrity digests, using the given block size, for
// files added after the call.
func (b *Builder) WithIntegrity(blockSize int) *Builder {
	b.integrityBlock = blockSize
	return b
}

// File adds a packed file.
func (b *Builder) File(path string, content []byte) *Builder {
	b.addFile(path, content, false)
	return b
}

// Executable adds a packed file flagged executable.
func (b *Builder) Executable(path string, content []byte) *Builder {
	b.addFile(path, content, true)
	return b
}

// Unpacked adds a file that lives in the sibling ".unpacked" directory.
// Use WriteUnpacked to place its content on disk.
func (b *Builder) Unpacked(path string, size int) *Builder {
	b.put(path, &header.Node{
		Size:     json.RawMessage(strconv.Itoa(size)),
		Unpacked: true,
	})
	return b
}

// Link adds a symlink to target, which is resolved from the archive root.
func (b *Builder) Link(path, target string) *Builder {
	b.put(path, &header.Node{Link: &target})
	return b
}

// Dir adds an empty directory.
func (b *Builder) Dir(path string) *Builder {
	b.put(path, &header.Node{Files: map[string]*header.Node{}})
	return b
}

// Raw adds a node given as a JSON literal, for malformed-entry tests.
func (b *Builder) Raw(path, nodeJSON string) *Builder {
	var n header.Node
	if err := json.Unmarshal([]byte(nodeJSON), &n); err != nil {
		panic(err)
	}
	b.put(path, &n)
	return b
}

// Header returns the JSON header payload.
func (b *Builder) Header(tb testing.TB) []byte {
	tb.Helper()
	payload, err := json.Marshal(b.root)
	if err != nil {
		tb.Fatalf("marshal header: %v", err)
	}
	return payload
}

// Bytes returns the encoded archive.
func (b *Builder) Bytes(tb testing.TB) []byte {
	tb.Helper()
	rec := header.EncodeStringRecord(b.Header(tb))
	var out bytes.Buffer
	out.Write(header.EncodeUint32Record(uint32(len(rec)))) //nolint:gosec // test headers are small
	out.Write(rec)
	out.Write(b.data.Bytes())
	return out.Bytes()
}

// HeaderSize returns the offset at which packed contents begin.
func (b *Builder) HeaderSize(tb testing.TB) uint64 {
	tb.Helper()
	return uint64(8 + len(header.EncodeStringRecord(b.Header(tb))))
}

// Write encodes the archive to dir/name and returns its path.
func (b *Builder) Write(tb testing.TB, dir, name string) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b.Bytes(tb), 0o600); err != nil {
		tb.Fatalf("write archive: %v", err)
	}
	return path
}

// WriteUnpacked places content at archivePath.unpacked/rel.
func WriteUnpacked(tb testing.TB, archivePath, rel string, content []byte) string {
	tb.Helper()
	path := filepath.Join(archivePath+".unpacked", filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir unpacked: %v", err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		tb.Fatalf("write unpacked: %v", err)
	}
	return path
}

func (b *Builder) addFile(path string, content []byte, executable bool) {
	n := &header.Node{
		Size:       json.RawMessage(strconv.Itoa(len(content))),
		Offset:     json.RawMessage(strconv.Quote(strconv.Itoa(b.data.Len()))),
		Executable: executable,
	}
	if b.integrityBlock > 0 {
		n.Integrity = integrity.Compute(content, b.integrityBlock)
	}
	b.data.Write(content)
	b.put(path, n)
}

func (b *Builder) put(path string, n *header.Node) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	dir := b.root
	for _, name := range parts[:len(parts)-1] {
		child, ok := dir.Files[name]
		if !ok {
			child = &header.Node{Files: map[string]*header.Node{}}
			dir.Files[name] = child
		}
		dir = child
	}
	dir.Files[parts[len(parts)-1]] = n
}

// MockByteSource implements a simple in-memory byte source for tests.
type MockByteSource struct {
	data     []byte
	sourceID string
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	sum := sha256.Sum256(data)
	return &MockByteSource{
		data:     data,
		sourceID: "mock:" + hex.EncodeToString(sum[:]),
	}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// SourceID returns a stable identifier for the source data.
func (m *MockByteSource) SourceID() string {
	return m.sourceID
}

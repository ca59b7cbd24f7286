package header

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/meigma/asar/internal/asartype"
	"github.com/meigma/asar/internal/sizing"
)

// Node is one entry of the header tree.
//
// A node with Link set is a symlink. A node with Files set, even to an
// empty map, is a directory. Any other node is a file. Size and Offset are
// kept raw and validated when metadata is requested, so one malformed file
// does not make the rest of the archive unreadable.
type Node struct {
	Files      map[string]*Node    `json:"files,omitempty"`
	Link       *string             `json:"link,omitempty"`
	Size       json.RawMessage     `json:"size,omitempty"`
	Offset     json.RawMessage     `json:"offset,omitempty"`
	Executable bool                `json:"executable,omitempty"`
	Unpacked   bool                `json:"unpacked,omitempty"`
	Integrity  *asartype.Integrity `json:"integrity,omitempty"`
}

// IsLink reports whether n is a symlink.
func (n *Node) IsLink() bool {
	return n.Link != nil
}

// IsDir reports whether n is a directory.
func (n *Node) IsDir() bool {
	return n.Link == nil && n.Files != nil
}

// IsFile reports whether n is a regular file.
func (n *Node) IsFile() bool {
	return n.Link == nil && n.Files == nil
}

// Target returns the symlink target, or "" if n is not a symlink.
func (n *Node) Target() string {
	if n.Link == nil {
		return ""
	}
	return *n.Link
}

// Names returns the child names of a directory in lexical order.
func (n *Node) Names() []string {
	names := make([]string, 0, len(n.Files))
	for name := range n.Files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// FileInfo extracts byte-level metadata from a file node.
//
// headerSize is added to the recorded offset to produce an absolute
// archive offset. Unpacked files skip offset parsing entirely.
func (n *Node) FileInfo(headerSize uint64) (asartype.FileInfo, error) {
	size, err := n.size()
	if err != nil {
		return asartype.FileInfo{}, err
	}
	info := asartype.FileInfo{
		Size:       size,
		Executable: n.Executable,
		Unpacked:   n.Unpacked,
		Integrity:  n.Integrity,
	}
	if n.Unpacked {
		return info, nil
	}

	offset, err := n.offset()
	if err != nil {
		return asartype.FileInfo{}, err
	}
	abs, ok := sizing.AddUint64(offset, headerSize)
	if !ok {
		return asartype.FileInfo{}, fmt.Errorf("%w: offset %d overflows", asartype.ErrFormat, offset)
	}
	info.Offset = abs
	return info, nil
}

func (n *Node) size() (uint32, error) {
	if len(n.Size) == 0 {
		return 0, fmt.Errorf("%w: file has no size", asartype.ErrFormat)
	}
	v, err := strconv.ParseUint(string(n.Size), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid size %s", asartype.ErrFormat, n.Size)
	}
	size, err := sizing.ToUint32(v, asartype.ErrFormat)
	if err != nil {
		return 0, fmt.Errorf("%w: size %d exceeds 4GiB", err, v)
	}
	return size, nil
}

// offset parses the relative offset, which packers record as a decimal
// string. A bare JSON number is accepted as well.
func (n *Node) offset() (uint64, error) {
	if len(n.Offset) == 0 {
		return 0, fmt.Errorf("%w: file has no offset", asartype.ErrFormat)
	}
	raw := n.Offset
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%w: invalid offset %s", asartype.ErrFormat, raw)
		}
		raw = []byte(s)
	}
	v, err := strconv.ParseUint(string(bytes.TrimSpace(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid offset %s", asartype.ErrFormat, n.Offset)
	}
	return v, nil
}

package header

import (
	"fmt"

	"github.com/meigma/asar/internal/asartype"
	"github.com/meigma/asar/internal/pathutil"
)

// Lookup returns the node at path without dereferencing it.
//
// Every segment but the last must name a directory, or a symlink that
// eventually resolves to one; such symlinks are re-resolved from the
// archive root. The final node is returned as found, so a path naming a
// symlink yields the symlink itself. The empty path yields the root.
func (h *Header) Lookup(path string) (*Node, error) {
	r := h.resolver()
	node, _, err := r.lookup(path)
	return node, err
}

// Resolve returns the node at path, following a final symlink until a
// file or directory is reached, together with the node's canonical path:
// the slash-separated path from the root that names it without passing
// through any symlink.
func (h *Header) Resolve(path string) (*Node, string, error) {
	r := h.resolver()
	node, at, err := r.lookup(path)
	if err != nil {
		return nil, "", err
	}
	return r.follow(node, at)
}

// resolver walks paths with a hop budget shared by every symlink
// dereferenced during one call, however deeply link targets nest.
type resolver struct {
	root  *Node
	limit int
	hops  int
}

func (h *Header) resolver() *resolver {
	return &resolver{root: h.root, limit: h.maxLinkDepth}
}

// lookup walks path from the root. It returns the final node and the path
// it was found at, with every intermediate symlink already expanded.
func (r *resolver) lookup(path string) (*Node, string, error) {
	node, at := r.root, ""
	for _, name := range pathutil.Split(path) {
		dir, dirPath, err := r.follow(node, at)
		if err != nil {
			return nil, "", err
		}
		if dir.Files == nil {
			return nil, "", asartype.ErrNotFound
		}
		child, ok := dir.Files[name]
		if !ok || child == nil {
			return nil, "", asartype.ErrNotFound
		}
		node = child
		at = join(dirPath, name)
	}
	return node, at, nil
}

// follow dereferences node, found at path at, until it is not a symlink.
func (r *resolver) follow(node *Node, at string) (*Node, string, error) {
	for node.Link != nil {
		r.hops++
		if r.hops > r.limit {
			return nil, "", fmt.Errorf("%w (limit %d)", asartype.ErrLinkDepth, r.limit)
		}
		var err error
		node, at, err = r.lookup(*node.Link)
		if err != nil {
			return nil, "", err
		}
	}
	return node, at, nil
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

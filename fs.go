package asar

import (
	"errors"
	"io"
	"io/fs"
	"time"

	"github.com/meigma/asar/internal/header"
	"github.com/meigma/asar/internal/pathutil"
)

// Interface compliance.
var (
	_ fs.FS         = (*archiveFS)(nil)
	_ fs.StatFS     = (*archiveFS)(nil)
	_ fs.ReadFileFS = (*archiveFS)(nil)
	_ fs.ReadDirFS  = (*archiveFS)(nil)
	_ fs.ReadLinkFS = (*archiveFS)(nil)
)

// FS returns a view of the archive as an fs.FS.
//
// Names follow fs.ValidPath. Open, Stat, ReadFile and ReadDir follow
// symlinks; Lstat and ReadLink do not, and ReadDir reports symlink entries
// with fs.ModeSymlink so fs.WalkDir does not descend through them.
func (a *Archive) FS() fs.FS {
	return &archiveFS{a: a}
}

type archiveFS struct {
	a *Archive
}

// name converts an fs.FS name to an archive path.
func (f *archiveFS) name(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return "", nil
	}
	return name, nil
}

// Open implements fs.FS.
func (f *archiveFS) Open(name string) (fs.File, error) {
	p, err := f.name("open", name)
	if err != nil {
		return nil, err
	}
	node, _, err := f.a.hdr.Resolve(p)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if node.IsDir() {
		return &openDir{fsys: f, name: name, node: node}, nil
	}
	file, _, err := f.a.OpenFile(p)
	if err != nil {
		return nil, err
	}
	info, err := f.info(pathutil.Base(p), node)
	if err != nil {
		file.Close()
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &openFile{File: file, info: info}, nil
}

// Stat implements fs.StatFS.
func (f *archiveFS) Stat(name string) (fs.FileInfo, error) {
	p, err := f.name("stat", name)
	if err != nil {
		return nil, err
	}
	node, _, err := f.a.hdr.Resolve(p)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	info, err := f.info(baseName(p), node)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return info, nil
}

// Lstat implements fs.ReadLinkFS.
func (f *archiveFS) Lstat(name string) (fs.FileInfo, error) {
	p, err := f.name("lstat", name)
	if err != nil {
		return nil, err
	}
	node, err := f.a.hdr.Lookup(p)
	if err != nil {
		return nil, &fs.PathError{Op: "lstat", Path: name, Err: err}
	}
	info, err := f.info(baseName(p), node)
	if err != nil {
		return nil, &fs.PathError{Op: "lstat", Path: name, Err: err}
	}
	return info, nil
}

// ReadLink implements fs.ReadLinkFS.
func (f *archiveFS) ReadLink(name string) (string, error) {
	p, err := f.name("readlink", name)
	if err != nil {
		return "", err
	}
	node, err := f.a.hdr.Lookup(p)
	if err != nil {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: err}
	}
	if !node.IsLink() {
		return "", &fs.PathError{Op: "readlink", Path: name, Err: fs.ErrInvalid}
	}
	return node.Target(), nil
}

// ReadFile implements fs.ReadFileFS.
func (f *archiveFS) ReadFile(name string) ([]byte, error) {
	p, err := f.name("readfile", name)
	if err != nil {
		return nil, err
	}
	return f.a.ReadFile(p)
}

// ReadDir implements fs.ReadDirFS. Entries are sorted by name.
func (f *archiveFS) ReadDir(name string) ([]fs.DirEntry, error) {
	p, err := f.name("readdir", name)
	if err != nil {
		return nil, err
	}
	node, _, err := f.a.hdr.Resolve(p)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	if !node.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotDir}
	}
	return f.entries(node), nil
}

func (f *archiveFS) entries(dir *header.Node) []fs.DirEntry {
	names := dir.Names()
	entries := make([]fs.DirEntry, 0, len(names))
	for _, childName := range names {
		info, err := f.info(childName, dir.Files[childName])
		entries = append(entries, &dirEntry{info: info, err: err})
	}
	return entries
}

// info builds fs.FileInfo for node without following it.
func (f *archiveFS) info(name string, node *header.Node) (*fileInfo, error) {
	fi := &fileInfo{name: name, modTime: f.a.modTime}
	switch {
	case node.IsLink():
		fi.mode = fs.ModeSymlink | 0o777
		fi.size = int64(len(node.Target()))
		fi.stats = Stats{IsLink: true}
	case node.IsDir():
		fi.mode = fs.ModeDir | 0o555
		fi.stats = Stats{IsDirectory: true}
	default:
		info, err := node.FileInfo(f.a.hdr.Size())
		if err != nil {
			return fi, err
		}
		fi.mode = 0o444
		if info.Executable {
			fi.mode = 0o555
		}
		fi.size = int64(info.Size)
		fi.stats = Stats{FileInfo: info, IsFile: true}
	}
	return fi, nil
}

func baseName(p string) string {
	if p == "" {
		return "."
	}
	return pathutil.Base(p)
}

// fileInfo implements fs.FileInfo. Sys returns the node's Stats.
type fileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	stats   Stats
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi *fileInfo) ModTime() time.Time { return fi.modTime }
func (fi *fileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *fileInfo) Sys() any           { return fi.stats }

// dirEntry implements fs.DirEntry.
type dirEntry struct {
	info *fileInfo
	err  error
}

func (e *dirEntry) Name() string      { return e.info.name }
func (e *dirEntry) IsDir() bool       { return e.info.IsDir() }
func (e *dirEntry) Type() fs.FileMode { return e.info.mode.Type() }

func (e *dirEntry) Info() (fs.FileInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.info, nil
}

// openFile implements fs.File over an archive file.
type openFile struct {
	File
	info *fileInfo
}

func (f *openFile) Stat() (fs.FileInfo, error) {
	return f.info, nil
}

// openDir implements fs.ReadDirFile.
type openDir struct {
	fsys    *archiveFS
	name    string
	node    *header.Node
	entries []fs.DirEntry
	offset  int
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: errors.New("is a directory")}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	name := d.name
	if name != "." {
		name = pathutil.Base(name)
	}
	return d.fsys.info(name, d.node)
}

func (d *openDir) Close() error {
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.entries == nil {
		d.entries = d.fsys.entries(d.node)
	}
	remaining := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return remaining, nil
	}
	if len(remaining) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(remaining))
	d.offset += n
	return remaining[:n], nil
}

package asar

import (
	"io"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/asar/internal/testutil"
)

func TestFS_Conformance(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, testutil.NewBuilder().
		File("index.js", []byte("module.exports = 1\n")).
		File("lib/util.js", []byte("exports.noop = () => {}\n")).
		Executable("bin/run", []byte("#!/bin/sh\necho hi\n")).
		File("lib/deep/nested/data.json", []byte(`{"ok":true}`)).
		File("empty.txt", nil).
		Dir("static"))

	require.NoError(t, fstest.TestFS(a.FS(),
		"index.js", "lib/util.js", "bin/run", "lib/deep/nested/data.json", "empty.txt"))
}

func TestFS_Symlinks(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, scenarioBuilder().Link("alias", "a.txt").Link("subdir", "sub"))
	fsys := a.FS()

	content, err := fs.ReadFile(fsys, "alias")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	content, err = fs.ReadFile(fsys, "subdir/b.bin")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(content))

	target, err := fs.ReadLink(fsys, "alias")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", target)

	_, err = fs.ReadLink(fsys, "a.txt")
	require.ErrorIs(t, err, fs.ErrInvalid)

	info, err := fs.Lstat(fsys, "subdir")
	require.NoError(t, err)
	assert.Equal(t, fs.ModeSymlink, info.Mode().Type())
	assert.Equal(t, Stats{IsLink: true}, info.Sys())

	info, err = fs.Stat(fsys, "subdir")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "subdir", info.Name())
}

func TestFS_WalkDirSkipsLinkedDirs(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, scenarioBuilder().Link("subdir", "sub"))

	var walked []string
	err := fs.WalkDir(a.FS(), ".", func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		walked = append(walked, path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{".", "a.txt", "sub", "sub/b.bin", "subdir"}, walked)
}

func TestFS_FileInfo(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, scenarioBuilder())
	fsys := a.FS()

	info, err := fs.Stat(fsys, "sub/b.bin")
	require.NoError(t, err)
	assert.Equal(t, "b.bin", info.Name())
	assert.Equal(t, int64(10), info.Size())
	assert.Equal(t, fs.FileMode(0o555), info.Mode())

	stats, ok := info.Sys().(Stats)
	require.True(t, ok)
	assert.Equal(t, a.HeaderSize()+5, stats.Offset)

	info, err = fs.Stat(fsys, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0o444), info.Mode())

	info, err = fs.Stat(fsys, ".")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, ".", info.Name())
}

func TestFS_Open(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, scenarioBuilder())
	fsys := a.FS()

	f, err := fsys.Open("sub/b.bin")
	require.NoError(t, err)
	defer f.Close()

	seeker, ok := f.(io.Seeker)
	require.True(t, ok)
	_, err = seeker.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	tail, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "789", string(tail))

	d, err := fsys.Open("sub")
	require.NoError(t, err)
	defer d.Close()
	_, err = d.Read(make([]byte, 1))
	require.Error(t, err)

	rd, ok := d.(fs.ReadDirFile)
	require.True(t, ok)
	entries, err := rd.ReadDir(1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b.bin", entries[0].Name())
	_, err = rd.ReadDir(1)
	require.ErrorIs(t, err, io.EOF)
}

func TestFS_Errors(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, scenarioBuilder())
	fsys := a.FS()

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"invalid path", func() error { _, err := fsys.Open("/a.txt"); return err }, fs.ErrInvalid},
		{"dot segment", func() error { _, err := fs.Stat(fsys, "sub/../a.txt"); return err }, fs.ErrInvalid},
		{"missing", func() error { _, err := fsys.Open("nope"); return err }, fs.ErrNotExist},
		{"readdir on file", func() error { _, err := fs.ReadDir(fsys, "a.txt"); return err }, ErrNotDir},
		{"readfile on dir", func() error { _, err := fs.ReadFile(fsys, "sub"); return err }, ErrIsDir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.call()
			require.ErrorIs(t, err, tt.want)

			var pathErr *fs.PathError
			require.ErrorAs(t, err, &pathErr)
		})
	}
}

func TestFS_MalformedEntry(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, scenarioBuilder().Raw("bad", `{"offset":"0"}`))

	entries, err := fs.ReadDir(a.FS(), ".")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "bad", entries[1].Name())
	_, err = entries[1].Info()
	require.ErrorIs(t, err, ErrFormat)
}

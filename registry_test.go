package asar

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/asar/internal/testutil"
)

func TestRegistry_GetShares(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := scenarioBuilder().Write(t, dir, "app.asar")
	r := NewRegistry(WithArchiveOptions(WithTempDir(t.TempDir())))
	defer r.Close()

	const workers = 8
	got := make([]*Archive, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := r.Get(path)
			assert.NoError(t, err)
			got[i] = a
		}()
	}
	wg.Wait()

	for _, a := range got {
		assert.Same(t, got[0], a)
	}
	assert.Equal(t, 1, r.Len())

	// A relative spelling of the same file maps to the same archive.
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, path)
	require.NoError(t, err)
	a, err := r.Get(rel)
	require.NoError(t, err)
	assert.Same(t, got[0], a)
}

func TestRegistry_FailedOpenNotCached(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "late.asar")
	r := NewRegistry()
	defer r.Close()

	_, err := r.Get(path)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Zero(t, r.Len())

	scenarioBuilder().Write(t, dir, "late.asar")
	a, err := r.Get(path)
	require.NoError(t, err)
	assert.Equal(t, path, a.Path())
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := scenarioBuilder().Write(t, dir, "res.asar")
	r := NewRegistry()
	defer r.Close()

	a, inner, err := r.Lookup(filepath.Join(path, "sub", "b.bin"))
	require.NoError(t, err)
	assert.Equal(t, "sub/b.bin", inner)

	content, err := a.ReadFile(inner)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(content))

	_, _, err = r.Lookup(filepath.Join(dir, "plain", "file.txt"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Close(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	path := scenarioBuilder().Write(t, t.TempDir(), "app.asar")
	r := NewRegistry(WithArchiveOptions(WithTempDir(tempDir)))

	a, err := r.Get(path)
	require.NoError(t, err)
	out, err := a.CopyFileOut("a.txt")
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.Zero(t, r.Len())

	_, err = os.Stat(out)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = r.Get(path)
	require.ErrorIs(t, err, ErrClosed)
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		path        string
		wantArchive string
		wantInner   string
		wantOK      bool
	}{
		{"archive itself", "/app/res.asar", "/app/res.asar", "", true},
		{"nested file", "/app/res.asar/a/b.js", "/app/res.asar", "a/b.js", true},
		{"trailing slash", "/app/res.asar/dir/", "/app/res.asar", "dir", true},
		{"innermost archive", "/app/outer.asar/inner.asar/x", "/app/outer.asar/inner.asar", "x", true},
		{"unpacked sibling", "/app/res.asar.unpacked/a.node", "", "", false},
		{"no archive", "/app/lib/a.js", "", "", false},
		{"root", "/", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			archivePath, inner, ok := SplitPath(filepath.FromSlash(tt.path))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantInner, inner)
			if tt.wantOK {
				assert.Equal(t, filepath.FromSlash(tt.wantArchive), archivePath)
			}
		})
	}
}

func TestRegistry_ArchiveOptions(t *testing.T) {
	t.Parallel()

	b := testutil.NewBuilder().File("f", []byte("x")).Link("l1", "f").Link("l2", "l1")
	path := b.Write(t, t.TempDir(), "app.asar")
	r := NewRegistry(WithArchiveOptions(WithMaxLinkDepth(1)))
	defer r.Close()

	a, err := r.Get(path)
	require.NoError(t, err)
	_, err = a.GetFileInfo("l2")
	require.ErrorIs(t, err, ErrLinkDepth)
}

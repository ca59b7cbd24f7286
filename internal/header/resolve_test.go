package header

import (
	"fmt"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/asar/internal/asartype"
)

const linkTree = `{"files":{
	"a.txt":{"size":5,"offset":"0"},
	"alias":{"link":"a.txt"},
	"dir":{"files":{"inner":{"files":{"deep.txt":{"size":1,"offset":"5"}}}}},
	"dirlink":{"link":"dir/inner"},
	"chain":{"link":"dirlink"},
	"loop1":{"link":"loop2"},
	"loop2":{"link":"loop1"},
	"dangling":{"link":"missing"}
}}`

func parseLinkTree(t *testing.T, opts ...Option) *Header {
	t.Helper()
	h, err := Parse([]byte(linkTree), opts...)
	require.NoError(t, err)
	return h
}

func TestLookup(t *testing.T) {
	t.Parallel()

	h := parseLinkTree(t)

	tests := []struct {
		path   string
		isDir  bool
		isLink bool
	}{
		{"", true, false},
		{"/", true, false},
		{"a.txt", false, false},
		{"/a.txt", false, false},
		{"dir//inner/", true, false},
		{"dir/inner/deep.txt", false, false},
		{"alias", false, true},
		{"dirlink", false, true},
		{"dirlink/deep.txt", false, false},
		{"chain/deep.txt", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			n, err := h.Lookup(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.isDir, n.IsDir())
			assert.Equal(t, tt.isLink, n.IsLink())
		})
	}
}

func TestLookup_Root(t *testing.T) {
	t.Parallel()

	h := parseLinkTree(t)
	n, err := h.Lookup("")
	require.NoError(t, err)
	assert.Same(t, h.Root(), n)
}

func TestLookup_NotFound(t *testing.T) {
	t.Parallel()

	h := parseLinkTree(t)

	for _, path := range []string{
		"missing",
		"dir/nonexistent/deep.txt",
		"a.txt/child",
		"dangling/child",
	} {
		t.Run(path, func(t *testing.T) {
			t.Parallel()
			_, err := h.Lookup(path)
			require.ErrorIs(t, err, asartype.ErrNotFound)
		})
	}
}

func TestLookup_FinalSymlinkNotFollowed(t *testing.T) {
	t.Parallel()

	h := parseLinkTree(t)

	// A dangling symlink is still a node in its own right.
	n, err := h.Lookup("dangling")
	require.NoError(t, err)
	assert.Equal(t, "missing", n.Target())

	_, _, err = h.Resolve("dangling")
	require.ErrorIs(t, err, asartype.ErrNotFound)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	h := parseLinkTree(t)

	n, canonical, err := h.Resolve("alias")
	require.NoError(t, err)
	target, err := h.Lookup("a.txt")
	require.NoError(t, err)
	assert.Same(t, target, n)
	assert.Equal(t, "a.txt", canonical)

	n, canonical, err = h.Resolve("chain")
	require.NoError(t, err)
	assert.True(t, n.IsDir())
	assert.Equal(t, []string{"deep.txt"}, n.Names())
	assert.Equal(t, "dir/inner", canonical)

	_, canonical, err = h.Resolve("/chain//deep.txt")
	require.NoError(t, err)
	assert.Equal(t, "dir/inner/deep.txt", canonical)

	_, canonical, err = h.Resolve("")
	require.NoError(t, err)
	assert.Empty(t, canonical)
}

func TestResolve_Cycle(t *testing.T) {
	t.Parallel()

	h := parseLinkTree(t)

	_, _, err := h.Resolve("loop1")
	require.ErrorIs(t, err, asartype.ErrLinkDepth)
	require.ErrorIs(t, err, asartype.ErrFormat)

	_, err = h.Lookup("loop1/child")
	require.ErrorIs(t, err, asartype.ErrLinkDepth)
}

func TestResolve_MaxLinkDepth(t *testing.T) {
	t.Parallel()

	h := parseLinkTree(t, WithMaxLinkDepth(1))

	_, _, err := h.Resolve("alias")
	require.NoError(t, err)

	// chain -> dirlink -> dir/inner needs two hops.
	_, _, err = h.Resolve("chain")
	require.ErrorIs(t, err, asartype.ErrLinkDepth)
}

// fanOutTree builds links x1..xN where xi points at four copies of x(i-1),
// so counting only nesting depth would visit 4^N links.
func fanOutTree(levels int) string {
	var b strings.Builder
	b.WriteString(`{"files":{"f":{"size":0,"offset":"0"},"x0":{"link":""}`)
	for i := 1; i <= levels; i++ {
		prev := fmt.Sprintf("x%d", i-1)
		fmt.Fprintf(&b, `,"x%d":{"link":"%s"}`, i, strings.Join([]string{prev, prev, prev, prev}, "/"))
	}
	b.WriteString("}}")
	return b.String()
}

func TestResolve_LinkBudgetIsShared(t *testing.T) {
	t.Parallel()

	h, err := Parse([]byte(fanOutTree(20)))
	require.NoError(t, err)

	start := time.Now()
	_, _, err = h.Resolve("x20/f")
	require.ErrorIs(t, err, asartype.ErrLinkDepth)
	_, err = h.Lookup("x20/f")
	require.ErrorIs(t, err, asartype.ErrLinkDepth)
	assert.Less(t, time.Since(start), 5*time.Second)

	// A shallow fan-out stays within the default budget.
	h, err = Parse([]byte(fanOutTree(2)))
	require.NoError(t, err)
	n, canonical, err := h.Resolve("x2/f")
	require.NoError(t, err)
	assert.True(t, n.IsFile())
	assert.Equal(t, "f", canonical)
}

func TestLookup_WindowsSeparators(t *testing.T) {
	t.Parallel()

	h := parseLinkTree(t)
	_, err := h.Lookup(`dir\inner\deep.txt`)
	if runtime.GOOS == "windows" {
		require.NoError(t, err)
		return
	}
	require.ErrorIs(t, err, asartype.ErrNotFound)
}

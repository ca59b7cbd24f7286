package header

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/asar/internal/asartype"
)

// encode builds an archive preamble around a JSON payload followed by data.
func encode(payload string, data []byte) []byte {
	rec := EncodeStringRecord([]byte(payload))
	var buf bytes.Buffer
	buf.Write(EncodeUint32Record(uint32(len(rec))))
	buf.Write(rec)
	buf.Write(data)
	return buf.Bytes()
}

const scenario = `{"files":{"a.txt":{"size":5,"offset":"0"},"sub":{"files":{"b.bin":{"size":10,"offset":"5","executable":true}}}}}`

func TestRead(t *testing.T) {
	t.Parallel()

	raw := encode(scenario, []byte("hello0123456789"))
	h, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)

	rec := EncodeStringRecord([]byte(scenario))
	assert.Equal(t, uint64(8+len(rec)), h.Size())
	assert.True(t, h.Root().IsDir())
	assert.Equal(t, []string{"a.txt", "sub"}, h.Root().Names())
}

func TestRead_Truncated(t *testing.T) {
	t.Parallel()

	raw := encode(scenario, nil)
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"partial size record", raw[:5]},
		{"partial header", raw[:20]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Read(bytes.NewReader(tt.data))
			require.ErrorIs(t, err, asartype.ErrIO)
			assert.NotErrorIs(t, err, asartype.ErrFormat)
		})
	}
}

// plainReaderAt hides the Size method of bytes.Reader.
type plainReaderAt struct{ r *bytes.Reader }

func (p plainReaderAt) ReadAt(b []byte, off int64) (int, error) { return p.r.ReadAt(b, off) }

func TestRead_TruncatedWithoutSize(t *testing.T) {
	t.Parallel()

	raw := encode(scenario, nil)
	_, err := Read(plainReaderAt{bytes.NewReader(raw[:20])})
	require.ErrorIs(t, err, asartype.ErrIO)
}

func TestRead_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"size record overstates payload", append([]byte{9, 0, 0, 0}, make([]byte, 4)...)},
		{"not json", encode(`{"files":`, nil)},
		{"array root", encode(`[1,2,3]`, nil)},
		{"null root", encode(`null`, nil)},
		{
			"negative string length",
			func() []byte {
				rec := []byte{8, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0}
				return append(EncodeUint32Record(uint32(len(rec))), rec...)
			}(),
		},
		{
			"string past payload",
			func() []byte {
				rec := []byte{8, 0, 0, 0, 100, 0, 0, 0, 0, 0, 0, 0}
				return append(EncodeUint32Record(uint32(len(rec))), rec...)
			}(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Read(bytes.NewReader(tt.data))
			require.ErrorIs(t, err, asartype.ErrFormat)
		})
	}
}

func TestEncodeStringRecord_Padding(t *testing.T) {
	t.Parallel()

	for n := range 9 {
		rec := EncodeStringRecord(bytes.Repeat([]byte("x"), n))
		assert.Zero(t, len(rec)%4, "length %d", n)
		got, err := readStringRecord(rec)
		require.NoError(t, err)
		assert.Len(t, got, n)
	}
}

func TestNodeFileInfo(t *testing.T) {
	t.Parallel()

	h, err := Parse([]byte(scenario))
	require.NoError(t, err)

	a, err := h.Lookup("a.txt")
	require.NoError(t, err)
	info, err := a.FileInfo(104)
	require.NoError(t, err)
	assert.Equal(t, asartype.FileInfo{Size: 5, Offset: 104}, info)

	b, err := h.Lookup("sub/b.bin")
	require.NoError(t, err)
	info, err = b.FileInfo(104)
	require.NoError(t, err)
	assert.Equal(t, asartype.FileInfo{Size: 10, Offset: 109, Executable: true}, info)
}

func TestNodeFileInfo_Fields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		node    string
		want    asartype.FileInfo
		wantErr error
	}{
		{"numeric offset", `{"size":3,"offset":7}`, asartype.FileInfo{Size: 3, Offset: 17}, nil},
		{"unpacked without offset", `{"size":3,"unpacked":true}`, asartype.FileInfo{Size: 3, Unpacked: true}, nil},
		{"unpacked with junk offset", `{"size":3,"unpacked":true,"offset":"x"}`, asartype.FileInfo{Size: 3, Unpacked: true}, nil},
		{"missing size", `{"offset":"0"}`, asartype.FileInfo{}, asartype.ErrFormat},
		{"string size", `{"size":"3","offset":"0"}`, asartype.FileInfo{}, asartype.ErrFormat},
		{"negative size", `{"size":-1,"offset":"0"}`, asartype.FileInfo{}, asartype.ErrFormat},
		{"oversized", `{"size":4294967296,"offset":"0"}`, asartype.FileInfo{}, asartype.ErrFormat},
		{"missing offset", `{"size":3}`, asartype.FileInfo{}, asartype.ErrFormat},
		{"non-numeric offset", `{"size":3,"offset":"abc"}`, asartype.FileInfo{}, asartype.ErrFormat},
		{"overflowing offset", `{"size":3,"offset":"18446744073709551615"}`, asartype.FileInfo{}, asartype.ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, err := Parse([]byte(`{"files":{"f":` + tt.node + `}}`))
			require.NoError(t, err)
			n, err := h.Lookup("f")
			require.NoError(t, err)

			got, err := n.FileInfo(10)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNodeKinds(t *testing.T) {
	t.Parallel()

	h, err := Parse([]byte(`{"files":{"d":{"files":{}},"l":{"link":"d"},"f":{"size":0,"offset":"0"}}}`))
	require.NoError(t, err)

	d, err := h.Lookup("d")
	require.NoError(t, err)
	assert.True(t, d.IsDir())
	assert.Empty(t, d.Names())

	l, err := h.Lookup("l")
	require.NoError(t, err)
	assert.True(t, l.IsLink())
	assert.False(t, l.IsDir())
	assert.Equal(t, "d", l.Target())

	f, err := h.Lookup("f")
	require.NoError(t, err)
	assert.True(t, f.IsFile())
	assert.Empty(t, f.Target())
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("  "))
	require.ErrorIs(t, err, asartype.ErrFormat)

	_, err = Parse([]byte(`{"files":{"a":{"link":5}}}`))
	require.ErrorIs(t, err, asartype.ErrFormat)
	assert.False(t, errors.Is(err, asartype.ErrIO))
}

//go:build unix

package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkExecutable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o600))

	require.NoError(t, MarkExecutable(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, ExecutableMode, info.Mode().Perm())
}

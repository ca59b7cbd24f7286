//go:build unix

package platform

import "os"

// ExecutableMode is applied to extracted files flagged executable.
const ExecutableMode os.FileMode = 0o755

// MarkExecutable sets the execute bits on the file at path.
func MarkExecutable(path string) error {
	return os.Chmod(path, ExecutableMode)
}

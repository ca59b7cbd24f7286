//go:build !unix

package platform

// MarkExecutable is a no-op on platforms without POSIX permission bits.
func MarkExecutable(string) error {
	return nil
}

package asar

import "log/slog"

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger for archive events.
// A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithTempDir sets the directory CopyFileOut creates temporary files in.
// The default is os.TempDir().
func WithTempDir(dir string) Option {
	return func(a *Archive) {
		a.tempDir = dir
	}
}

// WithMaxLinkDepth bounds the number of symlink hops followed while
// resolving a path. Values <= 0 select DefaultMaxLinkDepth.
func WithMaxLinkDepth(n int) Option {
	return func(a *Archive) {
		a.maxLinkDepth = n
	}
}

// WithVerifyIntegrity checks file content against the integrity digests
// recorded in the header, for files that carry them, whenever content is
// read or extracted. Mismatches fail with ErrIntegrity.
func WithVerifyIntegrity(enabled bool) Option {
	return func(a *Archive) {
		a.verifyIntegrity = enabled
	}
}

// WithPath sets the on-disk location of the archive for archives created
// with New. Unpacked files are looked up relative to it.
func WithPath(path string) Option {
	return func(a *Archive) {
		a.path = path
	}
}

//go:build windows

package pathutil

// Separators lists the path separators accepted by Split.
const Separators = `\/`

// Package pathutil splits and joins in-archive paths.
package pathutil

import "strings"

// Split breaks path into its non-empty segments.
//
// Every separator accepted on the host is honored, so "a\\b" splits into
// two segments on Windows and one elsewhere. Leading, trailing and
// repeated separators produce no segments; "" and "/" split to nil.
func Split(path string) []string {
	return strings.FieldsFunc(path, isSeparator)
}

// Clean rejoins the segments of path with "/".
// The empty string denotes the archive root.
func Clean(path string) string {
	return strings.Join(Split(path), "/")
}

// Base returns the last segment of path, or "" for the root.
func Base(path string) string {
	parts := Split(path)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// Ext returns the extension of the last segment of path, including the dot.
// Leading dots of hidden files do not count as an extension.
func Ext(path string) string {
	base := Base(path)
	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return ""
	}
	return base[i:]
}

func isSeparator(r rune) bool {
	return strings.ContainsRune(Separators, r)
}

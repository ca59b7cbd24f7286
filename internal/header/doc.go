// Package header decodes the archive preamble and resolves paths against
// the directory tree it describes.
//
// The preamble is two length-prefixed records. The first is 8 bytes and
// carries the byte length N of the second; the second carries the JSON
// tree. File contents begin at byte 8+N, and every file offset recorded
// in the tree is relative to that point.
package header

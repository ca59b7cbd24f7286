package asartype

// FileInfo describes where a file's bytes live.
type FileInfo struct {
	// Size is the file length in bytes.
	Size uint32

	// Offset is the absolute byte offset of the file within the archive,
	// already adjusted by the header size. Zero for unpacked files.
	Offset uint64

	// Executable reports whether the file should carry execute permission
	// when materialized on disk.
	Executable bool

	// Unpacked reports whether the file lives in the sibling
	// "<archive>.unpacked" directory instead of the packed region.
	Unpacked bool

	// Integrity holds optional content digests recorded at packing time.
	Integrity *Integrity
}

// Integrity holds the block digests of a packed file.
type Integrity struct {
	// Algorithm names the digest algorithm, e.g. "SHA256".
	Algorithm string `json:"algorithm"`

	// Hash is the hex digest of the whole file.
	Hash string `json:"hash"`

	// BlockSize is the size of each block covered by Blocks.
	BlockSize int `json:"blockSize"`

	// Blocks are the hex digests of consecutive BlockSize chunks.
	Blocks []string `json:"blocks"`
}

// Stats describes a node without dereferencing a final symlink.
type Stats struct {
	FileInfo

	IsFile      bool
	IsDirectory bool
	IsLink      bool
}

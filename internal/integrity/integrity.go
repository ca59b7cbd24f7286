// Package integrity verifies file content against the SHA256 digests a
// packer may record per file: one for the whole file and one per block.
package integrity

import (
	_ "crypto/sha256" // registers the digest algorithm
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/asar/internal/asartype"
)

// Verifier checks bytes written to it against an integrity record.
// A Verifier is not safe for concurrent use.
type Verifier struct {
	want      *asartype.Integrity
	file      digest.Verifier
	block     digest.Digester
	blockLen  int
	blockIdx  int
	blockErr  error
	totalSeen int64
}

// NewVerifier returns a Verifier for rec.
func NewVerifier(rec *asartype.Integrity) (*Verifier, error) {
	if !strings.EqualFold(rec.Algorithm, "SHA256") {
		return nil, fmt.Errorf("%w: unsupported integrity algorithm %q", asartype.ErrFormat, rec.Algorithm)
	}
	want, err := parseHex(rec.Hash)
	if err != nil {
		return nil, err
	}
	if len(rec.Blocks) > 0 && rec.BlockSize <= 0 {
		return nil, fmt.Errorf("%w: integrity block size %d", asartype.ErrFormat, rec.BlockSize)
	}
	return &Verifier{
		want:  rec,
		file:  want.Verifier(),
		block: digest.SHA256.Digester(),
	}, nil
}

// Write feeds content to the verifier. It never fails; mismatches are
// reported by Verify.
func (v *Verifier) Write(p []byte) (int, error) {
	n := len(p)
	_, _ = v.file.Write(p)
	v.totalSeen += int64(n)
	if len(v.want.Blocks) == 0 {
		return n, nil
	}
	for len(p) > 0 {
		take := min(v.want.BlockSize-v.blockLen, len(p))
		_, _ = v.block.Hash().Write(p[:take])
		v.blockLen += take
		p = p[take:]
		if v.blockLen == v.want.BlockSize {
			v.finishBlock()
		}
	}
	return n, nil
}

// Verify reports whether everything written matched the record.
func (v *Verifier) Verify() error {
	if len(v.want.Blocks) > 0 {
		if v.blockLen > 0 || v.blockIdx == 0 {
			v.finishBlock()
		}
		if v.blockErr != nil {
			return v.blockErr
		}
		if v.blockIdx != len(v.want.Blocks) {
			return fmt.Errorf("%w: %d blocks read, %d recorded", asartype.ErrIntegrity, v.blockIdx, len(v.want.Blocks))
		}
	}
	if !v.file.Verified() {
		return fmt.Errorf("%w: file digest mismatch after %d bytes", asartype.ErrIntegrity, v.totalSeen)
	}
	return nil
}

func (v *Verifier) finishBlock() {
	got := v.block.Digest().Encoded()
	if v.blockErr == nil {
		switch {
		case v.blockIdx >= len(v.want.Blocks):
			v.blockErr = fmt.Errorf("%w: more blocks than recorded", asartype.ErrIntegrity)
		case !strings.EqualFold(got, v.want.Blocks[v.blockIdx]):
			v.blockErr = fmt.Errorf("%w: block %d digest mismatch", asartype.ErrIntegrity, v.blockIdx)
		}
	}
	v.blockIdx++
	v.blockLen = 0
	v.block = digest.SHA256.Digester()
}

// Compute builds an integrity record for content.
func Compute(content []byte, blockSize int) *asartype.Integrity {
	rec := &asartype.Integrity{
		Algorithm: "SHA256",
		Hash:      digest.SHA256.FromBytes(content).Encoded(),
		BlockSize: blockSize,
	}
	for off := 0; off < len(content); off += blockSize {
		end := min(off+blockSize, len(content))
		rec.Blocks = append(rec.Blocks, digest.SHA256.FromBytes(content[off:end]).Encoded())
	}
	if len(content) == 0 {
		rec.Blocks = []string{digest.SHA256.FromBytes(nil).Encoded()}
	}
	return rec
}

func parseHex(h string) (digest.Digest, error) {
	d := digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(h))
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("%w: integrity hash: %v", asartype.ErrFormat, err)
	}
	return d, nil
}

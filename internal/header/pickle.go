package header

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/asar/internal/asartype"
)

// pickleHeaderSize is the length of the u32 payload-size prefix that opens
// every record.
const pickleHeaderSize = 4

// payload returns the body of a length-prefixed record, validating that the
// declared payload size fits the buffer.
func payload(buf []byte) ([]byte, error) {
	if len(buf) < pickleHeaderSize {
		return nil, fmt.Errorf("%w: record of %d bytes is shorter than its prefix", asartype.ErrFormat, len(buf))
	}
	size := binary.LittleEndian.Uint32(buf)
	if uint64(size) > uint64(len(buf)-pickleHeaderSize) {
		return nil, fmt.Errorf("%w: record declares %d payload bytes, have %d",
			asartype.ErrFormat, size, len(buf)-pickleHeaderSize)
	}
	return buf[pickleHeaderSize : pickleHeaderSize+int(size)], nil
}

// readUint32Record decodes a record holding a single little-endian u32.
func readUint32Record(buf []byte) (uint32, error) {
	body, err := payload(buf)
	if err != nil {
		return 0, err
	}
	if len(body) < 4 {
		return 0, fmt.Errorf("%w: size record holds %d bytes", asartype.ErrFormat, len(body))
	}
	return binary.LittleEndian.Uint32(body), nil
}

// readStringRecord decodes a record holding an i32 length followed by that
// many bytes of string data.
func readStringRecord(buf []byte) ([]byte, error) {
	body, err := payload(buf)
	if err != nil {
		return nil, err
	}
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: string record holds %d bytes", asartype.ErrFormat, len(body))
	}
	n := int32(binary.LittleEndian.Uint32(body)) //nolint:gosec // sign is checked below
	if n < 0 || int64(n) > int64(len(body)-4) {
		return nil, fmt.Errorf("%w: string length %d out of range", asartype.ErrFormat, n)
	}
	return body[4 : 4+int(n)], nil
}

// EncodeUint32Record encodes v as a size record.
func EncodeUint32Record(v uint32) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf, 4)
	binary.LittleEndian.PutUint32(buf[4:], v)
	return buf
}

// EncodeStringRecord encodes s as a string record, padding the payload to a
// 4-byte boundary.
func EncodeStringRecord(s []byte) []byte {
	padded := (len(s) + 3) &^ 3
	buf := make([]byte, pickleHeaderSize+4+padded)
	binary.LittleEndian.PutUint32(buf, uint32(4+padded))   //nolint:gosec // header sizes fit in u32
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(s))) //nolint:gosec // header sizes fit in u32
	copy(buf[8:], s)
	return buf
}

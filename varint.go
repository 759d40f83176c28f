package beaker

import (
	"encoding/binary"
	"errors"
)

var errVarint = errors.New("beaker: malformed uvarint")

// EncodeUvarint returns the unsigned LEB128 encoding of n.
func EncodeUvarint(n uint64) []byte {
	return binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen64), n)
}

// DecodeUvarint decodes a uvarint from the start of b and returns the value
// and the number of bytes read.
func DecodeUvarint(b []byte) (uint64, int, error) {
	n, size := binary.Uvarint(b)
	if size <= 0 {
		return 0, 0, errVarint
	}
	return n, size, nil
}

package beaker

import (
	"bytes"
	"crypto/sha512"
	"encoding/base32"
	"fmt"
)

// ProgramDomainSeparator prefixes a program before hashing it.
const ProgramDomainSeparator = "Program"

const checksumLength = 4

var addressEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ProgramDigest returns SHA-512/256 of the domain separated program.
func ProgramDigest(program []byte) [32]byte {
	buf := make([]byte, 0, len(ProgramDomainSeparator)+len(program))
	buf = append(buf, ProgramDomainSeparator...)
	return sha512.Sum512_256(append(buf, program...))
}

// EncodeAddress renders a 32-byte public key or digest as an address: base32
// without padding of the key followed by the last four bytes of its hash.
func EncodeAddress(digest [32]byte) string {
	sum := sha512.Sum512_256(digest[:])
	buf := make([]byte, 0, len(digest)+checksumLength)
	buf = append(buf, digest[:]...)
	buf = append(buf, sum[len(sum)-checksumLength:]...)
	return addressEncoding.EncodeToString(buf)
}

// DecodeAddress parses an address and verifies its checksum.
func DecodeAddress(addr string) ([32]byte, error) {
	var out [32]byte
	raw, err := addressEncoding.DecodeString(addr)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != len(out)+checksumLength {
		return out, fmt.Errorf("%w: decoded length %d", ErrInvalidAddress, len(raw))
	}
	copy(out[:], raw)
	sum := sha512.Sum512_256(out[:])
	if !bytes.Equal(sum[len(sum)-checksumLength:], raw[len(out):]) {
		return out, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	return out, nil
}

// LogicSigAddress returns the account address of a logic signature program.
func LogicSigAddress(program []byte) string {
	return EncodeAddress(ProgramDigest(program))
}

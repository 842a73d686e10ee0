package crdtpath

import "lukechampine.com/blake3"

// DotHash is the 256-bit content hash of a path's canonical encoding,
// excluding its signature. Two paths are equal iff their dot-hashes are
// equal.
type DotHash [32]byte

// Hash computes the dot-hash of a path.
func Hash(p Path) (DotHash, error) {
	enc, err := EncodeUnsigned(p)
	if err != nil {
		return DotHash{}, err
	}
	return HashBytes(enc), nil
}

// HashBytes computes a BLAKE3-256 digest of arbitrary canonical-encoded
// bytes. Exposed separately so callers that already hold an encoded path
// (e.g. off the wire) need not re-encode it.
func HashBytes(b []byte) DotHash {
	var h DotHash
	sum := blake3.Sum256(b)
	copy(h[:], sum[:])
	return h
}

func (h DotHash) String() string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(h)*2)
	for i, b := range h {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0xf]
	}
	return string(out)
}

// Bytes returns the hash's raw 32 bytes.
func (h DotHash) Bytes() []byte { return h[:] }

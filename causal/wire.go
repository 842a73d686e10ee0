package causal

import (
	"encoding/binary"

	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/tlfserr"
)

// EncodeCausal serializes a Causal to its wire format:
// { store: [Path], expired: [DotHash], schema_version: u32 }, each list
// length-prefixed.
func EncodeCausal(c Causal) ([]byte, error) {
	var out []byte
	out = appendU32(out, uint32(len(c.Store)))
	for _, p := range c.Store {
		enc, err := crdtpath.Encode(p)
		if err != nil {
			return nil, err
		}
		out = appendU32(out, uint32(len(enc)))
		out = append(out, enc...)
	}
	out = appendHashList(out, c.Expired)
	out = appendU32(out, uint32(c.SchemaVersion))
	return out, nil
}

// DecodeCausal parses the wire format produced by EncodeCausal.
func DecodeCausal(data []byte) (Causal, error) {
	pos := 0
	n, err := readU32(data, &pos)
	if err != nil {
		return Causal{}, err
	}
	store := make([]crdtpath.Path, 0, n)
	for i := uint32(0); i < n; i++ {
		ln, err := readU32(data, &pos)
		if err != nil {
			return Causal{}, err
		}
		if pos+int(ln) > len(data) {
			return Causal{}, tlfserr.MalformedPath{Reason: "truncated causal store entry"}
		}
		p, err := crdtpath.Decode(data[pos : pos+int(ln)])
		if err != nil {
			return Causal{}, err
		}
		pos += int(ln)
		store = append(store, p)
	}
	expired, newPos, err := readHashList(data, pos)
	if err != nil {
		return Causal{}, err
	}
	pos = newPos
	version, err := readU32(data, &pos)
	if err != nil {
		return Causal{}, err
	}
	if pos != len(data) {
		return Causal{}, tlfserr.MalformedPath{Reason: "trailing bytes after causal"}
	}
	return Causal{Store: store, Expired: expired, SchemaVersion: int(version)}, nil
}

func encodeHashLists(active, expired []crdtpath.DotHash) []byte {
	var out []byte
	out = appendHashList(out, active)
	out = appendHashList(out, expired)
	return out
}

func decodeHashLists(data []byte) (active, expired []crdtpath.DotHash, err error) {
	pos := 0
	active, pos, err = readHashList(data, pos)
	if err != nil {
		return nil, nil, err
	}
	expired, pos, err = readHashList(data, pos)
	if err != nil {
		return nil, nil, err
	}
	if pos != len(data) {
		return nil, nil, tlfserr.MalformedPath{Reason: "trailing bytes after causal context"}
	}
	return active, expired, nil
}

func appendU32(out []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(out, tmp[:]...)
}

func readU32(data []byte, pos *int) (uint32, error) {
	if *pos+4 > len(data) {
		return 0, tlfserr.MalformedPath{Reason: "unexpected end of input"}
	}
	v := binary.LittleEndian.Uint32(data[*pos : *pos+4])
	*pos += 4
	return v, nil
}

func appendHashList(out []byte, hashes []crdtpath.DotHash) []byte {
	out = appendU32(out, uint32(len(hashes)))
	for _, h := range hashes {
		out = append(out, h[:]...)
	}
	return out
}

func readHashList(data []byte, pos int) ([]crdtpath.DotHash, int, error) {
	n, err := readU32(data, &pos)
	if err != nil {
		return nil, pos, err
	}
	out := make([]crdtpath.DotHash, 0, n)
	for i := uint32(0); i < n; i++ {
		if pos+32 > len(data) {
			return nil, pos, tlfserr.MalformedPath{Reason: "truncated hash list"}
		}
		var h crdtpath.DotHash
		copy(h[:], data[pos:pos+32])
		pos += 32
		out = append(out, h)
	}
	return out, pos, nil
}

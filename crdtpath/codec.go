// Canonical binary encoding of Path: length-prefixed label sequences with
// little-endian fixed-width integers and UTF-8 strings.
// Label order is structural, never lexicographic, and integer widths are
// fixed so that two encoders never disagree on the bytes for the same
// path.
package crdtpath

import (
	"encoding/binary"
	"math"

	"github.com/cloudpeers/tlfs/tlfserr"
	"github.com/cloudpeers/tlfs/tlfsid"
)

const (
	idSize    = 32
	nonceSize = 16
)

type writer struct {
	buf []byte
}

func (w *writer) byte(b byte) { w.buf = append(w.buf, b) }

func (w *writer) bytesFixed(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *writer) u64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *writer) i64(v int64) { w.u64(uint64(v)) }

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) bytesVar(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Encode serializes a path into its canonical binary form, including the
// trailing signature; EncodeUnsigned omits it.
func Encode(p Path) ([]byte, error) {
	return encode(p, true)
}

// EncodeUnsigned serializes the path without its trailing signature. This
// is both the payload signed by Sign and the input hashed by Hash.
func EncodeUnsigned(p Path) ([]byte, error) {
	return encode(p, false)
}

func encode(p Path, includeSig bool) ([]byte, error) {
	w := &writer{}
	w.bytesFixed(p.Doc[:])
	if len(p.Labels) == 0 {
		return nil, tlfserr.MalformedPath{Reason: "path has no labels"}
	}
	// No label-count prefix: the label sequence is self-delimiting (each
	// label's own encoding carries its length, and exactly the last label
	// is a terminal kind), which is what lets the store index raw
	// canonical bytes in a prefix-scannable trie.
	for i, l := range p.Labels {
		terminal := i == len(p.Labels)-1
		if terminal != l.Kind.IsTerminal() {
			if terminal {
				return nil, tlfserr.MalformedPath{Reason: "terminal label must be ewflag, mvreg or policy"}
			}
			return nil, tlfserr.MalformedPath{Reason: "only the terminal label may be ewflag, mvreg or policy"}
		}
		if err := encodeLabel(w, l); err != nil {
			return nil, err
		}
	}
	w.bytesFixed(p.Author[:])
	if includeSig {
		w.bytesVar(p.Sig)
	}
	return w.buf, nil
}

// EncodePrefix encodes a document id plus a bare navigational label
// prefix (no terminal label required) into the same canonical byte space
// used by Encode/EncodeUnsigned. Because the label sequence is
// self-delimiting and the author/signature always follow every label, the
// result is always a true byte-prefix of any full path sharing the same
// document and navigational steps — which is what orstore uses to drive
// prefix scans over its trie.
func EncodePrefix(doc tlfsid.DocID, labels []Label) ([]byte, error) {
	w := &writer{}
	w.bytesFixed(doc[:])
	for _, l := range labels {
		if err := encodeLabel(w, l); err != nil {
			return nil, err
		}
	}
	return w.buf, nil
}

func encodeLabel(w *writer, l Label) error {
	w.byte(byte(l.Kind))
	switch l.Kind {
	case LabelField:
		w.str(l.Field)
	case LabelKeyBool:
		if l.KeyBool {
			w.byte(1)
		} else {
			w.byte(0)
		}
	case LabelKeyU64:
		w.u64(l.KeyU64)
	case LabelKeyI64:
		w.i64(l.KeyI64)
	case LabelKeyStr:
		w.str(l.KeyStr)
	case LabelEWFlag:
		w.bytesFixed(l.Nonce[:])
	case LabelMVReg:
		w.bytesFixed(l.Nonce[:])
		if err := encodePrimitive(w, l.Value); err != nil {
			return err
		}
	case LabelPolicy:
		if l.Policy == nil {
			return tlfserr.MalformedPath{Reason: "policy label missing atom"}
		}
		return encodePolicyAtom(w, *l.Policy)
	default:
		return tlfserr.MalformedPath{Reason: "unknown label kind"}
	}
	return nil
}

func encodePrimitive(w *writer, p Primitive) error {
	w.byte(byte(p.Kind))
	switch p.Kind {
	case PrimBool:
		if p.B {
			w.byte(1)
		} else {
			w.byte(0)
		}
	case PrimU64:
		w.u64(p.U)
	case PrimI64:
		w.i64(p.I)
	case PrimStr:
		w.str(p.S)
	default:
		return tlfserr.MalformedPath{Reason: "unknown primitive kind"}
	}
	return nil
}

func encodeActor(w *writer, a Actor) error {
	w.byte(byte(a.Kind))
	switch a.Kind {
	case ActorPeer:
		w.bytesFixed(a.Peer[:])
	case ActorAnonymous:
	case ActorUnbound:
		w.u32(a.Var)
	default:
		return tlfserr.MalformedPath{Reason: "unknown actor kind"}
	}
	return nil
}

// encodeTargetPath and decodeTargetPath (de)serialize a policy atom's
// target/cond_target. Unlike a full stored path, a policy target names a
// subtree for prefix-containment (⊒) purposes and is never required to
// end in a terminal ewflag/mvreg/policy label — it may even be empty,
// naming the whole document (the root own-grant's target). encode/decode
// enforce the terminal-label invariant on ordinary stored paths, which
// does not apply here, so targets get their own bare doc+labels codec.
func encodeTargetPath(p Path) ([]byte, error) {
	return EncodePrefix(p.Doc, p.Labels)
}

func decodeTargetPath(data []byte) (Path, error) {
	r := &reader{buf: data}
	var p Path
	docBytes, err := r.bytesFixed(idSize)
	if err != nil {
		return Path{}, err
	}
	copy(p.Doc[:], docBytes)
	for r.remaining() > 0 {
		l, err := decodeLabel(r)
		if err != nil {
			return Path{}, err
		}
		p.Labels = append(p.Labels, l)
	}
	return p, nil
}

func encodePolicyAtom(w *writer, a PolicyAtom) error {
	w.byte(byte(a.Kind))
	switch a.Kind {
	case AtomSays:
		if err := encodeActor(w, a.Actor); err != nil {
			return err
		}
		w.byte(byte(a.Perm))
		sub, err := encodeTargetPath(a.Target)
		if err != nil {
			return err
		}
		w.bytesVar(sub)
	case AtomSaysIf:
		if err := encodeActor(w, a.Actor); err != nil {
			return err
		}
		w.byte(byte(a.Perm))
		sub, err := encodeTargetPath(a.Target)
		if err != nil {
			return err
		}
		w.bytesVar(sub)
		if err := encodeActor(w, a.CondActor); err != nil {
			return err
		}
		w.byte(byte(a.CondPerm))
		condSub, err := encodeTargetPath(a.CondTarget)
		if err != nil {
			return err
		}
		w.bytesVar(condSub)
	case AtomRevokes:
		w.bytesFixed(a.Revoked[:])
	default:
		return tlfserr.MalformedPath{Reason: "unknown policy atom kind"}
	}
	return nil
}

// reader decodes the canonical binary form produced by encode.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, tlfserr.MalformedPath{Reason: "unexpected end of input"}
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytesFixed(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, tlfserr.MalformedPath{Reason: "unexpected end of input"}
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytesFixed(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.bytesFixed(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if n > math.MaxUint32/2 {
		return "", tlfserr.MalformedPath{Reason: "string length out of range"}
	}
	b, err := r.bytesFixed(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) bytesVar() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if n > math.MaxUint32/2 {
		return nil, tlfserr.MalformedPath{Reason: "byte length out of range"}
	}
	b, err := r.bytesFixed(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// Decode parses the canonical binary form of a signed path. It fails with
// tlfserr.MalformedPath on any non-canonical input, including trailing
// bytes.
func Decode(data []byte) (Path, error) {
	return decode(data, true)
}

// DecodeUnsigned parses the canonical binary form of a path encoded
// without a trailing signature.
func DecodeUnsigned(data []byte) (Path, error) {
	return decode(data, false)
}

func decode(data []byte, hasSig bool) (Path, error) {
	r := &reader{buf: data}
	var p Path
	docBytes, err := r.bytesFixed(idSize)
	if err != nil {
		return Path{}, err
	}
	copy(p.Doc[:], docBytes)

	// The label sequence carries no length prefix: decode labels until one
	// comes back terminal (ewflag/mvreg/policy), which by construction is
	// always exactly the last one. This keeps the encoding a literal byte
	// prefix of any longer path sharing the same navigational steps, which
	// is what lets orstore index raw canonical bytes in a prefix-scannable
	// trie.
	for {
		l, err := decodeLabel(r)
		if err != nil {
			return Path{}, err
		}
		p.Labels = append(p.Labels, l)
		if l.Kind.IsTerminal() {
			break
		}
	}

	authorBytes, err := r.bytesFixed(idSize)
	if err != nil {
		return Path{}, err
	}
	copy(p.Author[:], authorBytes)

	if hasSig {
		sig, err := r.bytesVar()
		if err != nil {
			return Path{}, err
		}
		p.Sig = sig
	}

	if r.remaining() != 0 {
		return Path{}, tlfserr.MalformedPath{Reason: "trailing bytes after path"}
	}
	return p, nil
}

func decodeLabel(r *reader) (Label, error) {
	kindByte, err := r.byte()
	if err != nil {
		return Label{}, err
	}
	kind := LabelKind(kindByte)
	switch kind {
	case LabelField:
		s, err := r.str()
		if err != nil {
			return Label{}, err
		}
		return Field(s), nil
	case LabelKeyBool:
		b, err := r.byte()
		if err != nil {
			return Label{}, err
		}
		if b > 1 {
			return Label{}, tlfserr.MalformedPath{Reason: "invalid bool byte"}
		}
		return KeyBool(b == 1), nil
	case LabelKeyU64:
		v, err := r.u64()
		if err != nil {
			return Label{}, err
		}
		return KeyU64(v), nil
	case LabelKeyI64:
		v, err := r.i64()
		if err != nil {
			return Label{}, err
		}
		return KeyI64(v), nil
	case LabelKeyStr:
		s, err := r.str()
		if err != nil {
			return Label{}, err
		}
		return KeyStr(s), nil
	case LabelEWFlag:
		b, err := r.bytesFixed(nonceSize)
		if err != nil {
			return Label{}, err
		}
		var nonce tlfsid.Nonce
		copy(nonce[:], b)
		return EWFlagLabel(nonce), nil
	case LabelMVReg:
		b, err := r.bytesFixed(nonceSize)
		if err != nil {
			return Label{}, err
		}
		var nonce tlfsid.Nonce
		copy(nonce[:], b)
		val, err := decodePrimitive(r)
		if err != nil {
			return Label{}, err
		}
		return MVRegLabel(nonce, val), nil
	case LabelPolicy:
		atom, err := decodePolicyAtom(r)
		if err != nil {
			return Label{}, err
		}
		return PolicyLabel(atom), nil
	default:
		return Label{}, tlfserr.MalformedPath{Reason: "unknown label tag"}
	}
}

func decodePrimitive(r *reader) (Primitive, error) {
	kindByte, err := r.byte()
	if err != nil {
		return Primitive{}, err
	}
	switch PrimitiveKind(kindByte) {
	case PrimBool:
		b, err := r.byte()
		if err != nil {
			return Primitive{}, err
		}
		if b > 1 {
			return Primitive{}, tlfserr.MalformedPath{Reason: "invalid bool byte"}
		}
		return PrimBoolV(b == 1), nil
	case PrimU64:
		v, err := r.u64()
		if err != nil {
			return Primitive{}, err
		}
		return PrimU64V(v), nil
	case PrimI64:
		v, err := r.i64()
		if err != nil {
			return Primitive{}, err
		}
		return PrimI64V(v), nil
	case PrimStr:
		s, err := r.str()
		if err != nil {
			return Primitive{}, err
		}
		return PrimStrV(s), nil
	default:
		return Primitive{}, tlfserr.MalformedPath{Reason: "unknown primitive tag"}
	}
}

func decodeActor(r *reader) (Actor, error) {
	kindByte, err := r.byte()
	if err != nil {
		return Actor{}, err
	}
	switch ActorKind(kindByte) {
	case ActorPeer:
		b, err := r.bytesFixed(idSize)
		if err != nil {
			return Actor{}, err
		}
		peer, err := tlfsid.PeerIDFromBytes(b)
		if err != nil {
			return Actor{}, tlfserr.MalformedPath{Reason: err.Error()}
		}
		return PeerActor(peer), nil
	case ActorAnonymous:
		return AnonymousActor, nil
	case ActorUnbound:
		v, err := r.u32()
		if err != nil {
			return Actor{}, err
		}
		return UnboundActor(v), nil
	default:
		return Actor{}, tlfserr.MalformedPath{Reason: "unknown actor tag"}
	}
}

func decodePolicyAtom(r *reader) (PolicyAtom, error) {
	kindByte, err := r.byte()
	if err != nil {
		return PolicyAtom{}, err
	}
	switch PolicyAtomKind(kindByte) {
	case AtomSays:
		actor, err := decodeActor(r)
		if err != nil {
			return PolicyAtom{}, err
		}
		permByte, err := r.byte()
		if err != nil {
			return PolicyAtom{}, err
		}
		sub, err := r.bytesVar()
		if err != nil {
			return PolicyAtom{}, err
		}
		target, err := decodeTargetPath(sub)
		if err != nil {
			return PolicyAtom{}, err
		}
		return Says(actor, Perm(permByte), target), nil
	case AtomSaysIf:
		actor, err := decodeActor(r)
		if err != nil {
			return PolicyAtom{}, err
		}
		permByte, err := r.byte()
		if err != nil {
			return PolicyAtom{}, err
		}
		sub, err := r.bytesVar()
		if err != nil {
			return PolicyAtom{}, err
		}
		target, err := decodeTargetPath(sub)
		if err != nil {
			return PolicyAtom{}, err
		}
		condActor, err := decodeActor(r)
		if err != nil {
			return PolicyAtom{}, err
		}
		condPermByte, err := r.byte()
		if err != nil {
			return PolicyAtom{}, err
		}
		condSub, err := r.bytesVar()
		if err != nil {
			return PolicyAtom{}, err
		}
		condTarget, err := decodeTargetPath(condSub)
		if err != nil {
			return PolicyAtom{}, err
		}
		return SaysIf(actor, Perm(permByte), target, condActor, Perm(condPermByte), condTarget), nil
	case AtomRevokes:
		b, err := r.bytesFixed(32)
		if err != nil {
			return PolicyAtom{}, err
		}
		var hash DotHash
		copy(hash[:], b)
		return Revokes(hash), nil
	default:
		return PolicyAtom{}, tlfserr.MalformedPath{Reason: "unknown policy atom tag"}
	}
}

package crdtpath

import (
	"fmt"

	"github.com/cloudpeers/tlfs/tlfsid"
)

// LabelKind tags the variant carried by a Label, mirroring the grammar:
//
//	label := field(str) | key(prim) | ewflag(nonce)
//	       | mvreg(nonce, prim) | policy(policy_atom)
//
// The document id is not a label; it is carried in Path.Doc.
type LabelKind byte

const (
	LabelField LabelKind = iota
	LabelKeyBool
	LabelKeyU64
	LabelKeyI64
	LabelKeyStr
	LabelEWFlag
	LabelMVReg
	LabelPolicy
)

// IsTerminal reports whether a label of this kind may end a path. Only
// ewflag, mvreg and policy labels are terminal; field and key labels are
// structural navigation steps.
func (k LabelKind) IsTerminal() bool {
	return k == LabelEWFlag || k == LabelMVReg || k == LabelPolicy
}

func (k LabelKind) String() string {
	switch k {
	case LabelField:
		return "field"
	case LabelKeyBool:
		return "key_bool"
	case LabelKeyU64:
		return "key_u64"
	case LabelKeyI64:
		return "key_i64"
	case LabelKeyStr:
		return "key_str"
	case LabelEWFlag:
		return "ewflag"
	case LabelMVReg:
		return "mvreg"
	case LabelPolicy:
		return "policy"
	default:
		return "unknown"
	}
}

// Label is a single step in a path's label sequence. Only the fields
// relevant to Kind are meaningful; the rest are zero.
type Label struct {
	Kind LabelKind

	Field string

	KeyBool bool
	KeyU64  uint64
	KeyI64  int64
	KeyStr  string

	// Nonce distinguishes concurrently-authored EWFlag and MVReg atoms at
	// the same prefix.
	Nonce tlfsid.Nonce
	// Value carries the MVReg's payload. Unused by other kinds.
	Value Primitive

	// Policy carries the embedded policy atom. Non-nil iff Kind ==
	// LabelPolicy.
	Policy *PolicyAtom
}

// Field builds a struct-field navigation label.
func Field(name string) Label { return Label{Kind: LabelField, Field: name} }

// KeyBool, KeyU64, KeyI64 and KeyStr build table-key navigation labels.
func KeyBool(v bool) Label   { return Label{Kind: LabelKeyBool, KeyBool: v} }
func KeyU64(v uint64) Label  { return Label{Kind: LabelKeyU64, KeyU64: v} }
func KeyI64(v int64) Label   { return Label{Kind: LabelKeyI64, KeyI64: v} }
func KeyStr(v string) Label  { return Label{Kind: LabelKeyStr, KeyStr: v} }

// EWFlagLabel builds a terminal enable-wins-flag label with a fresh or
// supplied nonce.
func EWFlagLabel(nonce tlfsid.Nonce) Label {
	return Label{Kind: LabelEWFlag, Nonce: nonce}
}

// MVRegLabel builds a terminal multi-value-register label.
func MVRegLabel(nonce tlfsid.Nonce, value Primitive) Label {
	return Label{Kind: LabelMVReg, Nonce: nonce, Value: value}
}

// PolicyLabel builds a terminal policy-statement label.
func PolicyLabel(atom PolicyAtom) Label {
	return Label{Kind: LabelPolicy, Policy: &atom}
}

// KeyPrimitive returns the key label's value as a Primitive, for code that
// wants to treat all four key variants uniformly (e.g. map iteration).
func (l Label) KeyPrimitive() (Primitive, bool) {
	switch l.Kind {
	case LabelKeyBool:
		return PrimBoolV(l.KeyBool), true
	case LabelKeyU64:
		return PrimU64V(l.KeyU64), true
	case LabelKeyI64:
		return PrimI64V(l.KeyI64), true
	case LabelKeyStr:
		return PrimStrV(l.KeyStr), true
	default:
		return Primitive{}, false
	}
}

// Equal compares two labels structurally. Two policy labels compare equal
// only when the canonical encodings of their atoms are identical.
func (l Label) Equal(o Label) bool {
	if l.Kind != o.Kind {
		return false
	}
	switch l.Kind {
	case LabelField:
		return l.Field == o.Field
	case LabelKeyBool:
		return l.KeyBool == o.KeyBool
	case LabelKeyU64:
		return l.KeyU64 == o.KeyU64
	case LabelKeyI64:
		return l.KeyI64 == o.KeyI64
	case LabelKeyStr:
		return l.KeyStr == o.KeyStr
	case LabelEWFlag:
		return l.Nonce == o.Nonce
	case LabelMVReg:
		return l.Nonce == o.Nonce && l.Value.Equal(o.Value)
	case LabelPolicy:
		lb, _ := Encode(Path{Labels: []Label{l}})
		rb, _ := Encode(Path{Labels: []Label{o}})
		return string(lb) == string(rb)
	default:
		return false
	}
}

func (l Label) String() string {
	switch l.Kind {
	case LabelField:
		return fmt.Sprintf(".%s", l.Field)
	case LabelKeyBool, LabelKeyU64, LabelKeyI64, LabelKeyStr:
		p, _ := l.KeyPrimitive()
		return fmt.Sprintf("[%s]", p)
	case LabelEWFlag:
		return fmt.Sprintf("!ewflag(%x)", l.Nonce)
	case LabelMVReg:
		return fmt.Sprintf("!mvreg(%x,%s)", l.Nonce, l.Value)
	case LabelPolicy:
		return "!policy(...)"
	default:
		return "<invalid label>"
	}
}

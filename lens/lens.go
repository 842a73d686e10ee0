// Package lens implements the bidirectional schema-lens algebra used to
// carry a path between two versions of the same document schema: every
// lens variant is invertible, so a chain of lenses can be walked forward to
// reach a newer schema or reversed to reach an older one, the way the
// source material's cambria and crdt lens modules do it.
//
// lens depends only on crdtpath; it knows nothing about the schema
// package's Node/Registry types, so schema can build on top of lens
// without creating an import cycle.
package lens

import (
	"fmt"

	"github.com/cloudpeers/tlfs/crdtpath"
)

// Kind names the shape a Make/Destroy lens creates or removes.
type Kind byte

const (
	KindNull Kind = iota
	KindStruct
	KindTable
	KindArray
	KindEWFlag
	KindMVReg
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindStruct:
		return "struct"
	case KindTable:
		return "table"
	case KindArray:
		return "array"
	case KindEWFlag:
		return "ewflag"
	case KindMVReg:
		return "mvreg"
	default:
		return "unknown"
	}
}

// Op tags which Lens variant is carried.
type Op byte

const (
	OpMake Op = iota
	OpDestroy
	OpAddProperty
	OpRemoveProperty
	OpRenameProperty
	OpHoistProperty
	OpPlungeProperty
	OpWrap
	OpHead
	OpLensIn
	OpLensMap
	OpConvert
)

// ConvertEntry is one (from, to) pair of a Convert lens's lookup table.
type ConvertEntry struct {
	From crdtpath.Primitive
	To   crdtpath.Primitive
}

// Lens is one elementary, invertible schema edit. Only the fields relevant
// to Op are meaningful.
type Lens struct {
	Op Op

	Kind Kind // Make, Destroy

	Prop    string // AddProperty, RemoveProperty, LensIn
	Rename  string // RenameProperty.to, HoistProperty.target, PlungeProperty.target
	Host    string // HoistProperty, PlungeProperty
	Inner   *Lens  // LensIn, LensMap
	RegType crdtpath.PrimitiveKind
	RegTo   crdtpath.PrimitiveKind
	Convert []ConvertEntry
}

func Make(k Kind) Lens    { return Lens{Op: OpMake, Kind: k} }
func Destroy(k Kind) Lens { return Lens{Op: OpDestroy, Kind: k} }

func AddProperty(prop string) Lens    { return Lens{Op: OpAddProperty, Prop: prop} }
func RemoveProperty(prop string) Lens { return Lens{Op: OpRemoveProperty, Prop: prop} }

func RenameProperty(from, to string) Lens {
	return Lens{Op: OpRenameProperty, Prop: from, Rename: to}
}

func HoistProperty(host, target string) Lens {
	return Lens{Op: OpHoistProperty, Host: host, Rename: target}
}

func PlungeProperty(host, target string) Lens {
	return Lens{Op: OpPlungeProperty, Host: host, Rename: target}
}

// Wrap turns a bare value into a one-element array holding that value.
func Wrap() Lens { return Lens{Op: OpWrap} }

// Head is Wrap's inverse: it reads the first element back out of a
// one-element array.
func Head() Lens { return Lens{Op: OpHead} }

// LensIn focuses a lens onto the named struct field.
func LensIn(prop string, inner Lens) Lens {
	return Lens{Op: OpLensIn, Prop: prop, Inner: &inner}
}

// LensMap focuses a lens onto every element of a table or array.
func LensMap(inner Lens) Lens {
	return Lens{Op: OpLensMap, Inner: &inner}
}

// Convert rewrites an MVReg's primitive kind from `from` to `to`, using
// table for values with an explicit mapping and the zero value of `to`
// for everything else.
func Convert(from, to crdtpath.PrimitiveKind, table []ConvertEntry) Lens {
	return Lens{Op: OpConvert, RegType: from, RegTo: to, Convert: table}
}

// Reverse returns the lens that undoes the effect of l.
func (l Lens) Reverse() Lens {
	switch l.Op {
	case OpMake:
		return Destroy(l.Kind)
	case OpDestroy:
		return Make(l.Kind)
	case OpAddProperty:
		return RemoveProperty(l.Prop)
	case OpRemoveProperty:
		return AddProperty(l.Prop)
	case OpRenameProperty:
		return RenameProperty(l.Rename, l.Prop)
	case OpHoistProperty:
		return PlungeProperty(l.Host, l.Rename)
	case OpPlungeProperty:
		return HoistProperty(l.Host, l.Rename)
	case OpWrap:
		return Head()
	case OpHead:
		return Wrap()
	case OpLensIn:
		return LensIn(l.Prop, l.Inner.Reverse())
	case OpLensMap:
		return LensMap(l.Inner.Reverse())
	case OpConvert:
		reversed := make([]ConvertEntry, len(l.Convert))
		for i, e := range l.Convert {
			reversed[i] = ConvertEntry{From: e.To, To: e.From}
		}
		return Convert(l.RegTo, l.RegType, reversed)
	default:
		panic(fmt.Sprintf("lens: unknown op %d", l.Op))
	}
}

func (l Lens) String() string {
	switch l.Op {
	case OpMake:
		return fmt.Sprintf("make(%s)", l.Kind)
	case OpDestroy:
		return fmt.Sprintf("destroy(%s)", l.Kind)
	case OpAddProperty:
		return fmt.Sprintf("add_property(%s)", l.Prop)
	case OpRemoveProperty:
		return fmt.Sprintf("remove_property(%s)", l.Prop)
	case OpRenameProperty:
		return fmt.Sprintf("rename_property(%s, %s)", l.Prop, l.Rename)
	case OpHoistProperty:
		return fmt.Sprintf("hoist_property(%s, %s)", l.Host, l.Rename)
	case OpPlungeProperty:
		return fmt.Sprintf("plunge_property(%s, %s)", l.Host, l.Rename)
	case OpWrap:
		return "wrap"
	case OpHead:
		return "head"
	case OpLensIn:
		return fmt.Sprintf("lens_in(%s, %s)", l.Prop, l.Inner)
	case OpLensMap:
		return fmt.Sprintf("lens_map(%s)", l.Inner)
	case OpConvert:
		return fmt.Sprintf("convert(%s -> %s)", l.RegType, l.RegTo)
	default:
		return "unknown"
	}
}

// Lenses is the ordered list of edits that reaches one schema version from
// its predecessor.
type Lenses []Lens

// Transform returns the lens sequence that carries a path from the schema
// reached by a to the schema reached by b: the common prefix is skipped,
// a's remaining tail is reversed, then b's remaining tail is applied
// forward. Mirrors the source material's ArchivedLenses::transform.
func Transform(a, b Lenses) Lenses {
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix].Equal(b[prefix]) {
		prefix++
	}
	out := make(Lenses, 0, len(a)+len(b)-2*prefix)
	for i := len(a) - 1; i >= prefix; i-- {
		out = append(out, a[i].Reverse())
	}
	for i := prefix; i < len(b); i++ {
		out = append(out, b[i])
	}
	return out
}

// Equal reports structural equality, used by Transform to find the common
// prefix between two lens chains.
func (l Lens) Equal(o Lens) bool {
	if l.Op != o.Op {
		return false
	}
	switch l.Op {
	case OpMake, OpDestroy:
		return l.Kind == o.Kind
	case OpAddProperty, OpRemoveProperty:
		return l.Prop == o.Prop
	case OpRenameProperty:
		return l.Prop == o.Prop && l.Rename == o.Rename
	case OpHoistProperty, OpPlungeProperty:
		return l.Host == o.Host && l.Rename == o.Rename
	case OpWrap, OpHead:
		return true
	case OpLensIn:
		return l.Prop == o.Prop && l.Inner.Equal(*o.Inner)
	case OpLensMap:
		return l.Inner.Equal(*o.Inner)
	case OpConvert:
		if l.RegType != o.RegType || l.RegTo != o.RegTo || len(l.Convert) != len(o.Convert) {
			return false
		}
		for i := range l.Convert {
			if l.Convert[i] != o.Convert[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

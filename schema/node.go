// Package schema implements the node-kind tree and named, versioned
// registry: a schema is a tree of Struct/Table/Array/EWFlag/MVReg/
// Policy nodes that a path's label sequence is validated against.
package schema

import (
	"fmt"

	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/lens"
)

// NodeKind tags the variant carried by a Node.
type NodeKind byte

const (
	NodeStruct NodeKind = iota
	NodeTable
	NodeArray
	NodeEWFlag
	NodeMVReg
	NodePolicy
)

func (k NodeKind) String() string {
	switch k {
	case NodeStruct:
		return "struct"
	case NodeTable:
		return "table"
	case NodeArray:
		return "array"
	case NodeEWFlag:
		return "ewflag"
	case NodeMVReg:
		return "mvreg"
	case NodePolicy:
		return "policy"
	default:
		return "unknown"
	}
}

// PrimitiveType names the primitive a Table key or MVReg value carries.
type PrimitiveType byte

const (
	TypeBool PrimitiveType = iota
	TypeU64
	TypeI64
	TypeStr
)

func (t PrimitiveType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeU64:
		return "u64"
	case TypeI64:
		return "i64"
	case TypeStr:
		return "str"
	default:
		return "unknown"
	}
}

// Matches reports whether p's primitive kind matches t.
func (t PrimitiveType) Matches(p crdtpath.Primitive) bool {
	switch t {
	case TypeBool:
		return p.Kind == crdtpath.PrimBool
	case TypeU64:
		return p.Kind == crdtpath.PrimU64
	case TypeI64:
		return p.Kind == crdtpath.PrimI64
	case TypeStr:
		return p.Kind == crdtpath.PrimStr
	default:
		return false
	}
}

func (t PrimitiveType) labelKind() crdtpath.LabelKind {
	switch t {
	case TypeBool:
		return crdtpath.LabelKeyBool
	case TypeU64:
		return crdtpath.LabelKeyU64
	case TypeI64:
		return crdtpath.LabelKeyI64
	default:
		return crdtpath.LabelKeyStr
	}
}

// Node is one node of a schema tree. Only the fields relevant to Kind are
// meaningful.
type Node struct {
	Kind NodeKind

	// Struct
	Fields map[string]*Node

	// Table
	KeyType PrimitiveType
	Value   *Node

	// Array: elements are keyed by a position identifier encoded as a
	// string label (fractional indexing), so Array validation fixes the
	// label kind to LabelKeyStr without needing a KeyType.
	Elem *Node

	// MVReg
	RegType PrimitiveType
}

// Struct builds a struct node from its field map.
func Struct(fields map[string]*Node) *Node { return &Node{Kind: NodeStruct, Fields: fields} }

// Table builds a keyed-map node.
func Table(keyType PrimitiveType, value *Node) *Node {
	return &Node{Kind: NodeTable, KeyType: keyType, Value: value}
}

// Array builds an ordered-array node.
func Array(elem *Node) *Node { return &Node{Kind: NodeArray, Elem: elem} }

// EWFlag builds a leaf enable-wins-flag node.
func EWFlag() *Node { return &Node{Kind: NodeEWFlag} }

// MVReg builds a leaf multi-value-register node carrying values of regType.
func MVReg(regType PrimitiveType) *Node { return &Node{Kind: NodeMVReg, RegType: regType} }

// Policy builds a leaf policy-statement node.
func Policy() *Node { return &Node{Kind: NodePolicy} }

// String renders the node kind and, for container kinds, a short summary
// of their children (a struct's field count, a table's key type and value
// node, an array's element node); field names are not listed. Useful for
// error messages and debugging, not a canonical form.
func (n *Node) String() string {
	switch n.Kind {
	case NodeStruct:
		return fmt.Sprintf("struct{%d fields}", len(n.Fields))
	case NodeTable:
		return fmt.Sprintf("table[%s]%s", n.KeyType, n.Value)
	case NodeArray:
		return fmt.Sprintf("array[%s]", n.Elem)
	case NodeMVReg:
		return fmt.Sprintf("mvreg<%s>", n.RegType)
	default:
		return n.Kind.String()
	}
}

// Version is one point in a schema's evolution: the node tree at that
// point, and the ordered list of lenses that reach it from the schema's
// very first version.
type Version struct {
	Root   *Node
	Lenses []lens.Lens
}

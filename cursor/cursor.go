// Package cursor implements the navigation layer on top of orstore and
// policy: a Cursor is a schema-checked pointer into one document's label
// tree that turns struct/map/array/flag/register operations into signed,
// policy-authorized Causal deltas.
//
// A Cursor never mutates its store directly. Every write method returns
// the delta it would take to perform the edit; the caller joins it (via
// sdk.Doc, typically) so that network broadcast and local application
// stay on the same path.
package cursor

import (
	"sort"

	"github.com/cloudpeers/tlfs/causal"
	"github.com/cloudpeers/tlfs/crdtpath"
	"github.com/cloudpeers/tlfs/orstore"
	"github.com/cloudpeers/tlfs/policy"
	"github.com/cloudpeers/tlfs/schema"
	"github.com/cloudpeers/tlfs/sign"
	"github.com/cloudpeers/tlfs/tlfserr"
	"github.com/cloudpeers/tlfs/tlfsid"
)

// Cursor points at one location in a document's schema-shaped label tree.
// Navigation methods return a new Cursor at a child location; they never
// mutate the receiver, so a Cursor can be freely cloned and held across
// several navigation paths from a common ancestor.
type Cursor struct {
	store  *orstore.Store
	engine *policy.Engine
	signer sign.Keypair

	node   *schema.Node
	prefix []crdtpath.Label

	// elementOf is non-nil iff this cursor was returned by ArrayIndex or
	// ArrayInsert: the array node one level up, kept so Move can relocate
	// this element without the caller having to re-navigate to its parent.
	elementOf *schema.Node
}

// New returns a cursor at the document root, shaped by root and gated by
// engine. signer authors every delta the cursor emits.
func New(store *orstore.Store, root *schema.Node, engine *policy.Engine, signer sign.Keypair) *Cursor {
	return &Cursor{store: store, engine: engine, signer: signer, node: root}
}

// Clone returns a copy-on-write copy of the cursor at the same location;
// navigating the copy never affects the receiver.
func (c *Cursor) Clone() *Cursor {
	cp := *c
	cp.prefix = append([]crdtpath.Label(nil), c.prefix...)
	return &cp
}

func (c *Cursor) child(l crdtpath.Label, node *schema.Node) *Cursor {
	cp := c.Clone()
	cp.prefix = append(cp.prefix, l)
	cp.node = node
	cp.elementOf = nil
	return cp
}

// arrayChild is child for the one case where the new cursor denotes an
// array element rather than a struct field or table value: arrayNode is
// the array itself (the receiver's own node), so Move can later find this
// element's current siblings.
func (c *Cursor) arrayChild(l crdtpath.Label, arrayNode *schema.Node) *Cursor {
	cp := c.child(l, arrayNode.Elem)
	cp.elementOf = arrayNode
	return cp
}

func (c *Cursor) path(terminal crdtpath.Label) crdtpath.Path {
	return crdtpath.Path{Doc: c.store.DocID(), Labels: append(append([]crdtpath.Label(nil), c.prefix...), terminal)}
}

// StructField navigates to a named field of a struct node.
func (c *Cursor) StructField(name string) (*Cursor, error) {
	if c.node.Kind != schema.NodeStruct {
		return nil, tlfserr.TypeMismatch{Expected: "struct", Got: c.node.Kind.String()}
	}
	child, ok := c.node.Fields[name]
	if !ok {
		return nil, tlfserr.SchemaViolation{Reason: "unknown field: " + name}
	}
	return c.child(crdtpath.Field(name), child), nil
}

// MapKeyBool, MapKeyU64, MapKeyI64 and MapKeyStr navigate into a table
// node's value at the given key.
func (c *Cursor) MapKeyBool(key bool) (*Cursor, error) {
	return c.mapKey(crdtpath.KeyBool(key), crdtpath.PrimBoolV(key))
}

func (c *Cursor) MapKeyU64(key uint64) (*Cursor, error) {
	return c.mapKey(crdtpath.KeyU64(key), crdtpath.PrimU64V(key))
}

func (c *Cursor) MapKeyI64(key int64) (*Cursor, error) {
	return c.mapKey(crdtpath.KeyI64(key), crdtpath.PrimI64V(key))
}

func (c *Cursor) MapKeyStr(key string) (*Cursor, error) {
	return c.mapKey(crdtpath.KeyStr(key), crdtpath.PrimStrV(key))
}

func (c *Cursor) mapKey(l crdtpath.Label, key crdtpath.Primitive) (*Cursor, error) {
	if c.node.Kind != schema.NodeTable {
		return nil, tlfserr.TypeMismatch{Expected: "table", Got: c.node.Kind.String()}
	}
	if !c.node.KeyType.Matches(key) {
		return nil, tlfserr.TypeMismatch{Expected: c.node.KeyType.String(), Got: key.Kind.String()}
	}
	return c.child(l, c.node.Value), nil
}

// mapKeys scans the direct children of this table location and returns
// the distinct key primitives currently live there, the same
// scan-and-dedup shape arrayElements uses for array positions.
func (c *Cursor) mapKeys() ([]crdtpath.Primitive, error) {
	if c.node.Kind != schema.NodeTable {
		return nil, tlfserr.TypeMismatch{Expected: "table", Got: c.node.Kind.String()}
	}
	scanned, err := c.store.PrefixScan(c.prefix)
	if err != nil {
		return nil, err
	}
	depth := len(c.prefix)
	seen := make(map[crdtpath.Primitive]bool)
	var keys []crdtpath.Primitive
	for _, p := range scanned {
		if len(p.Labels) <= depth {
			continue
		}
		key, ok := p.Labels[depth].KeyPrimitive()
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}

func (c *Cursor) mapKeysTyped(want schema.PrimitiveType) ([]crdtpath.Primitive, error) {
	if c.node.Kind == schema.NodeTable && c.node.KeyType != want {
		return nil, tlfserr.TypeMismatch{Expected: "table[" + want.String() + "]", Got: "table[" + c.node.KeyType.String() + "]"}
	}
	return c.mapKeys()
}

// MapKeysBool, MapKeysU64, MapKeysI64 and MapKeysStr enumerate a table's
// live keys, typed to the table's declared key type so a caller never
// has to dispatch on crdtpath.Primitive.Kind itself — the same
// homogeneous-accessor shape RegBools/RegU64s/RegI64s/RegStrs give the
// MVReg side.
func (c *Cursor) MapKeysBool() ([]bool, error) {
	keys, err := c.mapKeysTyped(schema.TypeBool)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(keys))
	for i, k := range keys {
		out[i] = k.B
	}
	return out, nil
}

func (c *Cursor) MapKeysU64() ([]uint64, error) {
	keys, err := c.mapKeysTyped(schema.TypeU64)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(keys))
	for i, k := range keys {
		out[i] = k.U
	}
	return out, nil
}

func (c *Cursor) MapKeysI64() ([]int64, error) {
	keys, err := c.mapKeysTyped(schema.TypeI64)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(keys))
	for i, k := range keys {
		out[i] = k.I
	}
	return out, nil
}

func (c *Cursor) MapKeysStr() ([]string, error) {
	keys, err := c.mapKeysTyped(schema.TypeStr)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.S
	}
	return out, nil
}

// MapRemove tombstones every path currently stored under key, erasing the
// entire subtree rooted there.
func (c *Cursor) MapRemove(l crdtpath.Label) (causal.Causal, error) {
	if c.node.Kind != schema.NodeTable {
		return causal.Causal{}, tlfserr.TypeMismatch{Expected: "table", Got: c.node.Kind.String()}
	}
	return c.removeSubtree(append(append([]crdtpath.Label(nil), c.prefix...), l))
}

func (c *Cursor) removeSubtree(prefix []crdtpath.Label) (causal.Causal, error) {
	active, err := c.store.PrefixScan(prefix)
	if err != nil {
		return causal.Causal{}, err
	}
	var delta causal.Causal
	for _, p := range active {
		h, err := crdtpath.Hash(p)
		if err != nil {
			return causal.Causal{}, err
		}
		if err := c.authorize(p); err != nil {
			return causal.Causal{}, err
		}
		delta.Expired = append(delta.Expired, h)
	}
	return delta, nil
}

// FlagEnabled reports whether the enable-wins flag at this location is
// currently set: true iff at least one un-tombstoned ewflag atom exists
// here, which is the enable-wins merge rule (a concurrent enable always
// beats a concurrent disable).
func (c *Cursor) FlagEnabled() (bool, error) {
	if c.node.Kind != schema.NodeEWFlag {
		return false, tlfserr.TypeMismatch{Expected: "ewflag", Got: c.node.Kind.String()}
	}
	active, err := c.store.PrefixScan(c.prefix)
	if err != nil {
		return false, err
	}
	return len(active) > 0, nil
}

// FlagEnable adds a fresh ewflag atom at this location, leaving any
// concurrently-disabled atoms in place (enable-wins is a property of the
// merge rule, not of this call).
func (c *Cursor) FlagEnable() (causal.Causal, error) {
	if c.node.Kind != schema.NodeEWFlag {
		return causal.Causal{}, tlfserr.TypeMismatch{Expected: "ewflag", Got: c.node.Kind.String()}
	}
	p := c.path(crdtpath.EWFlagLabel(tlfsid.NewNonce()))
	return c.sign(p)
}

// FlagDisable tombstones every active ewflag atom at this location.
func (c *Cursor) FlagDisable() (causal.Causal, error) {
	if c.node.Kind != schema.NodeEWFlag {
		return causal.Causal{}, tlfserr.TypeMismatch{Expected: "ewflag", Got: c.node.Kind.String()}
	}
	return c.removeSubtree(c.prefix)
}

// RegValues returns every concurrently-assigned value currently live at
// this location, the multi-value register's observable state.
func (c *Cursor) RegValues() ([]crdtpath.Primitive, error) {
	if c.node.Kind != schema.NodeMVReg {
		return nil, tlfserr.TypeMismatch{Expected: "mvreg", Got: c.node.Kind.String()}
	}
	active, err := c.store.PrefixScan(c.prefix)
	if err != nil {
		return nil, err
	}
	out := make([]crdtpath.Primitive, 0, len(active))
	for _, p := range active {
		term, ok := p.Terminal()
		if !ok {
			continue
		}
		out = append(out, term.Value)
	}
	return out, nil
}

func (c *Cursor) regValuesTyped(want schema.PrimitiveType) ([]crdtpath.Primitive, error) {
	if c.node.Kind == schema.NodeMVReg && c.node.RegType != want {
		return nil, tlfserr.TypeMismatch{Expected: "mvreg<" + want.String() + ">", Got: "mvreg<" + c.node.RegType.String() + ">"}
	}
	return c.RegValues()
}

// RegBools, RegU64s, RegI64s and RegStrs return the register's
// concurrently-live values typed to the register's declared RegType, so
// a caller that already knows (from the schema it navigated) what kind
// of register this is never has to dispatch on crdtpath.Primitive.Kind
// at the iterator boundary.
func (c *Cursor) RegBools() ([]bool, error) {
	values, err := c.regValuesTyped(schema.TypeBool)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(values))
	for i, v := range values {
		out[i] = v.B
	}
	return out, nil
}

func (c *Cursor) RegU64s() ([]uint64, error) {
	values, err := c.regValuesTyped(schema.TypeU64)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(values))
	for i, v := range values {
		out[i] = v.U
	}
	return out, nil
}

func (c *Cursor) RegI64s() ([]int64, error) {
	values, err := c.regValuesTyped(schema.TypeI64)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = v.I
	}
	return out, nil
}

func (c *Cursor) RegStrs() ([]string, error) {
	values, err := c.regValuesTyped(schema.TypeStr)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.S
	}
	return out, nil
}

// RegAssign atomically clears every value currently live at this location
// and stores v in their place, the multi-value register's write
// operation. Two concurrent RegAssign calls both survive the merge (that
// is what makes it multi-valued) until a later RegAssign replaces them.
func (c *Cursor) RegAssign(v crdtpath.Primitive) (causal.Causal, error) {
	if c.node.Kind != schema.NodeMVReg {
		return causal.Causal{}, tlfserr.TypeMismatch{Expected: "mvreg", Got: c.node.Kind.String()}
	}
	if !c.node.RegType.Matches(v) {
		return causal.Causal{}, tlfserr.TypeMismatch{Expected: c.node.RegType.String(), Got: v.Kind.String()}
	}
	clear, err := c.removeSubtree(c.prefix)
	if err != nil {
		return causal.Causal{}, err
	}
	p := c.path(crdtpath.MVRegLabel(tlfsid.NewNonce(), v))
	write, err := c.sign(p)
	if err != nil {
		return causal.Causal{}, err
	}
	return clear.Join(write), nil
}

// sign signs p with the cursor's keypair, authorizes it against the
// policy engine with the signer as actor, and returns the one-path Causal
// that adds it.
func (c *Cursor) sign(p crdtpath.Path) (causal.Causal, error) {
	signed, err := c.signer.Sign(p)
	if err != nil {
		return causal.Causal{}, err
	}
	if err := c.authorize(signed); err != nil {
		return causal.Causal{}, err
	}
	return causal.Causal{Store: []crdtpath.Path{signed}}, nil
}

// authorize checks that the cursor's own signer currently holds write
// authority over p's prefix, using perm appropriate to p's terminal kind
// (a policy write needs own/control over its target, everything else
// needs write).
func (c *Cursor) authorize(p crdtpath.Path) error {
	perm := crdtpath.PermWrite
	if term, ok := p.Terminal(); ok && term.Kind == crdtpath.LabelPolicy {
		perm = crdtpath.PermControl
	}
	actor := crdtpath.PeerActor(c.signer.PeerID())
	return c.engine.Authorize(actor, perm, p)
}

// arrayElement pairs a stored array path with the fractional position
// label that ordered it.
type arrayElement struct {
	path crdtpath.Path
	pos  Fraction
}

// arrayElements returns every active element directly under this array
// location (the element's struct or leaf subtree, keyed on the array's
// immediate child label), sorted by position.
func (c *Cursor) arrayElements() ([]arrayElement, error) {
	if c.node.Kind != schema.NodeArray {
		return nil, tlfserr.TypeMismatch{Expected: "array", Got: c.node.Kind.String()}
	}
	scanned, err := c.store.PrefixScan(c.prefix)
	if err != nil {
		return nil, err
	}
	depth := len(c.prefix)
	seen := make(map[string]Fraction)
	var order []string
	for _, p := range scanned {
		if len(p.Labels) <= depth || p.Labels[depth].Kind != crdtpath.LabelKeyStr {
			continue
		}
		key := p.Labels[depth].KeyStr
		if _, ok := seen[key]; ok {
			continue
		}
		f, err := ParseKey(key)
		if err != nil {
			continue
		}
		seen[key] = f
		order = append(order, key)
	}
	sort.Slice(order, func(i, j int) bool { return seen[order[i]].Compare(seen[order[j]]) < 0 })
	out := make([]arrayElement, len(order))
	for i, key := range order {
		out[i] = arrayElement{pos: seen[key]}
		out[i].path = crdtpath.Path{Doc: c.store.DocID(), Labels: append(append([]crdtpath.Label(nil), c.prefix...), crdtpath.KeyStr(key))}
	}
	return out, nil
}

// ArrayLength returns the number of live elements in the array.
func (c *Cursor) ArrayLength() (int, error) {
	els, err := c.arrayElements()
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// ArrayIndex navigates to the element currently at position i, in
// ascending position order.
func (c *Cursor) ArrayIndex(i int) (*Cursor, error) {
	els, err := c.arrayElements()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(els) {
		return nil, tlfserr.SchemaViolation{Reason: "array index out of range"}
	}
	l := crdtpath.KeyStr(els[i].path.Labels[len(c.prefix)].KeyStr)
	return c.arrayChild(l, c.node), nil
}

// positionFor computes the fractional position for inserting at index i
// among els (an array's current sorted elements).
func positionFor(els []arrayElement, i int) Fraction {
	switch {
	case len(els) == 0:
		return Half()
	case i <= 0:
		return Zero().Mid(els[0].pos)
	case i >= len(els):
		return els[len(els)-1].pos.Succ()
	default:
		return els[i-1].pos.Mid(els[i].pos)
	}
}

// ArrayInsert allocates a fresh position between the elements currently
// at i-1 and i and returns a cursor at it. No delta is produced: the
// position label carries no payload of its own, so the new element only
// becomes durable once a leaf written beneath it is joined.
func (c *Cursor) ArrayInsert(i int) (*Cursor, error) {
	if c.node.Kind != schema.NodeArray {
		return nil, tlfserr.TypeMismatch{Expected: "array", Got: c.node.Kind.String()}
	}
	els, err := c.arrayElements()
	if err != nil {
		return nil, err
	}
	pos := positionFor(els, i)
	return c.arrayChild(crdtpath.KeyStr(pos.Key()), c.node), nil
}

// ArrayRemove tombstones the element currently at index i.
func (c *Cursor) ArrayRemove(i int) (causal.Causal, error) {
	els, err := c.arrayElements()
	if err != nil {
		return causal.Causal{}, err
	}
	if i < 0 || i >= len(els) {
		return causal.Causal{}, tlfserr.SchemaViolation{Reason: "array index out of range"}
	}
	return c.removeSubtree(els[i].path.Labels)
}

// ArrayMove relocates the element currently at index from so that it
// ends up at index to (clamped to the last index). It tombstones the
// element's paths and re-signs copies of them under a freshly allocated
// position label; no sibling's position label changes.
func (c *Cursor) ArrayMove(from, to int) (causal.Causal, error) {
	els, err := c.arrayElements()
	if err != nil {
		return causal.Causal{}, err
	}
	if from < 0 || from >= len(els) {
		return causal.Causal{}, tlfserr.SchemaViolation{Reason: "array index out of range"}
	}
	rest := append(append([]arrayElement(nil), els[:from]...), els[from+1:]...)
	insertAt := to
	if insertAt > len(rest) {
		insertAt = len(rest)
	}
	pos := positionFor(rest, insertAt)

	depth := len(c.prefix)
	removed, err := c.removeSubtree(els[from].path.Labels)
	if err != nil {
		return causal.Causal{}, err
	}
	moved, err := c.retarget(els[from].path, depth, crdtpath.KeyStr(pos.Key()))
	if err != nil {
		return causal.Causal{}, err
	}
	return removed.Join(moved), nil
}

// Move relocates the array element this cursor points at (as returned by
// ArrayIndex or ArrayInsert) so that it ends up at index to: the
// element-cursor form of array_move, where the cursor
// itself already denotes the position identifier being moved and only
// the destination index needs to be supplied. It is equivalent to
// calling ArrayMove on the parent array with this element's current
// index as from.
func (c *Cursor) Move(to int) (causal.Causal, error) {
	if c.elementOf == nil || len(c.prefix) == 0 {
		return causal.Causal{}, tlfserr.SchemaViolation{Reason: "cursor is not positioned at an array element"}
	}
	last := c.prefix[len(c.prefix)-1]
	if last.Kind != crdtpath.LabelKeyStr {
		return causal.Causal{}, tlfserr.SchemaViolation{Reason: "cursor is not positioned at an array element"}
	}

	array := c.Clone()
	array.prefix = array.prefix[:len(array.prefix)-1]
	array.node = c.elementOf
	array.elementOf = nil

	els, err := array.arrayElements()
	if err != nil {
		return causal.Causal{}, err
	}
	depth := len(array.prefix)
	from := -1
	for i, el := range els {
		if el.path.Labels[depth].Equal(last) {
			from = i
			break
		}
	}
	if from < 0 {
		return causal.Causal{}, tlfserr.SchemaViolation{Reason: "array element no longer present"}
	}
	return array.ArrayMove(from, to)
}

// retarget copies every active path under oldPrefix (oldPrefix's element
// key at label index depth replaced by newKey) and re-signs each as a
// fresh atom, the delta that recreates an array element's subtree under
// a new position label.
func (c *Cursor) retarget(oldPrefix crdtpath.Path, depth int, newKey crdtpath.Label) (causal.Causal, error) {
	active, err := c.store.PrefixScan(oldPrefix.Labels)
	if err != nil {
		return causal.Causal{}, err
	}
	var delta causal.Causal
	for _, p := range active {
		labels := append([]crdtpath.Label(nil), p.Labels...)
		labels[depth] = newKey
		moved := crdtpath.Path{Doc: p.Doc, Labels: labels}
		added, err := c.sign(moved)
		if err != nil {
			return causal.Causal{}, err
		}
		delta = delta.Join(added)
	}
	return delta, nil
}

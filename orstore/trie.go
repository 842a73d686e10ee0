package orstore

import "github.com/cloudpeers/tlfs/crdtpath"

// trieNode is one byte-level node of the radix trie the store indexes
// active paths in, keyed on their canonical unsigned encoding: a trie
// keyed on canonical path encoding satisfies both membership and prefix
// scan with one data structure.
//
// Children are keyed one byte at a time rather than compressed edge runs;
// paths are short (a handful of labels), so the extra node count is not a
// real cost, and an uncompressed trie is far easier to get right than a
// radix tree with edge splitting.
type trieNode struct {
	children map[byte]*trieNode
	hasValue bool
	value    crdtpath.Path
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[byte]*trieNode)}
}

// insert stores value under key, overwriting any existing value. Returns
// true if this created a new entry (key was not previously present).
func (n *trieNode) insert(key []byte, value crdtpath.Path) bool {
	cur := n
	for _, b := range key {
		child, ok := cur.children[b]
		if !ok {
			child = newTrieNode()
			cur.children[b] = child
		}
		cur = child
	}
	created := !cur.hasValue
	cur.hasValue = true
	cur.value = value
	return created
}

// remove deletes the value stored under key, if any. Returns true if a
// value was removed.
func (n *trieNode) remove(key []byte) bool {
	cur := n
	for _, b := range key {
		child, ok := cur.children[b]
		if !ok {
			return false
		}
		cur = child
	}
	if !cur.hasValue {
		return false
	}
	cur.hasValue = false
	cur.value = crdtpath.Path{}
	return true
}

// get returns the value stored under key, if any.
func (n *trieNode) get(key []byte) (crdtpath.Path, bool) {
	cur := n
	for _, b := range key {
		child, ok := cur.children[b]
		if !ok {
			return crdtpath.Path{}, false
		}
		cur = child
	}
	if !cur.hasValue {
		return crdtpath.Path{}, false
	}
	return cur.value, true
}

// scanPrefix collects every value stored at or below the node reached by
// walking prefix, in no particular order.
func (n *trieNode) scanPrefix(prefix []byte) []crdtpath.Path {
	cur := n
	for _, b := range prefix {
		child, ok := cur.children[b]
		if !ok {
			return nil
		}
		cur = child
	}
	var out []crdtpath.Path
	cur.collect(&out)
	return out
}

func (n *trieNode) collect(out *[]crdtpath.Path) {
	if n.hasValue {
		*out = append(*out, n.value)
	}
	for _, child := range n.children {
		child.collect(out)
	}
}

// all returns every value in the trie.
func (n *trieNode) all() []crdtpath.Path {
	var out []crdtpath.Path
	n.collect(&out)
	return out
}

// Package mib pkg/mib/trie.go
//
// Package mib provides the ordered OID store behind a region: a radix
// trie keyed by sub-identifier with lexicographic navigation, plus the
// immutable snapshots updaters publish.
package mib

import (
	"sort"

	"github.com/snmpkit/agentx/pkg/agentx"
	"github.com/snmpkit/agentx/pkg/oid"
)

type child struct {
	id   uint32
	node *node
}

type node struct {
	value    agentx.Value
	hasValue bool
	children []child // ascending by id
}

// findChild returns the index of id in n.children, or the insertion
// point and false.
func (n *node) findChild(id uint32) (int, bool) {
	i := sort.Search(len(n.children), func(i int) bool { return n.children[i].id >= id })
	if i < len(n.children) && n.children[i].id == id {
		return i, true
	}

	return i, false
}

// Tree is a radix trie from OID to value. The zero value is empty and
// ready to use. A Tree is not safe for concurrent mutation; published
// snapshots are read-only and safe to share.
type Tree struct {
	root node
	size int
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

// Len returns the number of stored values.
func (t *Tree) Len() int {
	return t.size
}

// Insert stores value at o, returning any value it replaced.
func (t *Tree) Insert(o oid.OID, value agentx.Value) (prev agentx.Value, replaced bool) {
	n := &t.root

	for _, sub := range o {
		i, ok := n.findChild(sub)
		if !ok {
			n.children = append(n.children, child{})
			copy(n.children[i+1:], n.children[i:])
			n.children[i] = child{id: sub, node: &node{}}
		}

		n = n.children[i].node
	}

	prev, replaced = n.value, n.hasValue
	n.value = value
	n.hasValue = true

	if !replaced {
		t.size++
	}

	return prev, replaced
}

// Get returns the value stored exactly at o.
func (t *Tree) Get(o oid.OID) (agentx.Value, bool) {
	n := &t.root

	for _, sub := range o {
		i, ok := n.findChild(sub)
		if !ok {
			return agentx.Value{}, false
		}

		n = n.children[i].node
	}

	return n.value, n.hasValue
}

// Delete removes the value at o, pruning ancestors left with neither
// value nor children.
func (t *Tree) Delete(o oid.OID) bool {
	removed, _ := t.root.delete(o)
	if removed {
		t.size--
	}

	return removed
}

// delete reports whether a value was removed and whether this node is
// now empty and should be pruned by its parent.
func (n *node) delete(path oid.OID) (removed, empty bool) {
	if len(path) == 0 {
		if !n.hasValue {
			return false, false
		}

		n.value = agentx.Value{}
		n.hasValue = false

		return true, len(n.children) == 0
	}

	i, ok := n.findChild(path[0])
	if !ok {
		return false, false
	}

	removed, childEmpty := n.children[i].node.delete(path[1:])
	if childEmpty {
		n.children = append(n.children[:i], n.children[i+1:]...)
	}

	return removed, removed && !n.hasValue && len(n.children) == 0
}

// Successor returns the smallest stored (key, value) with key > o, or
// key >= o when inclusive.
func (t *Tree) Successor(o oid.OID, inclusive bool) (oid.OID, agentx.Value, bool) {
	key, v, ok := t.root.seek(o, inclusive)
	if !ok {
		return nil, agentx.Value{}, false
	}

	return key, v, true
}

// seek finds the smallest key in this subtree ordered after path
// (relative to this node). Returned keys are relative as well.
func (n *node) seek(path oid.OID, inclusive bool) (oid.OID, agentx.Value, bool) {
	if len(path) == 0 {
		if inclusive && n.hasValue {
			return oid.OID{}, n.value, true
		}

		// Any descendant key orders after the empty path.
		for _, c := range n.children {
			if key, v, ok := c.node.min(); ok {
				return append(oid.OID{c.id}, key...), v, true
			}
		}

		return nil, agentx.Value{}, false
	}

	i, ok := n.findChild(path[0])
	if ok {
		if key, v, found := n.children[i].node.seek(path[1:], inclusive); found {
			return append(oid.OID{path[0]}, key...), v, true
		}

		i++
	}

	for ; i < len(n.children); i++ {
		c := n.children[i]
		if key, v, found := c.node.min(); found {
			return append(oid.OID{c.id}, key...), v, true
		}
	}

	return nil, agentx.Value{}, false
}

// min returns the in-order first key of this subtree; a node's own
// value precedes all of its children.
func (n *node) min() (oid.OID, agentx.Value, bool) {
	if n.hasValue {
		return oid.OID{}, n.value, true
	}

	for _, c := range n.children {
		if key, v, ok := c.node.min(); ok {
			return append(oid.OID{c.id}, key...), v, true
		}
	}

	return nil, agentx.Value{}, false
}

// Walk visits every (key, value) in lexicographic order until fn
// returns false.
func (t *Tree) Walk(fn func(oid.OID, agentx.Value) bool) {
	t.root.walk(nil, fn)
}

func (n *node) walk(prefix oid.OID, fn func(oid.OID, agentx.Value) bool) bool {
	if n.hasValue {
		if !fn(prefix.Clone(), n.value) {
			return false
		}
	}

	for _, c := range n.children {
		if !c.node.walk(append(prefix, c.id), fn) {
			return false
		}
	}

	return true
}

// Cursor lazily enumerates [start, end) in lexicographic order. A nil
// end leaves the range unbounded above.
type Cursor struct {
	tree    *Tree
	pos     oid.OID
	incl    bool
	end     oid.OID
	started bool
	done    bool
}

// Range positions a cursor at start; includeStart toggles whether an
// exact match on start is yielded.
func (t *Tree) Range(start, end oid.OID, includeStart bool) *Cursor {
	return &Cursor{tree: t, pos: start, incl: includeStart, end: end}
}

// Next returns the following entry, or ok == false when the range is
// exhausted. Keys are strictly increasing across calls.
func (c *Cursor) Next() (oid.OID, agentx.Value, bool) {
	if c.done {
		return nil, agentx.Value{}, false
	}

	inclusive := c.incl && !c.started
	c.started = true

	key, v, ok := c.tree.Successor(c.pos, inclusive)
	if !ok || (c.end != nil && key.Compare(c.end) >= 0) {
		c.done = true
		return nil, agentx.Value{}, false
	}

	c.pos = key

	return key, v, true
}

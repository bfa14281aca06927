package bptree

import "sort"

// Node is one page of the tree: either a leaf holding (key, value) pairs in
// sorted order, or an internal node holding separator keys and child ids.
// This mirrors the leaf/internal split used by a typical on-disk B-Tree,
// generalized from a fixed uint64 key to the ordered Key type.
type Node interface {
	ID() string
	IsLeaf() bool
	Keys() []Key
	Values() [][]byte
	Children() []string
	Next() string
}

// Allocator is the external persistence collaborator a Tree is built on
// (§6). A node's id is whatever the backing store assigns it when
// first written — for this module, a page-store record id.
type Allocator interface {
	Alloc(isLeaf bool) (string, error)
	Read(id string) (Node, error)
	Write(id string, n Node) error
}

// Tree is the pinned external collaborator interface (§6, §4.E).
type Tree interface {
	Init() error
	Insert(key Key, value []byte) error
	Delete(key Key, value []byte) error
	Keys(cond Condition, prior Set) (Set, error)
}

// order is the maximum number of keys a leaf or internal node may hold
// before it splits. Kept small and fixed; the tree is sized for
// document-field cardinalities, not bulk secondary-index workloads.
const order = 32

// node is the concrete, mutable Node implementation the tree operates on
// in memory before handing it to the Allocator to persist.
type node struct {
	id       string
	leaf     bool
	keys     []Key
	values   [][]byte // leaf only: value is the document record id, as bytes
	children []string // internal only
	next     string   // leaf only: right sibling, for range scans
}

func (n *node) ID() string         { return n.id }
func (n *node) IsLeaf() bool       { return n.leaf }
func (n *node) Keys() []Key        { return n.keys }
func (n *node) Values() [][]byte   { return n.values }
func (n *node) Children() []string { return n.children }
func (n *node) Next() string       { return n.next }

func fromNode(n Node) *node {
	if concrete, ok := n.(*node); ok {
		return concrete
	}
	return &node{
		id:       n.ID(),
		leaf:     n.IsLeaf(),
		keys:     append([]Key(nil), n.Keys()...),
		values:   n.Values(),
		children: n.Children(),
		next:     n.Next(),
	}
}

// tree is the concrete B+Tree behind the pinned interface.
type tree struct {
	alloc Allocator
	root  string
}

// New builds a Tree over alloc. If rootID is empty, Init must be called
// before use to allocate a fresh root leaf.
func New(alloc Allocator, rootID string) Tree {
	return &tree{alloc: alloc, root: rootID}
}

func (t *tree) Init() error {
	if t.root != "" {
		return nil
	}
	id, err := t.alloc.Alloc(true)
	if err != nil {
		return err
	}
	t.root = id
	return t.alloc.Write(id, &node{id: id, leaf: true})
}

// RootID returns the tree's current root node id, so the owning document
// layer can persist it alongside the field name it indexes.
func (t *tree) RootID() string { return t.root }

// Insert adds (key, value) to the tree, splitting nodes bottom-up when
// they overflow order, using the standard leaf/internal split-and-promote
// shape.
func (t *tree) Insert(key Key, value []byte) error {
	path, leaf, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	i := sort.Search(len(leaf.keys), func(i int) bool { return Compare(leaf.keys[i], key) >= 0 })
	leaf.keys = insertKey(leaf.keys, i, key)
	leaf.values = insertValue(leaf.values, i, value)

	if len(leaf.keys) <= order {
		return t.alloc.Write(leaf.id, leaf)
	}
	return t.splitLeaf(path, leaf)
}

// Delete removes the (key, value) pair from the tree. value disambiguates
// duplicate keys pointing at different documents.
func (t *tree) Delete(key Key, value []byte) error {
	_, leaf, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	for i, k := range leaf.keys {
		if Compare(k, key) == 0 && bytesEqual(leaf.values[i], value) {
			leaf.keys = append(leaf.keys[:i], leaf.keys[i+1:]...)
			leaf.values = append(leaf.values[:i], leaf.values[i+1:]...)
			return t.alloc.Write(leaf.id, leaf)
		}
	}
	return nil // deleting an absent pair is a no-op
}

// Keys evaluates cond against every matching leaf entry and returns the
// set of values (record ids) that satisfy it, intersected with prior when
// prior is non-nil (§4.F.3).
func (t *tree) Keys(cond Condition, prior Set) (Set, error) {
	out := NewSet()
	id := t.root
	if id == "" {
		return out, nil
	}
	// Descend to the first leaf that could contain a matching key, then
	// scan right via `next` — a plain linear scan when no comparison
	// bound narrows the start, a range scan otherwise.
	n, err := t.alloc.Read(id)
	if err != nil {
		return nil, err
	}
	cur := fromNode(n)
	for !cur.leaf {
		idx := descendIndex(cur, cond)
		childID := cur.children[idx]
		child, err := t.alloc.Read(childID)
		if err != nil {
			return nil, err
		}
		cur = fromNode(child)
	}
	for cur != nil {
		for i, k := range cur.keys {
			if !cond.Match(k) {
				continue
			}
			v := string(cur.values[i])
			if prior == nil || prior.Has(v) {
				out.Add(v)
			}
		}
		if cur.next == "" {
			break
		}
		n, err := t.alloc.Read(cur.next)
		if err != nil {
			return nil, err
		}
		cur = fromNode(n)
	}
	return out, nil
}

// descendIndex picks which child to descend into given a lower-bound
// hint from cond (gt/gte/equal), defaulting to the leftmost child so a
// condition with no lower bound still scans every leaf from the start.
func descendIndex(n *node, cond Condition) int {
	var bound Key
	has := false
	switch {
	case cond.HasEqual:
		bound, has = cond.Equal, true
	case cond.HasGTE:
		bound, has = cond.GTE, true
	case cond.HasGT:
		bound, has = cond.GT, true
	}
	if !has {
		return 0
	}
	i := sort.Search(len(n.keys), func(i int) bool { return Compare(n.keys[i], bound) >= 0 })
	if i >= len(n.children) {
		i = len(n.children) - 1
	}
	return i
}

// findLeaf descends from the root to the leaf that owns key, returning the
// path of internal nodes walked (for split propagation) and the leaf.
func (t *tree) findLeaf(key Key) ([]*node, *node, error) {
	if t.root == "" {
		if err := t.Init(); err != nil {
			return nil, nil, err
		}
	}
	var path []*node
	n, err := t.alloc.Read(t.root)
	if err != nil {
		return nil, nil, err
	}
	cur := fromNode(n)
	for !cur.leaf {
		path = append(path, cur)
		i := sort.Search(len(cur.keys), func(i int) bool { return Compare(cur.keys[i], key) > 0 })
		if i >= len(cur.children) {
			i = len(cur.children) - 1
		}
		child, err := t.alloc.Read(cur.children[i])
		if err != nil {
			return nil, nil, err
		}
		cur = fromNode(child)
	}
	return path, cur, nil
}

// splitLeaf splits an overflowing leaf in two, writes both halves, and
// promotes the right half's first key up through the path, creating a new
// root if the path is empty.
func (t *tree) splitLeaf(path []*node, leaf *node) error {
	mid := len(leaf.keys) / 2
	rightID, err := t.alloc.Alloc(true)
	if err != nil {
		return err
	}
	right := &node{
		id:     rightID,
		leaf:   true,
		keys:   append([]Key(nil), leaf.keys[mid:]...),
		values: append([][]byte(nil), leaf.values[mid:]...),
		next:   leaf.next,
	}
	leaf.keys = leaf.keys[:mid]
	leaf.values = leaf.values[:mid]
	leaf.next = rightID

	if err := t.alloc.Write(leaf.id, leaf); err != nil {
		return err
	}
	if err := t.alloc.Write(right.id, right); err != nil {
		return err
	}
	return t.promote(path, right.keys[0], leaf.id, right.id)
}

// promote inserts separatorKey into the last internal node on path
// (creating a new root if path is empty), splitting further up as needed.
func (t *tree) promote(path []*node, separator Key, leftID, rightID string) error {
	if len(path) == 0 {
		rootID, err := t.alloc.Alloc(false)
		if err != nil {
			return err
		}
		root := &node{
			id:       rootID,
			leaf:     false,
			keys:     []Key{separator},
			children: []string{leftID, rightID},
		}
		if err := t.alloc.Write(rootID, root); err != nil {
			return err
		}
		t.root = rootID
		return nil
	}

	parent := path[len(path)-1]
	i := sort.Search(len(parent.keys), func(i int) bool { return Compare(parent.keys[i], separator) > 0 })
	parent.keys = insertKey(parent.keys, i, separator)
	parent.children = insertChild(parent.children, i+1, rightID)

	if len(parent.keys) <= order {
		return t.alloc.Write(parent.id, parent)
	}

	mid := len(parent.keys) / 2
	promoted := parent.keys[mid]
	rightSiblingID, err := t.alloc.Alloc(false)
	if err != nil {
		return err
	}
	rightSibling := &node{
		id:       rightSiblingID,
		leaf:     false,
		keys:     append([]Key(nil), parent.keys[mid+1:]...),
		children: append([]string(nil), parent.children[mid+1:]...),
	}
	parent.keys = parent.keys[:mid]
	parent.children = parent.children[:mid+1]

	if err := t.alloc.Write(parent.id, parent); err != nil {
		return err
	}
	if err := t.alloc.Write(rightSiblingID, rightSibling); err != nil {
		return err
	}
	return t.promote(path[:len(path)-1], promoted, parent.id, rightSiblingID)
}

func insertKey(s []Key, i int, k Key) []Key {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = k
	return s
}

func insertValue(s [][]byte, i int, v []byte) [][]byte {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func insertChild(s []string, i int, c string) []string {
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = c
	return s
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

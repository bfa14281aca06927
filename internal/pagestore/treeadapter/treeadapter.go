// Package treeadapter adapts internal/bptree's Allocator interface onto an
// internal/pagestore.Store, so a document field's B+Tree is persisted as
// ordinary page-store records (§4.E). Node writes coalesce
// through a per-node debounce (github.com/bep/debounce) so a rebalance that
// touches the same node several times in one call only costs one I/O.
package treeadapter

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/klaf-go/klaf/internal/bptree"
	"github.com/klaf-go/klaf/internal/pagestore"
)

// DefaultDebounceInterval is used when the caller does not configure one.
const DefaultDebounceInterval = 25 * time.Millisecond

// nodeDTO is the on-disk JSON shape of a bptree node.
type nodeDTO struct {
	ID       string       `json:"id"`
	Leaf     bool         `json:"leaf"`
	Keys     []bptree.Key `json:"keys"`
	Values   [][]byte     `json:"values"`
	Children []string     `json:"children"`
	Next     string       `json:"next"`
}

type dtoNode struct{ dto nodeDTO }

func (d *dtoNode) ID() string         { return d.dto.ID }
func (d *dtoNode) IsLeaf() bool       { return d.dto.Leaf }
func (d *dtoNode) Keys() []bptree.Key { return d.dto.Keys }
func (d *dtoNode) Values() [][]byte   { return d.dto.Values }
func (d *dtoNode) Children() []string { return d.dto.Children }
func (d *dtoNode) Next() string       { return d.dto.Next }

// Adapter implements bptree.Allocator over a pagestore.Store.
type Adapter struct {
	store    *pagestore.Store
	interval time.Duration

	mu        sync.Mutex
	debounced map[string]func(func())
	pending   map[string]func()
}

// New builds an Adapter with the given debounce interval (0 selects
// DefaultDebounceInterval).
func New(store *pagestore.Store, interval time.Duration) *Adapter {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	return &Adapter{
		store:     store,
		interval:  interval,
		debounced: make(map[string]func(func())),
		pending:   make(map[string]func()),
	}
}

// Alloc stores a fresh node as an ordinary page-store record via Put and
// returns the id the page store assigned it. The node does not get a page
// of its own: it is placed in the current internal page alongside any
// other records there.
func (a *Adapter) Alloc(isLeaf bool) (string, error) {
	dto := nodeDTO{Leaf: isLeaf}
	data, err := json.Marshal(dto)
	if err != nil {
		return "", err
	}
	id, err := a.store.Put(data)
	if err != nil {
		return "", err
	}
	dto.ID = id
	data, err = json.Marshal(dto)
	if err != nil {
		return "", err
	}
	if _, err := a.store.Update(id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Read resolves id's current node content via the page store's Pick. A
// write still pending for id is applied first, so Read always returns the
// content last passed to Write.
func (a *Adapter) Read(id string) (bptree.Node, error) {
	key := "write:" + id
	a.mu.Lock()
	write, ok := a.pending[key]
	delete(a.pending, key)
	a.mu.Unlock()
	if ok {
		write()
	}
	rec, err := a.store.Pick(id)
	if err != nil {
		return nil, err
	}
	var dto nodeDTO
	if err := json.Unmarshal(rec.Payload, &dto); err != nil {
		return nil, err
	}
	return &dtoNode{dto}, nil
}

// Write schedules n's content to be persisted under id, debounced by
// id so repeated rewrites during one rebalance collapse into the last one.
func (a *Adapter) Write(id string, n bptree.Node) error {
	dto := nodeDTO{
		ID:       id,
		Leaf:     n.IsLeaf(),
		Keys:     n.Keys(),
		Values:   n.Values(),
		Children: n.Children(),
		Next:     n.Next(),
	}
	data, err := json.Marshal(dto)
	if err != nil {
		return err
	}

	write := func() {
		_, _ = a.store.Update(id, data)
	}

	key := "write:" + id
	a.mu.Lock()
	debounced, ok := a.debounced[key]
	if !ok {
		debounced = debounce.New(a.interval)
		a.debounced[key] = debounced
	}
	a.pending[key] = write
	a.mu.Unlock()

	debounced(write)
	return nil
}

// Flush synchronously applies every write still pending behind its
// debounce timer. Called by the transaction wrapper's commit() and by
// Close, per §9 ("On close, all pending debounced writes must be
// flushed before releasing the lock.").
func (a *Adapter) Flush() {
	a.mu.Lock()
	pending := a.pending
	a.pending = make(map[string]func())
	a.mu.Unlock()

	for _, write := range pending {
		write()
	}
}

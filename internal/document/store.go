package document

import (
	"encoding/json"
	"log/slog"

	"github.com/klaf-go/klaf/internal/bptree"
	"github.com/klaf-go/klaf/internal/kerr"
	"github.com/klaf-go/klaf/internal/logging"
	"github.com/klaf-go/klaf/internal/pagestore"
	"github.com/klaf-go/klaf/internal/pagestore/treeadapter"
)

// Store is the document layer over one pagestore.Store.
type Store struct {
	ps      *pagestore.Store
	adapter *treeadapter.Adapter
	table   Table
	root    rootDoc
	rootID  string
	trees   map[string]bptree.Tree
	logger  *slog.Logger
}

// Create initializes the document layer on a freshly created, empty page
// store: it puts record 1 as a full-page placeholder, then overwrites it
// with the root JSON, per §4.F.1.
func Create(ps *pagestore.Store, table Table, adapter *treeadapter.Adapter) (*Store, error) {
	placeholderLen := int(ps.PayloadSize()) - pagestore.RecordHeaderSize - pagestore.CellSize
	if placeholderLen < 0 {
		placeholderLen = 0
	}
	id, err := ps.Put(make([]byte, placeholderLen))
	if err != nil {
		return nil, err
	}
	root := rootDoc{Verify: pagestore.DocumentMagic, TableVersion: 1, Head: map[string]string{}, Reassignments: []reassignment{}}
	data, err := json.Marshal(root)
	if err != nil {
		return nil, err
	}
	if _, err := ps.Update(id, data); err != nil {
		return nil, err
	}
	return &Store{
		ps: ps, adapter: adapter, table: table,
		root: root, rootID: id,
		trees: map[string]bptree.Tree{}, logger: logging.Discard(),
	}, nil
}

// Open loads the document layer from an existing page store, validating
// the root JSON's verify field, per §4.F.1.
func Open(ps *pagestore.Store, table Table, adapter *treeadapter.Adapter) (*Store, error) {
	recs, err := ps.GetRecords(1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, kerr.ErrInvalid
	}
	rec := recs[0]
	var root rootDoc
	if err := json.Unmarshal(rec.Payload, &root); err != nil {
		return nil, kerr.ErrInvalid
	}
	if root.Verify != pagestore.DocumentMagic {
		return nil, kerr.ErrInvalid
	}
	return &Store{
		ps: ps, adapter: adapter, table: table,
		root: root, rootID: rec.ID,
		trees: map[string]bptree.Tree{}, logger: logging.Discard(),
	}, nil
}

// SetLogger installs a structured logger for diagnostics.
func (s *Store) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// TableVersion returns the schema generation counter.
func (s *Store) TableVersion() int { return s.root.TableVersion }

func (s *Store) saveRoot() error {
	data, err := json.Marshal(s.root)
	if err != nil {
		return err
	}
	_, err = s.ps.Update(s.rootID, data)
	return err
}

// treeFor returns (lazily constructing) the B+Tree indexing field.
func (s *Store) treeFor(field string) (bptree.Tree, error) {
	if t, ok := s.trees[field]; ok {
		return t, nil
	}
	rootID := s.root.Head[field]
	t := bptree.New(s.adapter, rootID)
	if rootID == "" {
		if err := t.Init(); err != nil {
			return nil, err
		}
		s.root.Head[field] = treeRootID(t)
	}
	s.trees[field] = t
	return t, nil
}

// syncTreeRoot refreshes the root JSON's head pointer for field after a
// tree mutation may have changed its root (a split promoted a new root).
func (s *Store) syncTreeRoot(field string, t bptree.Tree) {
	s.root.Head[field] = treeRootID(t)
}

// treeRootID extracts a concrete tree's current root id via the
// unexported-type-but-exported-method escape hatch: bptree.New returns
// the Tree interface, but the root id is only observable through this
// extra method the concrete type provides.
func treeRootID(t bptree.Tree) string {
	if rooted, ok := t.(interface{ RootID() string }); ok {
		return rooted.RootID()
	}
	return ""
}

// Package klaf implements an embeddable, single-file, append-mostly paged
// record store, plus an optional schema-validated document layer with
// B+Tree-indexed range queries.
package klaf

import (
	"os"
	"sync"

	"github.com/klaf-go/klaf/internal/document"
	"github.com/klaf-go/klaf/internal/engine"
	"github.com/klaf-go/klaf/internal/kerr"
	"github.com/klaf-go/klaf/internal/pagestore"
	"github.com/klaf-go/klaf/internal/pagestore/treeadapter"
)

// Store is the transaction wrapper of §9: a single-writer
// sync.RWMutex around the synchronous pagestore/document core, dispatching
// caller hooks before and after each operation and committing the
// underlying engine on every successful write.
type Store struct {
	mu      sync.RWMutex
	path    string
	eng     engine.Engine
	ps      *pagestore.Store
	adapter *treeadapter.Adapter
	doc     *document.Store
	cfg     config
	closed  bool
}

// Create initializes a new core (record-only) store at path.
func Create(path string, opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	eng, err := openFreshEngine(path, cfg.overwrite)
	if err != nil {
		return nil, err
	}
	ps, err := pagestore.Create(eng, cfg.payloadSize)
	if err != nil {
		eng.Close()
		return nil, err
	}
	ps.SetLogger(cfg.logger)
	return &Store{path: path, eng: eng, ps: ps, cfg: cfg}, nil
}

// Open loads an existing core store at path.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, kerr.NewPathError(path, kerr.ErrNoExists)
		}
		return nil, err
	}
	eng, err := engine.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	ps, err := pagestore.Open(eng)
	if err != nil {
		eng.Close()
		if kerr.Is(err, kerr.ErrInvalid) {
			return nil, kerr.NewPathError(path, err)
		}
		return nil, err
	}
	ps.SetLogger(cfg.logger)
	return &Store{path: path, eng: eng, ps: ps, cfg: cfg}, nil
}

// CreateDocument initializes a new store with the document layer enabled
// against table.
func CreateDocument(path string, table document.Table, opts ...Option) (*Store, error) {
	s, err := Create(path, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.enableDocuments(table, document.Create); err != nil {
		s.ps.Close()
		return nil, err
	}
	return s, nil
}

// OpenDocument loads an existing document-layer store at path.
func OpenDocument(path string, table document.Table, opts ...Option) (*Store, error) {
	s, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.enableDocuments(table, document.Open); err != nil {
		s.ps.Close()
		return nil, err
	}
	return s, nil
}

type docCtor func(*pagestore.Store, document.Table, *treeadapter.Adapter) (*document.Store, error)

func (s *Store) enableDocuments(table document.Table, ctor docCtor) error {
	adapter := treeadapter.New(s.ps, s.cfg.debounceInterval)
	doc, err := ctor(s.ps, table, adapter)
	if err != nil {
		return err
	}
	doc.SetLogger(s.cfg.logger)
	s.adapter = adapter
	s.doc = doc
	return nil
}

func openFreshEngine(path string, overwrite bool) (engine.Engine, error) {
	switch _, err := os.Stat(path); {
	case err == nil:
		if !overwrite {
			return nil, kerr.NewPathError(path, kerr.ErrAlreadyExists)
		}
	case os.IsNotExist(err):
		// no existing file; proceed
	default:
		return nil, err
	}
	flags := os.O_CREATE | os.O_RDWR | os.O_TRUNC
	return engine.OpenFile(path, flags, 0o644)
}

// Documents returns a handle to the document-layer operations. It fails
// if the store was opened with Create/Open rather than
// CreateDocument/OpenDocument.
func (s *Store) Documents() (*DocumentHandle, error) {
	if s.doc == nil {
		return nil, kerr.ErrNoDocumentLayer
	}
	return &DocumentHandle{s: s}, nil
}

// Close flushes pending writes and releases the underlying engine.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.adapter != nil {
		s.adapter.Flush()
	}
	s.closed = true
	return s.ps.Close()
}

// commit flushes any debounced B+Tree writes and the engine, per the
// "optional commit" step of the write wrapper (§9).
func (s *Store) commit() error {
	if s.adapter != nil {
		s.adapter.Flush()
	}
	return s.ps.Commit()
}

func (s *Store) writeOp(name string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kerr.ErrClosing
	}
	if s.cfg.hooks.Before != nil {
		s.cfg.hooks.Before(name)
	}
	err := fn()
	if s.cfg.hooks.After != nil {
		s.cfg.hooks.After(name)
	}
	if err != nil {
		return err
	}
	return s.commit()
}

func (s *Store) readOp(name string, fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return kerr.ErrClosing
	}
	if s.cfg.hooks.Before != nil {
		s.cfg.hooks.Before(name)
	}
	err := fn()
	if s.cfg.hooks.After != nil {
		s.cfg.hooks.After(name)
	}
	return err
}

// Put stores data as a new record and returns its identifier.
func (s *Store) Put(data []byte) (string, error) {
	var id string
	err := s.writeOp("put", func() error {
		var innerErr error
		id, innerErr = s.ps.Put(data)
		return innerErr
	})
	return id, err
}

// Update replaces id's payload with data.
func (s *Store) Update(id string, data []byte) (string, error) {
	var newID string
	err := s.writeOp("update", func() error {
		var innerErr error
		newID, innerErr = s.ps.Update(id, data)
		return innerErr
	})
	return newID, err
}

// Delete marks id's record as deleted.
func (s *Store) Delete(id string) error {
	return s.writeOp("delete", func() error { return s.ps.Delete(id) })
}

// Pick resolves id to its current record.
func (s *Store) Pick(id string) (*pagestore.Record, error) {
	var rec *pagestore.Record
	err := s.readOp("pick", func() error {
		var innerErr error
		rec, innerErr = s.ps.Pick(id)
		return innerErr
	})
	return rec, err
}

// Exists reports whether id resolves to a live record.
func (s *Store) Exists(id string) (bool, error) {
	var ok bool
	err := s.readOp("exists", func() error {
		var innerErr error
		ok, innerErr = s.ps.Exists(id)
		return innerErr
	})
	return ok, err
}

// GetRecords returns every record stored in pageIndex's chain head page.
func (s *Store) GetRecords(pageIndex uint32) ([]pagestore.Record, error) {
	var recs []pagestore.Record
	err := s.readOp("getRecords", func() error {
		var innerErr error
		recs, innerErr = s.ps.GetRecords(pageIndex)
		return innerErr
	})
	return recs, err
}

package klaf

import (
	"io"

	"github.com/klaf-go/klaf/internal/document"
)

// DocumentHandle exposes the document layer's operations, wrapped with the
// same lock/hook/commit semantics as the core Store methods.
type DocumentHandle struct {
	s *Store
}

// Put normalizes, validates, and stores doc.
func (d *DocumentHandle) Put(doc map[string]any) (string, error) {
	var id string
	err := d.s.writeOp("document.put", func() error {
		var innerErr error
		id, innerErr = d.s.doc.Put(doc)
		return innerErr
	})
	return id, err
}

// Query evaluates q and returns the matching record id set.
func (d *DocumentHandle) Query(q document.Query) ([]string, error) {
	var ids []string
	err := d.s.readOp("document.query", func() error {
		set, innerErr := d.s.doc.Query(q)
		if innerErr != nil {
			return innerErr
		}
		ids = set.Slice()
		return nil
	})
	return ids, err
}

// Pick returns every document matching q, ordered per opts.
func (d *DocumentHandle) Pick(q document.Query, opts document.PickOptions) ([]map[string]any, error) {
	var docs []map[string]any
	err := d.s.readOp("document.pick", func() error {
		var innerErr error
		docs, innerErr = d.s.doc.Pick(q, opts)
		return innerErr
	})
	return docs, err
}

// Count returns the number of documents matching q.
func (d *DocumentHandle) Count(q document.Query) (int, error) {
	var n int
	err := d.s.readOp("document.count", func() error {
		var innerErr error
		n, innerErr = d.s.doc.Count(q)
		return innerErr
	})
	return n, err
}

// PartialUpdate shallow-merges patch into every document matching q.
func (d *DocumentHandle) PartialUpdate(q document.Query, patch map[string]any) (int, error) {
	var n int
	err := d.s.writeOp("document.partialUpdate", func() error {
		var innerErr error
		n, innerErr = d.s.doc.PartialUpdate(q, patch)
		return innerErr
	})
	return n, err
}

// FullUpdate replaces every non-timestamp field of each matching document.
func (d *DocumentHandle) FullUpdate(q document.Query, doc map[string]any) (int, error) {
	var n int
	err := d.s.writeOp("document.fullUpdate", func() error {
		var innerErr error
		n, innerErr = d.s.doc.FullUpdate(q, doc)
		return innerErr
	})
	return n, err
}

// Delete removes every document matching q.
func (d *DocumentHandle) Delete(q document.Query) (int, error) {
	var n int
	err := d.s.writeOp("document.delete", func() error {
		var innerErr error
		n, innerErr = d.s.doc.Delete(q)
		return innerErr
	})
	return n, err
}

// Migrate bumps the table version and re-validates every document
// through newTable.
func (d *DocumentHandle) Migrate(newTable document.Table) ([]string, error) {
	var failed []string
	err := d.s.writeOp("document.migrate", func() error {
		var innerErr error
		failed, innerErr = d.s.doc.Migrate(newTable)
		return innerErr
	})
	return failed, err
}

// ExportData streams every live document as newline-delimited JSON.
func (d *DocumentHandle) ExportData(w io.Writer) error {
	return d.s.readOp("document.exportData", func() error {
		return d.s.doc.ExportData(w)
	})
}

// ImportData replays an ExportData stream through Put.
func (d *DocumentHandle) ImportData(r io.Reader) (int, error) {
	var n int
	err := d.s.writeOp("document.importData", func() error {
		var innerErr error
		n, innerErr = d.s.doc.ImportData(r)
		return innerErr
	})
	return n, err
}

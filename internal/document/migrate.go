package document

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/klaf-go/klaf/internal/bptree"
)

// Migrate bumps the table version, installs newTable, and re-validates
// every live document through it, rebuilding every field's B+Tree from
// scratch. Documents that fail the new validator are reported in the
// returned slice, not silently dropped, per §4.F.
func (s *Store) Migrate(newTable Table) ([]string, error) {
	ids, err := s.Query(Query{})
	if err != nil {
		return nil, err
	}
	type snapshot struct {
		id  string
		doc map[string]any
	}
	docs := make([]snapshot, 0, len(ids))
	for _, id := range ids.Slice() {
		rec, err := s.ps.Pick(id)
		if err != nil {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal(rec.Payload, &doc); err != nil {
			continue
		}
		docs = append(docs, snapshot{id: id, doc: doc})
	}

	s.table = newTable
	s.trees = map[string]bptree.Tree{}
	s.root.Head = map[string]string{}
	s.root.TableVersion++

	var failed []string
	for _, snap := range docs {
		normalized, err := s.normalize(snap.doc)
		if err != nil {
			failed = append(failed, snap.id)
			continue
		}
		normalized["documentIndex"] = snap.doc["documentIndex"]
		normalized["createdAt"] = snap.doc["createdAt"]
		normalized["updatedAt"] = float64(time.Now().UnixMilli())

		data, err := json.Marshal(normalized)
		if err != nil {
			failed = append(failed, snap.id)
			continue
		}
		if _, err := s.ps.Update(snap.id, data); err != nil {
			failed = append(failed, snap.id)
			continue
		}
		for field, v := range normalized {
			t, err := s.treeFor(field)
			if err != nil {
				return failed, err
			}
			if err := t.Insert(v, []byte(snap.id)); err != nil {
				return failed, err
			}
			s.syncTreeRoot(field, t)
		}
	}
	s.logger.Info("document migrate", "tableVersion", s.root.TableVersion, "failed", len(failed))
	if err := s.saveRoot(); err != nil {
		return failed, err
	}
	return failed, nil
}

// ExportData streams every live document as newline-delimited JSON.
func (s *Store) ExportData(w io.Writer) error {
	ids, err := s.Query(Query{})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, id := range ids.Slice() {
		rec, err := s.ps.Pick(id)
		if err != nil {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal(rec.Payload, &doc); err != nil {
			return err
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	return nil
}

// ImportData replays a newline-delimited JSON stream (as produced by
// ExportData) through Put, preserving documentIndex only when this store
// holds no documents yet — otherwise every document is re-assigned a
// fresh index, consistent with autoIncrement being per-store. Emptiness
// is judged by the document count, not the page store's record count,
// since the root record and every field's B+Tree nodes already occupy
// page-store slots before the first document is ever put.
func (s *Store) ImportData(r io.Reader) (int, error) {
	existing, err := s.Count(Query{})
	if err != nil {
		return 0, err
	}
	preserveIndex := existing == 0
	dec := json.NewDecoder(r)
	n := 0
	for {
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return n, err
		}
		var putErr error
		if idx, ok := doc["documentIndex"].(float64); ok && preserveIndex {
			_, putErr = s.put(doc, idx, true)
		} else {
			_, putErr = s.put(doc, 0, false)
		}
		if putErr != nil {
			return n, putErr
		}
		n++
	}
	return n, nil
}

package document

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/klaf-go/klaf/internal/bptree"
	"github.com/klaf-go/klaf/internal/kerr"
	"github.com/klaf-go/klaf/internal/setalgebra"
)

// normalize applies the table schema's defaults and validators to doc,
// per §4.F.2.
func (s *Store) normalize(doc map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(doc)+len(s.table))
	for k, v := range doc {
		out[k] = v
	}
	for field, schema := range s.table {
		v, present := out[field]
		if !present {
			if schema.Default == nil {
				continue
			}
			v = schema.Default()
			out[field] = v
		}
		if schema.Validate != nil && !schema.Validate(v) {
			return nil, &kerr.FieldError{Field: field, Value: v, Err: kerr.ErrValidation}
		}
	}
	return out, nil
}

// Put normalizes, validates, and stores doc, indexing every top-level
// field, per §4.F.2.
func (s *Store) Put(doc map[string]any) (string, error) {
	return s.put(doc, 0, false)
}

func (s *Store) put(doc map[string]any, forcedIndex float64, forceIndex bool) (string, error) {
	normalized, err := s.normalize(doc)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	id, err := s.ps.Put(data)
	if err != nil {
		return "", err
	}

	now := float64(time.Now().UnixMilli())
	if forceIndex {
		normalized["documentIndex"] = forcedIndex
	} else {
		normalized["documentIndex"] = float64(s.ps.AutoIncrement())
	}
	normalized["createdAt"] = now
	normalized["updatedAt"] = now

	final, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	if _, err := s.ps.Update(id, final); err != nil {
		return "", err
	}

	for field, v := range normalized {
		t, err := s.treeFor(field)
		if err != nil {
			return "", err
		}
		if err := t.Insert(v, []byte(id)); err != nil {
			return "", err
		}
		s.syncTreeRoot(field, t)
	}
	if err := s.saveRoot(); err != nil {
		return "", err
	}
	s.logger.Debug("document put", "id", id)
	return id, nil
}

// parseCondition builds a bptree.Condition from a query value: either a
// bare scalar (equal shorthand) or a condition map, per §4.F.3.
func parseCondition(raw any) bptree.Condition {
	m, ok := raw.(map[string]any)
	if !ok {
		return bptree.EqualCondition(raw)
	}
	var c bptree.Condition
	if v, ok := m["equal"]; ok {
		c.Equal, c.HasEqual = v, true
	}
	if v, ok := m["notEqual"]; ok {
		c.NotEqual, c.HasNotEqual = v, true
	}
	if v, ok := m["gt"]; ok {
		c.GT, c.HasGT = v, true
	}
	if v, ok := m["gte"]; ok {
		c.GTE, c.HasGTE = v, true
	}
	if v, ok := m["lt"]; ok {
		c.LT, c.HasLT = v, true
	}
	if v, ok := m["lte"]; ok {
		c.LTE, c.HasLTE = v, true
	}
	if v, ok := m["like"]; ok {
		if str, ok2 := v.(string); ok2 {
			c.Like, c.HasLike = str, true
		}
	}
	return c
}

func sortedKeys(q Query) []string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Query evaluates q against every declared field (in deterministic,
// sorted field-name order) and intersects the per-field results with the
// implicit `documentIndex > 0` predicate, per §4.F.3.
func (s *Store) Query(q Query) (bptree.Set, error) {
	sets := make([]bptree.Set, 0, len(q)+1)
	for _, field := range sortedKeys(q) {
		t, err := s.treeFor(field)
		if err != nil {
			return nil, err
		}
		matched, err := t.Keys(parseCondition(q[field]), nil)
		if err != nil {
			return nil, err
		}
		sets = append(sets, matched)
	}
	t, err := s.treeFor("documentIndex")
	if err != nil {
		return nil, err
	}
	all, err := t.Keys(bptree.Condition{GT: float64(0), HasGT: true}, nil)
	if err != nil {
		return nil, err
	}
	sets = append(sets, all)
	return setalgebra.Intersect(sets...), nil
}

// Count returns the number of documents matching q without materializing
// them, per §4.F's Count supplement.
func (s *Store) Count(q Query) (int, error) {
	ids, err := s.Query(q)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Pick returns every document matching q, ordered per opts when
// opts.Order is set, per §4.F.6.
func (s *Store) Pick(q Query, opts PickOptions) ([]map[string]any, error) {
	ids, err := s.Query(q)
	if err != nil {
		return nil, err
	}
	docs := make([]map[string]any, 0, len(ids))
	for _, id := range ids.Slice() {
		rec, err := s.ps.Pick(id)
		if err != nil {
			if kerr.Is(err, kerr.ErrAlreadyDeleted) {
				continue
			}
			return nil, err
		}
		var doc map[string]any
		if err := json.Unmarshal(rec.Payload, &doc); err != nil {
			return nil, err
		}
		doc["_id"] = id
		docs = append(docs, doc)
	}
	if opts.Order != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			c := bptree.Compare(docs[i][opts.Order], docs[j][opts.Order])
			if opts.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	return docs, nil
}

// PartialUpdate shallow-merges patch into every document matching q, per
// §4.F.4.
func (s *Store) PartialUpdate(q Query, patch map[string]any) (int, error) {
	return s.updateMatching(q, patch, false)
}

// FullUpdate replaces every non-timestamp field of each matching document
// with patch, per §4.F.4.
func (s *Store) FullUpdate(q Query, doc map[string]any) (int, error) {
	return s.updateMatching(q, doc, true)
}

func (s *Store) updateMatching(q Query, patch map[string]any, full bool) (int, error) {
	ids, err := s.Query(q)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids.Slice() {
		rec, err := s.ps.Pick(id)
		if err != nil {
			continue
		}
		var current map[string]any
		if err := json.Unmarshal(rec.Payload, &current); err != nil {
			return n, err
		}

		var next map[string]any
		if full {
			next = make(map[string]any, len(patch)+3)
			for k, v := range patch {
				next[k] = v
			}
		} else {
			next = make(map[string]any, len(current)+len(patch))
			for k, v := range current {
				next[k] = v
			}
			for k, v := range patch {
				next[k] = v
			}
		}
		next["documentIndex"] = current["documentIndex"]
		next["createdAt"] = current["createdAt"]
		next["updatedAt"] = float64(time.Now().UnixMilli())

		for field, oldVal := range current {
			if newVal, ok := next[field]; ok && bptree.Equal(oldVal, newVal) {
				continue
			}
			t, err := s.treeFor(field)
			if err != nil {
				return n, err
			}
			if err := t.Delete(oldVal, []byte(id)); err != nil {
				return n, err
			}
			s.syncTreeRoot(field, t)
		}
		for field, newVal := range next {
			if oldVal, ok := current[field]; ok && bptree.Equal(oldVal, newVal) {
				continue
			}
			t, err := s.treeFor(field)
			if err != nil {
				return n, err
			}
			if err := t.Insert(newVal, []byte(id)); err != nil {
				return n, err
			}
			s.syncTreeRoot(field, t)
		}

		data, err := json.Marshal(next)
		if err != nil {
			return n, err
		}
		if _, err := s.ps.Update(id, data); err != nil {
			return n, err
		}
		n++
	}
	if err := s.saveRoot(); err != nil {
		return n, err
	}
	return n, nil
}

// Delete removes every document matching q, per §4.F.5.
func (s *Store) Delete(q Query) (int, error) {
	ids, err := s.Query(q)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids.Slice() {
		rec, err := s.ps.Pick(id)
		if err != nil {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal(rec.Payload, &doc); err != nil {
			return n, err
		}
		for field, v := range doc {
			t, err := s.treeFor(field)
			if err != nil {
				return n, err
			}
			if err := t.Delete(v, []byte(id)); err != nil {
				return n, err
			}
			s.syncTreeRoot(field, t)
		}
		if err := s.ps.Delete(id); err != nil {
			return n, err
		}
		n++
	}
	if err := s.saveRoot(); err != nil {
		return n, err
	}
	return n, nil
}

// Package setalgebra provides the intersection/union composition needed to
// combine per-field query results (§4.G), kept separate from
// internal/bptree since the document layer composes sets across several
// independent trees, not within one.
package setalgebra

import "github.com/klaf-go/klaf/internal/bptree"

// Intersect returns the ids common to every set. Intersecting zero sets
// returns an empty set.
func Intersect(sets ...bptree.Set) bptree.Set {
	if len(sets) == 0 {
		return bptree.NewSet()
	}
	out := make(bptree.Set, len(sets[0]))
	for id := range sets[0] {
		in := true
		for _, s := range sets[1:] {
			if !s.Has(id) {
				in = false
				break
			}
		}
		if in {
			out.Add(id)
		}
	}
	return out
}

// Union returns the ids present in any set.
func Union(sets ...bptree.Set) bptree.Set {
	out := make(bptree.Set)
	for _, s := range sets {
		for id := range s {
			out.Add(id)
		}
	}
	return out
}

// Package document implements the schema-validated JSON document layer of
// §4.F: per-field B+Tree indexing, query composition, ordering,
// and the table-versioning/export-import supplements of §4.F.
package document

// FieldSchema declares one document field's default value and validator.
type FieldSchema struct {
	// Default supplies a value when the field is absent from a Put call.
	// Nil means the field has no default and is simply omitted if absent.
	Default func() any

	// Validate rejects a present value by returning false. Nil means any
	// value is accepted.
	Validate func(any) bool
}

// Table is a document schema: the set of fields Put normalizes and
// validates against, per §4.F.2.
type Table map[string]FieldSchema

// Query maps a field name to a condition. The condition is either a bare
// scalar (shorthand for {equal: v}) or a map with one or more of
// equal/notEqual/gt/gte/lt/lte/like, per §4.F.3.
type Query map[string]any

// PickOptions controls result ordering for Pick, per §4.F.6 and
// the S6 scenario of §8.
type PickOptions struct {
	Order string
	Desc  bool
}

// reassignment is the element type of the root JSON's "reassignments"
// field. Nothing in this module appends to that field or reads it back: a
// freshly created root carries it as an empty array, and an opened root keeps
// whatever entries it was stored with. DESIGN.md records this as an
// open-question decision.
type reassignment struct {
	From string `json:"from"`
	To   string `json:"to"`
	At   int64  `json:"at"`
}

// rootDoc is the JSON shape of the document layer's record 1, per
// §4.F.1: `{ verify, tableVersion, head:{}, reassignments:[] }`.
type rootDoc struct {
	Verify        string            `json:"verify"`
	TableVersion  int               `json:"tableVersion"`
	Head          map[string]string `json:"head"`
	Reassignments []reassignment    `json:"reassignments"`
}

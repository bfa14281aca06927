// Package bptree pins the external B+Tree collaborator interface of
// §6 and ships a concrete implementation behind it (§4.E), shaped after a
// leaf/internal split-and-promote on-disk B-Tree design but generalized to
// the ordered Key type below instead of a fixed uint64.
package bptree

import (
	"encoding/json"
	"fmt"
)

// Key is one index value: a JSON scalar (nil, bool, float64, or string, as
// produced by decoding a document field with encoding/json).
type Key = any

// Compare implements the total order of §4.F.6: null/true/false
// normalize to 0/1/0, numeric values compare by subtraction sign, and
// everything else falls back to lexicographic comparison of the
// stringified form.
func Compare(a, b Key) int {
	af, aNum := numericOf(a)
	bf, bNum := numericOf(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := stringOf(a), stringOf(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// Equal reports whether a and b compare equal under Compare.
func Equal(a, b Key) bool { return Compare(a, b) == 0 }

func numericOf(k Key) (float64, bool) {
	switch v := k.(type) {
	case nil:
		return 0, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func stringOf(k Key) string {
	switch v := k.(type) {
	case nil:
		return "0"
	case bool:
		if v {
			return "1"
		}
		return "0"
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

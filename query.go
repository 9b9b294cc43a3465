// Filter evaluation and sorting for search requests.

package docdex

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
)

// defaultSearchSize caps search results when the request does not set Size.
const defaultSearchSize = 10

// Query is a search request: an optional filter, an optional ordering, and a
// result cap applied last.
type Query struct {
	Query *Filter    `json:"query,omitempty"`
	Sort  []SortSpec `json:"sort,omitempty"`
	Size  int        `json:"size,omitempty"`
}

// Filter is a single filter clause. Exactly one of the fields is honored,
// checked in declaration order: a Filter carrying both Term and Terms
// evaluates only Term.
type Filter struct {
	Term  map[string]any   `json:"term,omitempty"`
	Terms map[string][]any `json:"terms,omitempty"`
	Bool  *BoolFilter      `json:"bool,omitempty"`
}

// BoolFilter composes sub-filters. Only the first present of Must, Should,
// MustNot is evaluated; the keys are never combined.
type BoolFilter struct {
	Must    []Filter `json:"must,omitempty"`
	Should  []Filter `json:"should,omitempty"`
	MustNot []Filter `json:"must_not,omitempty"`
}

// SortSpec orders results by one field: {"field": {"order": "desc"}}.
type SortSpec map[string]SortOptions

// SortOptions carries the direction for one sort field. An empty Order
// means ascending.
type SortOptions struct {
	Order string `json:"order,omitempty"`
}

// Hit is one search result: the document id and its full body.
type Hit struct {
	ID     string         `json:"_id"`
	Source map[string]any `json:"_source"`
}

// Hits is the inner result envelope.
type Hits struct {
	Total int   `json:"total"`
	Hits  []Hit `json:"hits"`
}

// SearchResult is the outer result envelope, shaped like a search-engine
// response so callers written against one can consume it unchanged.
type SearchResult struct {
	Hits Hits `json:"hits"`
}

// matches reports whether the document passes the filter. A nil or empty
// filter passes everything.
func (f *Filter) matches(id string, body map[string]any) bool {
	if f == nil {
		return true
	}
	switch {
	case len(f.Term) > 0:
		for field, want := range f.Term {
			if field == "_id" {
				if !equalValues(id, want) {
					return false
				}
				continue
			}
			if !equalValues(body[field], want) {
				return false
			}
		}
		return true
	case len(f.Terms) > 0:
		for field, wants := range f.Terms {
			if !slices.ContainsFunc(wants, func(w any) bool { return equalValues(body[field], w) }) {
				return false
			}
		}
		return true
	case f.Bool != nil:
		return f.Bool.matches(id, body)
	}
	return true
}

func (b *BoolFilter) matches(id string, body map[string]any) bool {
	switch {
	case len(b.Must) > 0:
		for i := range b.Must {
			if !b.Must[i].matches(id, body) {
				return false
			}
		}
		return true
	case len(b.Should) > 0:
		for i := range b.Should {
			if b.Should[i].matches(id, body) {
				return true
			}
		}
		return false
	case len(b.MustNot) > 0:
		for i := range b.MustNot {
			if b.MustNot[i].matches(id, body) {
				return false
			}
		}
		return true
	}
	return true
}

// equalValues compares for filter equality with loose numeric coercion, so a
// query written with an int matches a body value decoded as float64.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	}
	return reflect.DeepEqual(a, b)
}

// toFloat coerces the numeric types seen in decoded JSON and in Go callers.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// sortHits orders hits in place by the sort specs. The first spec has the
// highest priority; each comparison is stable so later specs only break
// ties. Returns ErrUnorderable when a compared value cannot be ordered.
func sortHits(hits []Hit, specs []SortSpec) error {
	if len(specs) == 0 {
		return nil
	}
	type key struct {
		field string
		desc  bool
	}
	var keys []key
	for _, spec := range specs {
		// A spec holds a single field; iterate sorted for determinism if a
		// caller supplies more.
		for _, field := range sortedKeys(spec) {
			keys = append(keys, key{field: field, desc: spec[field].Order == "desc"})
		}
	}

	var sortErr error
	slices.SortStableFunc(hits, func(a, b Hit) int {
		for _, k := range keys {
			c, err := compareValues(a.Source[k.field], b.Source[k.field])
			if err != nil {
				if sortErr == nil {
					sortErr = fmt.Errorf("sort field %q: %w", k.field, err)
				}
				return 0
			}
			if c != 0 {
				if k.desc {
					return -c
				}
				return c
			}
		}
		return 0
	})
	return sortErr
}

// compareValues returns -1/0/1 over the natural ordering of JSON scalars.
// nil sorts before everything; objects, arrays, and mixed incompatible
// types are unorderable.
func compareValues(a, b any) (int, error) {
	if a == nil && b == nil {
		return 0, nil
	}
	if a == nil {
		return -1, nil
	}
	if b == nil {
		return 1, nil
	}

	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmp.Compare(fa, fb), nil
		}
		return 0, ErrUnorderable
	}
	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return cmp.Compare(va, vb), nil
		}
	case bool:
		if vb, ok := b.(bool); ok {
			switch {
			case va == vb:
				return 0, nil
			case !va:
				return -1, nil
			default:
				return 1, nil
			}
		}
	}
	return 0, ErrUnorderable
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

// Table is an insertion-ordered keyword -> value mapping.
//
// Description:
//
//	Go maps do not preserve insertion order, but the resolution pipeline's
//	"default to the first entry" rule and the matcher's deterministic
//	tie-breaking both require the order the crawler wrote the JSON in.
//	Table keeps a key slice alongside the map to make that order a
//	first-class property.
//
// Thread Safety: Table is not safe for concurrent mutation. Tables are built
// once at load time and treated as immutable afterwards; concurrent reads are
// safe.
type Table[V any] struct {
	keys []string
	vals map[string]V
}

// NewTable creates an empty ordered table.
func NewTable[V any]() *Table[V] {
	return &Table[V]{vals: make(map[string]V)}
}

// Set inserts or replaces a keyword. A new keyword is appended to the
// iteration order; replacing an existing keyword keeps its original position.
func (t *Table[V]) Set(keyword string, value V) {
	if _, ok := t.vals[keyword]; !ok {
		t.keys = append(t.keys, keyword)
	}
	t.vals[keyword] = value
}

// Get looks up a keyword.
func (t *Table[V]) Get(keyword string) (V, bool) {
	v, ok := t.vals[keyword]
	return v, ok
}

// Len returns the number of entries.
func (t *Table[V]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Keys returns the keywords in insertion order. The returned slice is shared;
// callers must not mutate it.
func (t *Table[V]) Keys() []string {
	if t == nil {
		return nil
	}
	return t.keys
}

// First returns the first entry in insertion order.
//
// Outputs:
//   - string: The first keyword. Empty if the table is empty.
//   - V: The first value.
//   - bool: False if the table is empty.
func (t *Table[V]) First() (string, V, bool) {
	if t.Len() == 0 {
		var zero V
		return "", zero, false
	}
	k := t.keys[0]
	return k, t.vals[k], true
}

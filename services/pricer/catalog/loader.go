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

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
)

// Dictionary file names written by the SKU discovery crawler.
const (
	ProductsFile = "products.json"
	SizesFile    = "sizes.json"
	CoversFile   = "covers.json"
	FabricsFile  = "fabrics.json"
)

// Catalog is one immutable snapshot of the four lookup dictionaries.
//
// Description:
//
//	Products maps keyword -> product record. Sizes, Covers and Fabrics are
//	scoped per product SKU: outer key is the product SKU, inner table maps
//	keyword -> SKU (sizes, covers) or keyword -> fabric record (fabrics).
//
// Thread Safety: A Catalog is never mutated after Load returns. Replace whole
// snapshots through Store instead of editing tables in place.
type Catalog struct {
	Products *Table[ProductEntry]
	Sizes    map[string]*Table[string]
	Covers   map[string]*Table[string]
	Fabrics  map[string]*Table[FabricEntry]
}

// SizesFor returns the size sub-table for a product SKU. Never nil.
func (c *Catalog) SizesFor(productSKU string) *Table[string] {
	if t, ok := c.Sizes[productSKU]; ok {
		return t
	}
	return NewTable[string]()
}

// CoversFor returns the cover sub-table for a product SKU. Never nil.
func (c *Catalog) CoversFor(productSKU string) *Table[string] {
	if t, ok := c.Covers[productSKU]; ok {
		return t
	}
	return NewTable[string]()
}

// FabricsFor returns the fabric sub-table for a product SKU. Never nil.
func (c *Catalog) FabricsFor(productSKU string) *Table[FabricEntry] {
	if t, ok := c.Fabrics[productSKU]; ok {
		return t
	}
	return NewTable[FabricEntry]()
}

// Load reads the four dictionary files from dir.
//
// Description:
//
//	All four files must exist and parse; a missing or malformed dictionary is
//	a fatal startup condition for the serving binary, never a per-request
//	error. Key order from the JSON files is preserved (see Table).
//
// Inputs:
//   - dir: Directory containing the crawler's JSON output.
//
// Outputs:
//   - *Catalog: The loaded snapshot.
//   - error: Non-nil if any file is missing, unreadable, or malformed.
func Load(dir string) (*Catalog, error) {
	products, err := loadTable[ProductEntry](filepath.Join(dir, ProductsFile))
	if err != nil {
		return nil, err
	}
	sizes, err := loadScopedTables[string](filepath.Join(dir, SizesFile))
	if err != nil {
		return nil, err
	}
	covers, err := loadScopedTables[string](filepath.Join(dir, CoversFile))
	if err != nil {
		return nil, err
	}
	fabrics, err := loadScopedTables[FabricEntry](filepath.Join(dir, FabricsFile))
	if err != nil {
		return nil, err
	}

	slog.Info("Catalog dictionaries loaded",
		slog.String("dir", dir),
		slog.Int("products", products.Len()),
		slog.Int("size_scopes", len(sizes)),
		slog.Int("cover_scopes", len(covers)),
		slog.Int("fabric_scopes", len(fabrics)),
	)

	return &Catalog{
		Products: products,
		Sizes:    sizes,
		Covers:   covers,
		Fabrics:  fabrics,
	}, nil
}

// loadTable decodes a single-level {keyword: value} JSON object preserving
// key order.
func loadTable[V any](path string) (*Table[V], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	table, err := decodeTable[V](dec)
	if err != nil {
		return nil, fmt.Errorf("catalog: parsing %s: %w", filepath.Base(path), err)
	}
	return table, nil
}

// loadScopedTables decodes a two-level {productSKU: {keyword: value}} JSON
// object. Inner tables preserve key order; the outer level is keyed lookup
// only, so a plain map suffices.
func loadScopedTables[V any](path string) (map[string]*Table[V], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("catalog: parsing %s: %w", filepath.Base(path), err)
	}

	scoped := make(map[string]*Table[V])
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("catalog: parsing %s: %w", filepath.Base(path), err)
		}
		sku, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("catalog: parsing %s: expected object key, got %v", filepath.Base(path), tok)
		}
		inner, err := decodeTable[V](dec)
		if err != nil {
			return nil, fmt.Errorf("catalog: parsing %s (scope %q): %w", filepath.Base(path), sku, err)
		}
		scoped[sku] = inner
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, fmt.Errorf("catalog: parsing %s: %w", filepath.Base(path), err)
	}
	return scoped, nil
}

// decodeTable consumes one {keyword: value} object from the decoder, keeping
// keys in document order. encoding/json's map decoding would lose the order,
// so the object is walked token by token.
func decodeTable[V any](dec *json.Decoder) (*Table[V], error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	table := NewTable[V]()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keyword, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var value V
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("value for keyword %q: %w", keyword, err)
		}
		table.Set(keyword, value)
	}
	return table, expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// Store holds the current Catalog snapshot and supports atomic replacement.
//
// Description:
//
//	Request handlers read a snapshot once at the start of a request and use
//	it throughout, so a concurrent reload can never change table contents
//	mid-pipeline. The watcher swaps in a full new snapshot or leaves the old
//	one untouched.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	current atomic.Pointer[Catalog]
}

// NewStore creates a Store seeded with an initial snapshot.
func NewStore(initial *Catalog) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Snapshot returns the current catalog.
func (s *Store) Snapshot() *Catalog {
	return s.current.Load()
}

// Replace atomically swaps in a new snapshot.
func (s *Store) Replace(c *Catalog) {
	s.current.Store(c)
}

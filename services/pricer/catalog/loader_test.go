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
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeDict(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeTestDictionaries(t *testing.T, dir string) {
	t.Helper()
	writeDict(t, dir, ProductsFile, `{
		"alwinton": {"sku": "alw", "type": "sofa", "full_name": "Alwinton Sofa", "url": "/sofas/alwinton", "price": 1899, "price_display": "£1,899"},
		"petworth": {"sku": "ptw", "type": "footstool", "full_name": "Petworth Footstool", "url": "/footstools/petworth", "price": 349, "price_display": "£349"}
	}`)
	writeDict(t, dir, SizesFile, `{
		"alw": {"snuggler": "sng", "3 seater": "3st", "4 seater": "4st"},
		"ptw": {"standard": "std", "large": "lrg"}
	}`)
	writeDict(t, dir, CoversFile, `{
		"alw": {"fit": "fitcov", "loose": "loosecov"},
		"ptw": {"loose": "loosecov"}
	}`)
	writeDict(t, dir, FabricsFile, `{
		"alw": {
			"pacific": {"fabric_sku": "sxp", "color_sku": "pac", "fabric_name": "House Plain", "color_name": "Pacific", "tier": "Essentials", "collection": "House", "desc": "A hardwearing plain", "swatch_url": "/swatches/pacific.jpg"}
		},
		"ptw": {
			"waves": {"fabric_sku": "wvs", "color_sku": "blu", "fabric_name": "Waves", "color_name": "Blue", "tier": "Premium", "collection": "Coast", "desc": "", "swatch_url": ""}
		}
	}`)
}

func TestLoad_AllDictionaries(t *testing.T) {
	dir := t.TempDir()
	writeTestDictionaries(t, dir)

	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cat.Products.Len() != 2 {
		t.Errorf("products = %d, want 2", cat.Products.Len())
	}
	entry, ok := cat.Products.Get("alwinton")
	if !ok || entry.SKU != "alw" || entry.Type != TypeSofa {
		t.Errorf("alwinton entry = %+v", entry)
	}
	if entry.BasePrice != 1899 {
		t.Errorf("BasePrice = %d, want 1899", entry.BasePrice)
	}

	sizes := cat.SizesFor("alw")
	if want := []string{"snuggler", "3 seater", "4 seater"}; !reflect.DeepEqual(sizes.Keys(), want) {
		t.Errorf("size order = %v, want %v", sizes.Keys(), want)
	}

	fab, ok := cat.FabricsFor("alw").Get("pacific")
	if !ok || fab.FabricSKU != "sxp" || fab.ColorSKU != "pac" || fab.Tier != TierEssentials {
		t.Errorf("pacific fabric = %+v", fab)
	}
}

func TestLoad_PreservesDocumentOrder(t *testing.T) {
	dir := t.TempDir()
	writeTestDictionaries(t, dir)
	// Deliberately not alphabetical: document order must survive.
	writeDict(t, dir, SizesFile, `{"alw": {"zeta": "z", "alpha": "a", "mid": "m"}}`)

	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []string{"zeta", "alpha", "mid"}
	if got := cat.SizesFor("alw").Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	k, v, _ := cat.SizesFor("alw").First()
	if k != "zeta" || v != "z" {
		t.Errorf("First() = (%q, %q), want (zeta, z)", k, v)
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	dir := t.TempDir()
	writeTestDictionaries(t, dir)
	if err := os.Remove(filepath.Join(dir, CoversFile)); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); err == nil {
		t.Fatal("Load should fail when a dictionary file is missing")
	}
}

func TestLoad_MalformedJSONFails(t *testing.T) {
	dir := t.TempDir()
	writeTestDictionaries(t, dir)
	writeDict(t, dir, FabricsFile, `{"alw": {"pacific": [1, 2, 3`)

	if _, err := Load(dir); err == nil {
		t.Fatal("Load should fail on malformed JSON")
	}
}

func TestLoad_WrongShapeFails(t *testing.T) {
	dir := t.TempDir()
	writeTestDictionaries(t, dir)
	writeDict(t, dir, ProductsFile, `["not", "an", "object"]`)

	if _, err := Load(dir); err == nil {
		t.Fatal("Load should fail when the top level is not an object")
	}
}

func TestCatalog_ScopedLookupsNeverNil(t *testing.T) {
	dir := t.TempDir()
	writeTestDictionaries(t, dir)
	cat, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cat.SizesFor("no-such-sku"); got == nil || got.Len() != 0 {
		t.Error("SizesFor unknown SKU should return an empty table, not nil")
	}
	if got := cat.FabricsFor("no-such-sku"); got == nil || got.Len() != 0 {
		t.Error("FabricsFor unknown SKU should return an empty table, not nil")
	}
}

func TestStore_SnapshotAndReplace(t *testing.T) {
	dir := t.TempDir()
	writeTestDictionaries(t, dir)
	first, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	store := NewStore(first)
	if store.Snapshot() != first {
		t.Error("Snapshot should return the seeded catalog")
	}

	second, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	store.Replace(second)
	if store.Snapshot() != second {
		t.Error("Snapshot should return the replaced catalog")
	}
}

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
	"context"
	"testing"
	"time"
)

func newWatchedStore(t *testing.T) (string, *Store) {
	t.Helper()
	dir := t.TempDir()
	writeTestDictionaries(t, dir)
	cat, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, NewStore(cat)
}

func TestWatcher_ReloadKeepsOldSnapshotOnBadData(t *testing.T) {
	dir, store := newWatchedStore(t)
	before := store.Snapshot()
	w := NewWatcher(dir, store)

	// A half-written crawler run leaves one file broken.
	writeDict(t, dir, ProductsFile, `{"alwinton": {"sku":`)
	w.reload()

	after := store.Snapshot()
	if after != before {
		t.Fatal("failed reload must not swap the snapshot")
	}
	if _, ok := after.Products.Get("alwinton"); !ok {
		t.Error("old snapshot should keep serving its products")
	}
}

func TestWatcher_ReloadSwapsOnSuccess(t *testing.T) {
	dir, store := newWatchedStore(t)
	before := store.Snapshot()
	w := NewWatcher(dir, store)

	writeDict(t, dir, ProductsFile, `{
		"alwinton": {"sku": "alw", "type": "sofa", "full_name": "Alwinton Sofa", "url": "/sofas/alwinton", "price": 1899, "price_display": "£1,899"},
		"petworth": {"sku": "ptw", "type": "footstool", "full_name": "Petworth Footstool", "url": "/footstools/petworth", "price": 349, "price_display": "£349"},
		"otterden": {"sku": "ott", "type": "sofa", "full_name": "Otterden Sofa", "url": "/sofas/otterden", "price": 2199, "price_display": "£2,199"}
	}`)
	w.reload()

	after := store.Snapshot()
	if after == before {
		t.Fatal("successful reload should swap the snapshot")
	}
	if after.Products.Len() != 3 {
		t.Errorf("products = %d, want 3", after.Products.Len())
	}
	if _, ok := after.Products.Get("otterden"); !ok {
		t.Error("new product should be visible after the swap")
	}
}

func TestWatcher_RunPicksUpRewrite(t *testing.T) {
	dir, store := newWatchedStore(t)
	w := NewWatcher(dir, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give the watcher a moment to register before rewriting.
	time.Sleep(100 * time.Millisecond)

	writeDict(t, dir, ProductsFile, `{
		"alwinton": {"sku": "alw", "type": "sofa", "full_name": "Alwinton Sofa", "url": "/sofas/alwinton", "price": 1899, "price_display": "£1,899"},
		"petworth": {"sku": "ptw", "type": "footstool", "full_name": "Petworth Footstool", "url": "/footstools/petworth", "price": 349, "price_display": "£349"},
		"otterden": {"sku": "ott", "type": "sofa", "full_name": "Otterden Sofa", "url": "/sofas/otterden", "price": 2199, "price_display": "£2,199"}
	}`)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if store.Snapshot().Products.Len() == 3 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("watcher did not pick up the rewritten dictionary")
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pricing

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/AleutianAI/PriceScout/services/pricer/resolve"
)

// Cache memoizes upstream price responses, bounded by capacity and TTL.
//
// Description:
//
//	Least-recently-used eviction with per-entry expiry. Get on an expired
//	entry removes it and reports a miss; a successful Get promotes the entry
//	to most recently used. Set on an existing key replaces the value and
//	refreshes both recency and timestamp. Inserting past capacity evicts
//	exactly the least-recently-used entry.
//
//	The cache is an injectable component, not a hidden singleton: tests
//	construct isolated instances with their own clock.
//
// Thread Safety: Safe for concurrent use. All mutation happens under one
// mutex, so a racing Get/Set pair appears atomic to callers.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recently used
	items    map[string]*list.Element
	now      func() time.Time
}

type cacheEntry struct {
	key       string
	value     *PriceResponse
	createdAt time.Time
}

// NewCache creates a cache with the given capacity and TTL.
//
// Inputs:
//   - capacity: Maximum entry count. Must be >= 1.
//   - ttl: Entry lifetime from insertion.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the cached response for key, or nil and false on a miss.
func (c *Cache) Get(key string) (*PriceResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().Sub(entry.createdAt) >= c.ttl {
		c.order.Remove(elem)
		delete(c.items, key)
		cacheLookupsTotal.WithLabelValues("expired").Inc()
		return nil, false
	}

	c.order.MoveToFront(elem)
	cacheLookupsTotal.WithLabelValues("hit").Inc()
	return entry.value, true
}

// Set stores a response under key, evicting the least-recently-used entry if
// the cache is full. Replacing an existing key refreshes recency and expiry.
func (c *Cache) Set(key string, value *PriceResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.createdAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			victim := oldest.Value.(*cacheEntry)
			c.order.Remove(oldest)
			delete(c.items, victim.key)
			cacheEvictionsTotal.Inc()
		}
	}

	elem := c.order.PushFront(&cacheEntry{key: key, value: value, createdAt: c.now()})
	c.items[key] = elem
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// CacheKey derives the deterministic cache key for a resolved configuration.
//
// Description:
//
//	SHA-256 over all six tuple fields with a separator between them. The
//	product SKU is part of the key material, not merely implied: two product
//	lines sharing identical size/cover/fabric/colour SKUs must not collide.
func CacheKey(cfg resolve.Configuration) string {
	h := sha256.New()
	for _, field := range []string{
		cfg.ProductSKU,
		string(cfg.ProductType),
		cfg.SizeSKU,
		cfg.CoverSKU,
		cfg.FabricSKU,
		cfg.ColorSKU,
	} {
		h.Write([]byte(field))
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))
}

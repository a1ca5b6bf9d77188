// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pricer is the serving engine: it composes the catalog, resolver,
// price cache, upstream client and agent loop behind the HTTP surface.
package pricer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/AleutianAI/PriceScout/services/pricer/catalog"
	"github.com/AleutianAI/PriceScout/services/pricer/pricing"
	"github.com/AleutianAI/PriceScout/services/pricer/resolve"
	"golang.org/x/sync/singleflight"
)

// PriceFetcher is the upstream client seam; tests substitute fakes.
type PriceFetcher interface {
	FetchPrice(ctx context.Context, res *resolve.Resolution) (*pricing.PriceResponse, error)
}

// Service resolves free-text queries to priced configurations.
//
// Description:
//
//	GetPrice is the one entry point shared by the direct endpoint and the
//	agent's get_price tool. Resolution runs against an immutable catalog
//	snapshot; upstream fetches for the same configuration are coalesced
//	through singleflight so a burst of identical queries costs one call.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	store   *catalog.Store
	cache   *pricing.Cache
	fetcher PriceFetcher
	flight  singleflight.Group
}

// NewService composes the serving engine.
func NewService(store *catalog.Store, cache *pricing.Cache, fetcher PriceFetcher) *Service {
	return &Service{store: store, cache: cache, fetcher: fetcher}
}

// Snapshot returns the current catalog snapshot.
func (s *Service) Snapshot() *catalog.Catalog {
	return s.store.Snapshot()
}

// GetPrice resolves and prices one free-text configuration query.
//
// Description:
//
//	Lowercases and trims the query, runs the resolution pipeline, then
//	serves from cache or fetches upstream. Cache writes are best-effort:
//	a response is returned even if another goroutine replaced the entry.
//
// Inputs:
//   - ctx: Bounds the upstream fetch.
//   - query: Raw user text.
//
// Outputs:
//   - *pricing.PriceResponse: Non-nil on success.
//   - error: A typed *resolve.Error on any failure.
func (s *Service) GetPrice(ctx context.Context, query string) (*pricing.PriceResponse, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, resolve.NewError(resolve.CodeMissingQuery,
			"Query must not be empty.")
	}

	cat := s.store.Snapshot()
	res, err := resolve.Resolve(ctx, cat, query)
	if err != nil {
		return nil, err
	}

	key := pricing.CacheKey(res.Config)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	// Coalesce concurrent fetches for the same configuration. The winning
	// call populates the cache for everyone. Followers share the winner's
	// fetch and therefore its context: if the winner's request is cancelled
	// mid-flight, every waiter gets the cancellation error and retries on
	// its next request.
	v, err, shared := s.flight.Do(key, func() (any, error) {
		resp, err := s.fetcher.FetchPrice(ctx, res)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("Coalesced duplicate upstream fetch",
			slog.String("product_sku", res.Config.ProductSKU),
		)
	}
	return v.(*pricing.PriceResponse), nil
}

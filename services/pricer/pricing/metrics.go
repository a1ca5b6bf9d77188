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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheLookupsTotal counts cache lookups by outcome.
	// Labels: outcome (hit, miss, expired)
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricescout",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Price cache lookups by outcome",
	}, []string{"outcome"})

	// cacheEvictionsTotal counts LRU evictions.
	cacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pricescout",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Price cache LRU evictions",
	})

	// upstreamRequestsTotal counts upstream pricing calls by endpoint and outcome.
	// Labels: endpoint (change_size, product_price), outcome (success, retry, error)
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricescout",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Upstream pricing API calls by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	// upstreamLatencySeconds measures upstream call latency including retries.
	// Labels: endpoint
	upstreamLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pricescout",
		Subsystem: "upstream",
		Name:      "latency_seconds",
		Help:      "Upstream pricing API latency including retries",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})
)

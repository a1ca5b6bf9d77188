// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pricer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts HTTP requests by route and outcome. The outcome
	// is the error code's registry name, or "success".
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricescout",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and outcome",
	}, []string{"route", "outcome"})

	// requestSeconds measures end-to-end handler latency.
	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pricescout",
		Subsystem: "http",
		Name:      "request_seconds",
		Help:      "Handler latency by route",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5, 15, 45},
	}, []string{"route"})

	// rateLimitRejections counts rejected requests by scope.
	rateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricescout",
		Subsystem: "ratelimit",
		Name:      "rejections_total",
		Help:      "Requests rejected by the rate limiter, by scope",
	}, []string{"scope"})
)

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// agentTurnsTotal counts completed agent turns by outcome.
	// Labels: outcome (success, model_error, budget_exhausted)
	agentTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricescout",
		Subsystem: "agent",
		Name:      "turns_total",
		Help:      "Agent conversation turns by outcome",
	}, []string{"outcome"})

	// agentIterations tracks model calls consumed per turn.
	agentIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pricescout",
		Subsystem: "agent",
		Name:      "iterations_per_turn",
		Help:      "Model calls consumed per agent turn",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})

	// agentTurnSeconds measures wall time per successful turn.
	agentTurnSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pricescout",
		Subsystem: "agent",
		Name:      "turn_seconds",
		Help:      "Wall time per successful agent turn",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
	})

	// toolCallsTotal counts tool executions by tool name.
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricescout",
		Subsystem: "agent",
		Name:      "tool_calls_total",
		Help:      "Tool executions requested by the model",
	}, []string{"tool"})
)

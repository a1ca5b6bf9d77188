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
	"sync"
	"time"
)

// Rate limit scopes reported in decisions and metrics.
const (
	ScopeGlobal  = "global"
	ScopeSession = "session"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	// Allowed is true when the request may proceed.
	Allowed bool

	// Scope names the limit that rejected the request ("global" or
	// "session"). Empty when allowed.
	Scope string

	// RetryAfter is how long the caller should wait before retrying.
	// Zero when allowed.
	RetryAfter time.Duration
}

// RateLimiter implements a dual-scope sliding window rate limiter.
//
// Description:
//
//	Two limits over the same sliding window: a global cap protecting the
//	upstream API and the LLM spend, and a per-session cap stopping a
//	single chat session from starving everyone else. The global check runs
//	first so a flood from many sessions is reported as a service-wide
//	condition, not blamed on whichever session arrived last.
//
//	Timestamps are Unix milliseconds; expired entries are pruned on every
//	check, so memory is bounded by the limits themselves. The clock is
//	injectable for tests.
//
// Thread Safety: Safe for concurrent use via sync.Mutex.
type RateLimiter struct {
	mu           sync.Mutex
	globalLimit  int
	sessionLimit int
	window       time.Duration
	global       []int64
	sessions     map[string][]int64
	now          func() time.Time
}

// NewRateLimiter creates a dual-scope limiter.
//
// Inputs:
//   - globalLimit: Requests per window across all sessions. Zero disables.
//   - sessionLimit: Requests per window per session. Zero disables.
//   - window: Sliding window width. Non-positive falls back to one minute.
func NewRateLimiter(globalLimit, sessionLimit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		globalLimit:  globalLimit,
		sessionLimit: sessionLimit,
		window:       window,
		sessions:     make(map[string][]int64),
		now:          time.Now,
	}
}

// Allow checks both scopes and records the request timestamp if permitted.
//
// Description:
//
//	The request is recorded in both windows only when both scopes pass,
//	so a rejected request never consumes quota.
//
// Inputs:
//   - sessionID: The caller's session key. Empty falls into one shared
//     session bucket.
//
// Outputs:
//   - Decision: Allowed, or the rejecting scope and a retry-after hint.
func (r *RateLimiter) Allow(sessionID string) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UnixMilli()
	windowMs := r.window.Milliseconds()
	windowStart := now - windowMs

	r.global = prune(r.global, windowStart)
	if r.globalLimit > 0 && len(r.global) >= r.globalLimit {
		rateLimitRejections.WithLabelValues(ScopeGlobal).Inc()
		return Decision{
			Scope:      ScopeGlobal,
			RetryAfter: retryAfter(r.global[0], windowMs, now),
		}
	}

	session := prune(r.sessions[sessionID], windowStart)
	if r.sessionLimit > 0 && len(session) >= r.sessionLimit {
		r.sessions[sessionID] = session
		rateLimitRejections.WithLabelValues(ScopeSession).Inc()
		return Decision{
			Scope:      ScopeSession,
			RetryAfter: retryAfter(session[0], windowMs, now),
		}
	}

	r.global = append(r.global, now)
	r.sessions[sessionID] = append(session, now)
	return Decision{Allowed: true}
}

// prune drops timestamps at or before windowStart, keeping order.
func prune(timestamps []int64, windowStart int64) []int64 {
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts > windowStart {
			kept = append(kept, ts)
		}
	}
	return kept
}

// retryAfter is the time until the oldest surviving timestamp leaves the
// window, never below zero.
func retryAfter(oldest, windowMs, now int64) time.Duration {
	d := time.Duration(oldest+windowMs-now) * time.Millisecond
	if d < 0 {
		return 0
	}
	return d
}

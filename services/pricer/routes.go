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
	"fmt"
	"net/http"

	"github.com/AleutianAI/PriceScout/services/pricer/resolve"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware rejects requests over either rate limit scope with
// 429 and a Retry-After header.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := limiter.Allow(sessionKey(c))
		if decision.Allowed {
			c.Next()
			return
		}

		code := resolve.CodeRateLimitedSession
		message := "You are sending requests too quickly. Please slow down."
		if decision.Scope == ScopeGlobal {
			code = resolve.CodeRateLimitedGlobal
			message = "The service is busy right now. Please try again shortly."
		}

		retrySecs := int(decision.RetryAfter.Seconds()) + 1
		c.Header("Retry-After", fmt.Sprintf("%d", retrySecs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Error:      message,
			Code:       string(code),
			Suggestion: fmt.Sprintf("Retry after %d seconds.", retrySecs),
		})
	}
}

// CORSMiddleware allows browser frontends to call the API directly.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Session-Id, X-Request-Id")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RegisterRoutes mounts the pricing API under the given group.
//
// Routes:
//
//	POST /price  - deterministic price lookup (rate limited)
//	POST /chat   - conversational agent (rate limited)
//	GET  /health - liveness
//	GET  /ready  - readiness (catalog loaded)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	limited := rg.Group("", RateLimitMiddleware(handlers.limiter))
	{
		limited.POST("/price", handlers.HandlePrice)
		limited.POST("/chat", handlers.HandleChat)
	}

	rg.GET("/health", handlers.HandleHealth)
	rg.GET("/ready", handlers.HandleReady)
}

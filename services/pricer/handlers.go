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
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/PriceScout/services/llm"
	"github.com/AleutianAI/PriceScout/services/pricer/agent"
	"github.com/AleutianAI/PriceScout/services/pricer/resolve"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxChatMessages bounds the conversation history accepted per chat call.
const maxChatMessages = 40

// maxMessageLen bounds a single message's content length.
const maxMessageLen = 4000

// ErrorResponse is the JSON error body for every failed request.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Code        string   `json:"code"`
	Suggestion  string   `json:"suggestion,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	RequestID   string   `json:"request_id,omitempty"`
}

// PriceRequest is the body of POST /v1/price.
type PriceRequest struct {
	Query string `json:"query"`
}

// ChatMessage is one turn of history in a chat request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Messages  []ChatMessage `json:"messages"`
	SessionID string        `json:"session_id,omitempty"`
}

// ChatResponse is the body of a successful chat call.
type ChatResponse struct {
	Response string       `json:"response"`
	Metadata ChatMetadata `json:"metadata"`
}

// ChatMetadata is the accounting block attached to each chat response.
type ChatMetadata struct {
	Tokens     int    `json:"tokens"`
	Iterations int    `json:"iterations"`
	Model      string `json:"model"`
	SessionID  string `json:"session_id,omitempty"`
	RequestID  string `json:"request_id"`
}

// Handlers holds the HTTP handler dependencies.
//
// Thread Safety: Safe for concurrent use; all fields are set once at startup.
type Handlers struct {
	service *Service
	limiter *RateLimiter
	loop    *agent.Loop
}

// NewHandlers creates the handler set. loop may be nil when no LLM API key
// is configured; the chat endpoint then reports the agent as unavailable.
func NewHandlers(service *Service, limiter *RateLimiter, loop *agent.Loop) *Handlers {
	return &Handlers{service: service, limiter: limiter, loop: loop}
}

// getOrCreateRequestID returns the inbound X-Request-Id or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

// sessionKey identifies the caller for per-session rate limiting. An
// explicit session id wins; otherwise the client IP is close enough.
func sessionKey(c *gin.Context) string {
	if id := c.GetHeader("X-Session-Id"); id != "" {
		return id
	}
	return c.ClientIP()
}

// writeError renders a typed error as the JSON error body, logging the
// internal cause server-side only.
func writeError(c *gin.Context, logger *slog.Logger, requestID string, err error) string {
	te, ok := resolve.AsError(err)
	if !ok {
		te = resolve.NewError("E9999", "Internal server error.").WithInternal(err)
	}

	if te.Internal != nil {
		logger.Error("Request failed",
			slog.String("code", string(te.Code)),
			slog.String("code_name", te.Code.Name()),
			slog.Any("error", te.Internal),
		)
	} else {
		logger.Info("Request rejected",
			slog.String("code", string(te.Code)),
			slog.String("code_name", te.Code.Name()),
		)
	}

	c.JSON(te.Code.HTTPStatus(), ErrorResponse{
		Error:       te.Message,
		Code:        string(te.Code),
		Suggestion:  te.Suggestion,
		Suggestions: te.Suggestions,
		RequestID:   requestID,
	})
	return te.Code.Name()
}

// HandlePrice handles POST /v1/price.
//
// Description:
//
//	Resolves the free-text query to an exact configuration and returns the
//	upstream price. Deterministic: no model in the path.
//
// Response:
//
//	200 OK: pricing.PriceResponse
//	4xx/5xx: ErrorResponse with a stable error code
func (h *Handlers) HandlePrice(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandlePrice")
	start := time.Now()

	var req PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		outcome := writeError(c, logger, requestID,
			resolve.NewError(resolve.CodeMalformedBody, "Request body must be valid JSON.").
				WithInternal(err))
		requestsTotal.WithLabelValues("price", outcome).Inc()
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		outcome := writeError(c, logger, requestID,
			resolve.NewError(resolve.CodeMissingQuery, "The 'query' field is required."))
		requestsTotal.WithLabelValues("price", outcome).Inc()
		return
	}

	resp, err := h.service.GetPrice(c.Request.Context(), req.Query)
	requestSeconds.WithLabelValues("price").Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := writeError(c, logger, requestID, err)
		requestsTotal.WithLabelValues("price", outcome).Inc()
		return
	}

	requestsTotal.WithLabelValues("price", "success").Inc()
	c.Header("X-Request-Id", requestID)
	c.JSON(http.StatusOK, resp)
}

// HandleChat handles POST /v1/chat.
//
// Description:
//
//	Runs the bounded agent loop over the supplied conversation history.
//	The caller sends the full history each turn; the service keeps no
//	conversation state.
//
// Response:
//
//	200 OK: ChatResponse
//	4xx/5xx: ErrorResponse with a stable error code
func (h *Handlers) HandleChat(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleChat")
	start := time.Now()

	if h.loop == nil {
		outcome := writeError(c, logger, requestID,
			resolve.NewError(resolve.CodeAgentUnavailable,
				"The chat assistant is not configured on this deployment."))
		requestsTotal.WithLabelValues("chat", outcome).Inc()
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		outcome := writeError(c, logger, requestID,
			resolve.NewError(resolve.CodeMalformedBody, "Request body must be valid JSON.").
				WithInternal(err))
		requestsTotal.WithLabelValues("chat", outcome).Inc()
		return
	}

	history, err := validateChatHistory(req.Messages)
	if err != nil {
		outcome := writeError(c, logger, requestID, err)
		requestsTotal.WithLabelValues("chat", outcome).Inc()
		return
	}

	result, err := h.loop.Run(c.Request.Context(), history)
	requestSeconds.WithLabelValues("chat").Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := writeError(c, logger, requestID, err)
		requestsTotal.WithLabelValues("chat", outcome).Inc()
		return
	}

	logger.Info("Chat turn served",
		slog.Int("iterations", result.Iterations),
		slog.Int("total_tokens", result.TotalTokens),
	)
	requestsTotal.WithLabelValues("chat", "success").Inc()
	c.Header("X-Request-Id", requestID)
	c.JSON(http.StatusOK, ChatResponse{
		Response: result.Response,
		Metadata: ChatMetadata{
			Tokens:     result.TotalTokens,
			Iterations: result.Iterations,
			Model:      result.Model,
			SessionID:  req.SessionID,
			RequestID:  requestID,
		},
	})
}

// validateChatHistory checks shape and converts to the agent's message type.
func validateChatHistory(messages []ChatMessage) ([]llm.ChatMessage, error) {
	if len(messages) == 0 {
		return nil, resolve.NewError(resolve.CodeMissingMessages,
			"The 'messages' field is required and must not be empty.")
	}
	if len(messages) > maxChatMessages {
		return nil, resolve.NewError(resolve.CodeBadMessageShape,
			"Too many messages in history.").
			WithSuggestion("Start a new conversation.")
	}

	history := make([]llm.ChatMessage, 0, len(messages))
	for i, msg := range messages {
		if msg.Role != "user" && msg.Role != "assistant" {
			return nil, resolve.NewError(resolve.CodeBadMessageShape,
				"Message roles must be 'user' or 'assistant'.")
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			return nil, resolve.NewError(resolve.CodeBadMessageShape,
				"Messages must have non-empty content.")
		}
		if len(content) > maxMessageLen {
			return nil, resolve.NewError(resolve.CodeBadMessageShape,
				"Message content is too long.")
		}
		if i == len(messages)-1 && msg.Role != "user" {
			return nil, resolve.NewError(resolve.CodeBadMessageShape,
				"The last message must be from the user.")
		}
		history = append(history, llm.ChatMessage{Role: msg.Role, Content: content})
	}
	return history, nil
}

// HandleHealth handles GET /v1/health. Liveness only.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady handles GET /v1/ready.
//
// Description:
//
//	Ready means a catalog snapshot is loaded with at least one product.
//	Load balancers should not route traffic before that.
func (h *Handlers) HandleReady(c *gin.Context) {
	cat := h.service.Snapshot()
	if cat == nil || cat.Products.Len() == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"reason": "catalog not loaded",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"products": cat.Products.Len(),
		"agent":    h.loop != nil,
	})
}

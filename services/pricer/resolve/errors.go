// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is a stable machine-readable error code.
//
// The registry spans the whole platform: E1xxx upstream/network, E2xxx
// validation and resolution, E21xx request input, E3xxx internal integrity,
// E4xxx agent/tool execution, E5xxx rate limiting. Dashboards and the
// frontend key off these values; renaming one is a breaking change.
type Code string

const (
	// E1xxx: upstream pricing API.
	CodeUpstreamTimeout     Code = "E1001"
	CodeUpstreamUnreachable Code = "E1002"
	CodeUpstreamRateLimited Code = "E1004"
	CodeUpstreamBadStatus   Code = "E1007"
	CodeUpstreamEmpty       Code = "E1008"

	// E2xxx: resolution.
	CodeProductNotFound   Code = "E2001"
	CodeAmbiguousProduct  Code = "E2002"
	CodeSizeNotFound      Code = "E2003"
	CodeFabricNotFound    Code = "E2004"
	CodeAmbiguousFabric   Code = "E2005"
	CodeFabricUnavailable Code = "E2006"

	// E21xx: request input.
	CodeMalformedBody   Code = "E2101"
	CodeMissingQuery    Code = "E2102"
	CodeMissingMessages Code = "E2103"
	CodeBadMessageShape Code = "E2104"

	// E3xxx: internal integrity.
	CodeMalformedFabricData Code = "E3001"

	// E4xxx: agent and tool execution.
	CodeAgentUnavailable   Code = "E4001"
	CodeToolInvocation     Code = "E4002"
	CodeIterationsExceeded Code = "E4003"

	// E5xxx: rate limiting.
	CodeRateLimitedSession Code = "E5001"
	CodeRateLimitedGlobal  Code = "E5002"
)

// codeNames maps codes to their registry names for logs and dashboards.
var codeNames = map[Code]string{
	CodeUpstreamTimeout:     "UPSTREAM_TIMEOUT",
	CodeUpstreamUnreachable: "UPSTREAM_UNREACHABLE",
	CodeUpstreamRateLimited: "UPSTREAM_RATE_LIMITED",
	CodeUpstreamBadStatus:   "UPSTREAM_BAD_STATUS",
	CodeUpstreamEmpty:       "UPSTREAM_EMPTY_RESPONSE",
	CodeProductNotFound:     "PRODUCT_NOT_FOUND",
	CodeAmbiguousProduct:    "AMBIGUOUS_PRODUCT",
	CodeSizeNotFound:        "SIZE_NOT_FOUND",
	CodeFabricNotFound:      "FABRIC_NOT_FOUND",
	CodeAmbiguousFabric:     "AMBIGUOUS_FABRIC",
	CodeFabricUnavailable:   "FABRIC_UNAVAILABLE",
	CodeMalformedBody:       "MALFORMED_BODY",
	CodeMissingQuery:        "MISSING_QUERY",
	CodeMissingMessages:     "MISSING_MESSAGES",
	CodeBadMessageShape:     "BAD_MESSAGE_SHAPE",
	CodeMalformedFabricData: "MALFORMED_FABRIC_DATA",
	CodeAgentUnavailable:    "AGENT_UNAVAILABLE",
	CodeToolInvocation:      "TOOL_INVOCATION_ERROR",
	CodeIterationsExceeded:  "ITERATION_BUDGET_EXHAUSTED",
	CodeRateLimitedSession:  "RATE_LIMITED_SESSION",
	CodeRateLimitedGlobal:   "RATE_LIMITED_GLOBAL",
}

// Name returns the registry name for a code, or the code itself if unknown.
func (c Code) Name() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return string(c)
}

// HTTPStatus maps a code to the status the HTTP surface responds with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeProductNotFound, CodeFabricUnavailable:
		return http.StatusNotFound
	case CodeAmbiguousProduct, CodeSizeNotFound, CodeFabricNotFound,
		CodeAmbiguousFabric, CodeMalformedBody, CodeMissingQuery,
		CodeMissingMessages, CodeBadMessageShape, CodeToolInvocation:
		return http.StatusBadRequest
	case CodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	case CodeUpstreamUnreachable, CodeUpstreamBadStatus, CodeUpstreamRateLimited:
		return http.StatusBadGateway
	case CodeRateLimitedSession, CodeRateLimitedGlobal:
		return http.StatusTooManyRequests
	case CodeAgentUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed, user-safe failure carried across the serving engine.
//
// Description:
//
//	Message and Suggestion are safe to return to clients verbatim. Internal
//	holds the underlying cause for server-side logs only; handlers must not
//	serialize it. Suggestions carries "did you mean" candidates for the
//	ambiguity codes.
type Error struct {
	Code        Code
	Message     string
	Suggestion  string
	Suggestions []string
	Internal    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Code, e.Code.Name(), e.Message, e.Internal)
	}
	return fmt.Sprintf("%s %s: %s", e.Code, e.Code.Name(), e.Message)
}

// Unwrap exposes the internal cause to errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Internal
}

// NewError builds a typed error.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithSuggestion attaches a suggested next action.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithSuggestions attaches "did you mean" candidates.
func (e *Error) WithSuggestions(s []string) *Error {
	e.Suggestions = s
	if len(s) > 0 && e.Suggestion == "" {
		e.Suggestion = "Did you mean: " + strings.Join(s, ", ") + "?"
	}
	return e
}

// WithInternal attaches the underlying cause for server-side logging.
func (e *Error) WithInternal(err error) *Error {
	e.Internal = err
	return e
}

// AsError extracts a typed *Error from any error chain.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

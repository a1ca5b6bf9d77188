// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent runs the bounded tool-orchestration loop behind the chat
// endpoint. The model never answers a price question from its own weights:
// every number it reports must come back through a tool result envelope.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/AleutianAI/PriceScout/services/llm"
	"github.com/AleutianAI/PriceScout/services/pricer/catalog"
	"github.com/AleutianAI/PriceScout/services/pricer/pricing"
	"github.com/AleutianAI/PriceScout/services/pricer/resolve"
)

// Tool names exposed to the model.
const (
	toolGetPrice             = "get_price"
	toolSearchByBudget       = "search_by_budget"
	toolSearchFabricsByColor = "search_fabrics_by_color"
)

// noFabricationWarning rides along on every failed tool result. The model
// sees it verbatim and must relay the failure instead of inventing a price.
const noFabricationWarning = "The tool call FAILED. You must NOT invent, " +
	"estimate, or guess a price. Tell the user what went wrong and suggest " +
	"how to fix their query using the suggestion above."

// PriceGetter prices one free-text configuration query. Satisfied by the
// pricer service; tests substitute fakes.
type PriceGetter interface {
	GetPrice(ctx context.Context, query string) (*pricing.PriceResponse, error)
}

// Registry owns the tool definitions and dispatches tool calls.
//
// Thread Safety: Safe for concurrent use; all state is read-only after
// construction.
type Registry struct {
	pricer   PriceGetter
	snapshot func() *catalog.Catalog
}

// NewRegistry creates a tool registry backed by the given pricer and
// catalog snapshot source.
func NewRegistry(pricer PriceGetter, snapshot func() *catalog.Catalog) *Registry {
	return &Registry{pricer: pricer, snapshot: snapshot}
}

// Definitions returns the tool schemas advertised to the model.
func (r *Registry) Definitions() []llm.ToolDef {
	return []llm.ToolDef{
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name: toolGetPrice,
				Description: "Get the exact price for a specific furniture configuration. " +
					"The query should name a product and a fabric, and optionally a size " +
					"and cover type, e.g. 'alwinton snuggler pacific'.",
				Parameters: llm.ToolParameters{
					Type: "object",
					Properties: map[string]llm.ToolParamDef{
						"query": {
							Type:        "string",
							Description: "Free-text product configuration to price.",
						},
					},
					Required: []string{"query"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name: toolSearchByBudget,
				Description: "List products whose base price is at or under a maximum " +
					"budget, cheapest first. Optionally restricted to one product type.",
				Parameters: llm.ToolParameters{
					Type: "object",
					Properties: map[string]llm.ToolParamDef{
						"max_price": {
							Type:        "number",
							Description: "Maximum base price in GBP.",
						},
						"product_type": {
							Type:        "string",
							Description: "Optional product type filter.",
							Enum: []any{"sofa", "chair", "footstool", "dog_bed",
								"sofa_bed", "snuggler", "mattress", "bed"},
						},
					},
					Required: []string{"max_price"},
				},
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunction{
				Name: toolSearchFabricsByColor,
				Description: "Find available fabrics matching a colour, optionally " +
					"scoped to one product. Returns fabric names, tiers and descriptions.",
				Parameters: llm.ToolParameters{
					Type: "object",
					Properties: map[string]llm.ToolParamDef{
						"color": {
							Type:        "string",
							Description: "Colour to search for, e.g. 'blue' or 'pacific'.",
						},
						"product_name": {
							Type:        "string",
							Description: "Optional product name to scope the search to.",
						},
					},
					Required: []string{"color"},
				},
			},
		},
	}
}

// envelope is the wire shape of every tool result fed back to the model.
type envelope struct {
	Status          string `json:"status"`
	Data            any    `json:"data,omitempty"`
	ErrorCode       string `json:"error_code,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	Suggestion      string `json:"suggestion,omitempty"`
	CriticalWarning string `json:"CRITICAL_WARNING,omitempty"`
}

func successEnvelope(data any) string {
	return marshalEnvelope(envelope{Status: "SUCCESS", Data: data})
}

func failedEnvelope(code resolve.Code, message, suggestion string) string {
	return marshalEnvelope(envelope{
		Status:          "FAILED",
		ErrorCode:       string(code),
		ErrorMessage:    message,
		Suggestion:      suggestion,
		CriticalWarning: noFabricationWarning,
	})
}

func marshalEnvelope(e envelope) string {
	b, err := json.Marshal(e)
	if err != nil {
		// Data came from our own types; this should be unreachable.
		slog.Error("Failed to marshal tool envelope", slog.Any("error", err))
		return `{"status":"FAILED","error_message":"internal serialization error"}`
	}
	return string(b)
}

// failedFromError converts any tool error into a FAILED envelope string.
func failedFromError(err error) string {
	if te, ok := resolve.AsError(err); ok {
		return failedEnvelope(te.Code, te.Message, te.Suggestion)
	}
	return failedEnvelope(resolve.CodeToolInvocation,
		"The tool failed unexpectedly.", "")
}

// Execute runs one tool call and returns the envelope JSON for the model.
//
// Description:
//
//	Argument validation failures and tool failures are not Go errors: they
//	become FAILED envelopes so the model can self-correct on the next
//	iteration. Only the envelope string leaves this method.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCallResponse) string {
	slog.Debug("Executing agent tool",
		slog.String("tool", call.Name),
		slog.String("call_id", call.ID),
	)
	toolCallsTotal.WithLabelValues(call.Name).Inc()

	switch call.Name {
	case toolGetPrice:
		return r.execGetPrice(ctx, call)
	case toolSearchByBudget:
		return r.execSearchByBudget(call)
	case toolSearchFabricsByColor:
		return r.execSearchFabricsByColor(call)
	default:
		slog.Warn("Model requested unknown tool", slog.String("tool", call.Name))
		return failedEnvelope(resolve.CodeToolInvocation,
			"Unknown tool: "+call.Name,
			"Use one of the provided tools.")
	}
}

func (r *Registry) execGetPrice(ctx context.Context, call llm.ToolCallResponse) string {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.ArgumentsString()), &args); err != nil || args.Query == "" {
		return failedEnvelope(resolve.CodeToolInvocation,
			"get_price requires a non-empty 'query' string argument.", "")
	}

	resp, err := r.pricer.GetPrice(ctx, args.Query)
	if err != nil {
		return failedFromError(err)
	}
	return successEnvelope(resp)
}

func (r *Registry) execSearchByBudget(call llm.ToolCallResponse) string {
	var args struct {
		MaxPrice    float64 `json:"max_price"`
		ProductType string  `json:"product_type"`
	}
	if err := json.Unmarshal([]byte(call.ArgumentsString()), &args); err != nil || args.MaxPrice <= 0 {
		return failedEnvelope(resolve.CodeToolInvocation,
			"search_by_budget requires a positive 'max_price' number argument.", "")
	}

	matches, truncated := r.snapshot().SearchByBudget(args.MaxPrice, args.ProductType)
	return successEnvelope(map[string]any{
		"matches":   matches,
		"truncated": truncated,
	})
}

func (r *Registry) execSearchFabricsByColor(call llm.ToolCallResponse) string {
	var args struct {
		Color       string `json:"color"`
		ProductName string `json:"product_name"`
	}
	if err := json.Unmarshal([]byte(call.ArgumentsString()), &args); err != nil || args.Color == "" {
		return failedEnvelope(resolve.CodeToolInvocation,
			"search_fabrics_by_color requires a non-empty 'color' string argument.", "")
	}

	cat := r.snapshot()
	productSKU := ""
	if args.ProductName != "" {
		sku, ok := cat.FindProductSKU(args.ProductName)
		if !ok {
			return failedEnvelope(resolve.CodeProductNotFound,
				"Product not found: "+args.ProductName,
				"Omit product_name to search fabrics across all products.")
		}
		productSKU = sku
	}

	matches, truncated := cat.SearchFabricsByColor(args.Color, productSKU)
	return successEnvelope(map[string]any{
		"matches":   matches,
		"truncated": truncated,
	})
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides a thin client for OpenAI-compatible chat completion
// APIs with function calling, used by the conversational pricing agent.
package llm

import "encoding/json"

// GenerationParams tunes a single chat completion request.
type GenerationParams struct {
	// Temperature controls sampling randomness. Nil uses the API default.
	Temperature *float32

	// MaxTokens caps the completion length. Nil uses the API default.
	MaxTokens *int

	// ModelOverride substitutes the client's configured model for this call.
	ModelOverride string
}

// ToolDef is a tool definition following the OpenAI function calling schema.
//
// Thread Safety: ToolDef is immutable and safe for concurrent read access.
type ToolDef struct {
	// Type is always "function".
	Type string `json:"type"`

	// Function contains the function definition.
	Function ToolFunction `json:"function"`
}

// ToolFunction contains the function name, description, and parameter schema.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

// ToolParameters defines the JSON Schema for tool parameters.
type ToolParameters struct {
	// Type is always "object" for tool parameters.
	Type string `json:"type"`

	// Properties maps parameter names to their definitions.
	Properties map[string]ToolParamDef `json:"properties,omitempty"`

	// Required lists parameter names that must be provided.
	Required []string `json:"required,omitempty"`
}

// ToolParamDef defines a single parameter in JSON Schema format.
type ToolParamDef struct {
	// Type is the JSON Schema type (string, integer, boolean, number).
	Type string `json:"type"`

	// Description explains what the parameter is for.
	Description string `json:"description,omitempty"`

	// Enum restricts values to a set of options.
	Enum []any `json:"enum,omitempty"`
}

// ChatMessage is one turn of a tool-aware conversation.
//
// Description:
//
//	Regular messages use Role + Content. Assistant messages that invoked
//	tools carry ToolCalls; the matching tool result messages carry
//	ToolCallID so the API can pair them up.
//
// Thread Safety: ChatMessage is safe for concurrent read access.
type ChatMessage struct {
	// Role is "system", "user", "assistant", or "tool".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content,omitempty"`

	// ToolCalls contains tool invocations (assistant messages only).
	ToolCalls []ToolCallResponse `json:"tool_calls,omitempty"`

	// ToolCallID links a tool result message back to its tool call.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCallResponse is one tool call requested by the model.
type ToolCallResponse struct {
	// ID is the unique identifier for this tool call.
	ID string `json:"id"`

	// Name is the function name to call.
	Name string `json:"name"`

	// Arguments is the raw JSON arguments for the function.
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentsString returns the arguments as a JSON string.
//
// Description:
//
//	Some models wrap the arguments object in a JSON string value. If the
//	raw bytes start with a quote, the string is unquoted first; otherwise
//	the raw JSON is returned as-is. Returns "{}" for nil or empty.
//
// Thread Safety: This method is safe for concurrent use.
func (t *ToolCallResponse) ArgumentsString() string {
	if len(t.Arguments) == 0 {
		return "{}"
	}

	if t.Arguments[0] == '"' {
		var s string
		if err := json.Unmarshal(t.Arguments, &s); err == nil {
			return s
		}
	}

	return string(t.Arguments)
}

// Usage is the token accounting returned with a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatWithToolsResult is the outcome of one ChatWithTools call.
//
// Thread Safety: ChatWithToolsResult is safe for concurrent read access.
type ChatWithToolsResult struct {
	// Content is the text response. May be empty when only tool calls
	// are present.
	Content string

	// ToolCalls contains tool calls requested by the model.
	ToolCalls []ToolCallResponse

	// StopReason is "tool_use" when tool calls are present, else "end".
	StopReason string

	// Usage is the token accounting for this call. Zero-valued if the
	// API omitted it.
	Usage Usage
}

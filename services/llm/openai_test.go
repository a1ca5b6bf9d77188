// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewOpenAIClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIClient("", "model", ""); err == nil {
		t.Fatal("empty API key should be rejected")
	}
}

func TestNewOpenAIClient_DefaultsToOpenRouter(t *testing.T) {
	c, err := NewOpenAIClient("test-key", "test-model", "")
	if err != nil {
		t.Fatal(err)
	}
	if c.baseURL != DefaultOpenRouterBaseURL {
		t.Errorf("baseURL = %q", c.baseURL)
	}
}

func TestChatWithTools_TextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("request not JSON: %v", err)
		}
		if req["model"] != "test-model" {
			t.Errorf("model = %v", req["model"])
		}

		w.Write([]byte(`{
			"id": "gen-1",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello!"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	c, _ := NewOpenAIClient("test-key", "test-model", srv.URL)
	result, err := c.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "hi"}}, GenerationParams{}, nil)
	if err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}
	if result.Content != "Hello!" || result.StopReason != "end" {
		t.Errorf("result = %+v", result)
	}
	if result.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", result.Usage.TotalTokens)
	}
}

func TestChatWithTools_ToolCallResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "gen-2",
			"choices": [{"index": 0, "message": {
				"role": "assistant",
				"tool_calls": [{"id": "call_1", "type": "function",
					"function": {"name": "get_price", "arguments": "{\"query\": \"alwinton\"}"}}]
			}, "finish_reason": "tool_calls"}]
		}`))
	}))
	defer srv.Close()

	c, _ := NewOpenAIClient("test-key", "test-model", srv.URL)
	result, err := c.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "price of alwinton?"}}, GenerationParams{}, nil)
	if err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}
	if result.StopReason != "tool_use" {
		t.Errorf("StopReason = %q", result.StopReason)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Name != "get_price" {
		t.Fatalf("ToolCalls = %+v", result.ToolCalls)
	}
	if got := result.ToolCalls[0].ArgumentsString(); got != `{"query": "alwinton"}` {
		t.Errorf("ArgumentsString = %q", got)
	}
}

func TestChatWithTools_RoundTripsToolHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req openaiRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("request not parseable: %v", err)
		}

		// Assistant tool-call turn and its tool result must survive conversion.
		var sawAssistantCall, sawToolResult bool
		for _, m := range req.Messages {
			if m.Role == "assistant" && len(m.ToolCalls) == 1 && m.ToolCalls[0].ID == "call_1" {
				sawAssistantCall = true
			}
			if m.Role == "tool" && m.ToolCallID == "call_1" {
				sawToolResult = true
			}
		}
		if !sawAssistantCall || !sawToolResult {
			t.Errorf("tool history lost in conversion: %+v", req.Messages)
		}

		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "done"}}]}`))
	}))
	defer srv.Close()

	c, _ := NewOpenAIClient("test-key", "test-model", srv.URL)
	_, err := c.ChatWithTools(context.Background(), []ChatMessage{
		{Role: "user", Content: "price?"},
		{Role: "assistant", ToolCalls: []ToolCallResponse{
			{ID: "call_1", Name: "get_price", Arguments: json.RawMessage(`{"query": "x"}`)},
		}},
		{Role: "tool", ToolCallID: "call_1", Content: `{"status": "SUCCESS"}`},
	}, GenerationParams{}, nil)
	if err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}
}

func TestChatWithTools_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"type": "auth", "message": "bad key sk-or-v1-abcdefghij0123456789abcdef"}}`))
	}))
	defer srv.Close()

	c, _ := NewOpenAIClient("test-key", "test-model", srv.URL)
	_, err := c.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "hi"}}, GenerationParams{}, nil)
	if err == nil {
		t.Fatal("expected error on 401")
	}
	// The raw key echoed by the upstream must never reach the error text.
	if strings.Contains(err.Error(), "sk-or-v1-abcdefghij") {
		t.Errorf("error leaked the API key: %s", err)
	}
}

func TestChatWithTools_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c, _ := NewOpenAIClient("test-key", "test-model", srv.URL)
	if _, err := c.ChatWithTools(context.Background(),
		[]ChatMessage{{Role: "user", Content: "hi"}}, GenerationParams{}, nil); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestArgumentsString(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"object", `{"a": 1}`, `{"a": 1}`},
		{"string wrapped", `"{\"a\": 1}"`, `{"a": 1}`},
		{"empty", ``, `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := ToolCallResponse{Arguments: json.RawMessage(tc.raw)}
			if got := tr.ArgumentsString(); got != tc.want {
				t.Errorf("ArgumentsString() = %q, want %q", got, tc.want)
			}
		})
	}
}

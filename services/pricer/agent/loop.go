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
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/PriceScout/services/llm"
	"github.com/AleutianAI/PriceScout/services/pricer/resolve"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const loopTracerName = "pricescout.agent"

// DefaultMaxIterations bounds the tool loop. Each iteration is one model
// call; five is enough for resolve-retry-answer flows without letting a
// confused model spin.
const DefaultMaxIterations = 5

// ChatClient is the slice of the LLM client the loop needs.
type ChatClient interface {
	ChatWithTools(ctx context.Context, messages []llm.ChatMessage,
		params llm.GenerationParams, tools []llm.ToolDef) (*llm.ChatWithToolsResult, error)
}

// Result is the outcome of one agent conversation turn.
type Result struct {
	// Response is the model's final text answer.
	Response string

	// Iterations is the number of model calls consumed.
	Iterations int

	// TotalTokens is the summed token usage across all model calls.
	TotalTokens int

	// Model is the model that produced the answer.
	Model string
}

// Loop drives the bounded tool-orchestration conversation.
//
// Description:
//
//	Each iteration sends the full history to the model. Tool calls are
//	executed through the registry and their envelopes appended as tool
//	messages; a text-only response ends the loop. Exhausting the iteration
//	budget without a final answer is an error, never a made-up reply.
//
// Thread Safety: Safe for concurrent use. Per-call state lives on the stack.
type Loop struct {
	client        ChatClient
	registry      *Registry
	model         string
	maxIterations int
	temperature   float32
}

// NewLoop creates an agent loop.
func NewLoop(client ChatClient, registry *Registry, model string) *Loop {
	return &Loop{
		client:        client,
		registry:      registry,
		model:         model,
		maxIterations: DefaultMaxIterations,
		temperature:   0.2,
	}
}

// WithMaxIterations overrides the iteration budget. Values below 1 are ignored.
func (l *Loop) WithMaxIterations(n int) *Loop {
	if n >= 1 {
		l.maxIterations = n
	}
	return l
}

// Run executes the loop over the caller-supplied conversation history.
//
// Inputs:
//   - ctx: Cancels in-flight model calls and tool executions.
//   - history: Prior turns, oldest first. The system prompt is prepended
//     here; callers pass user/assistant turns only.
//
// Outputs:
//   - *Result: The final answer with iteration and token accounting.
//   - error: A typed *resolve.Error when the model is unavailable or the
//     iteration budget runs out.
func (l *Loop) Run(ctx context.Context, history []llm.ChatMessage) (*Result, error) {
	ctx, span := otel.Tracer(loopTracerName).Start(ctx, "agent.Run",
		oteltrace.WithAttributes(attribute.Int("history_len", len(history))),
	)
	defer span.End()

	messages := make([]llm.ChatMessage, 0, len(history)+1+2*l.maxIterations)
	messages = append(messages, llm.ChatMessage{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)

	tools := l.registry.Definitions()
	params := llm.GenerationParams{
		Temperature:   &l.temperature,
		ModelOverride: l.model,
	}

	start := time.Now()
	result := &Result{Model: l.model}

	for result.Iterations < l.maxIterations {
		result.Iterations++

		chat, err := l.client.ChatWithTools(ctx, messages, params, tools)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "model call failed")
			agentTurnsTotal.WithLabelValues("model_error").Inc()
			return nil, resolve.NewError(resolve.CodeAgentUnavailable,
				"The assistant is temporarily unavailable. Please try again.").
				WithInternal(err)
		}
		result.TotalTokens += chat.Usage.TotalTokens

		if len(chat.ToolCalls) == 0 {
			result.Response = chat.Content
			span.SetAttributes(
				attribute.Int("iterations", result.Iterations),
				attribute.Int("total_tokens", result.TotalTokens),
			)
			agentTurnsTotal.WithLabelValues("success").Inc()
			agentIterations.Observe(float64(result.Iterations))
			agentTurnSeconds.Observe(time.Since(start).Seconds())
			slog.Debug("Agent turn complete",
				slog.Int("iterations", result.Iterations),
				slog.Int("total_tokens", result.TotalTokens),
			)
			return result, nil
		}

		// Echo the assistant turn, then answer every tool call. An
		// unanswered call id makes the next model call invalid.
		messages = append(messages, llm.ChatMessage{
			Role:      "assistant",
			Content:   chat.Content,
			ToolCalls: chat.ToolCalls,
		})
		for _, call := range chat.ToolCalls {
			messages = append(messages, llm.ChatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    l.registry.Execute(ctx, call),
			})
		}
	}

	span.SetStatus(codes.Error, "iteration budget exhausted")
	agentTurnsTotal.WithLabelValues("budget_exhausted").Inc()
	agentIterations.Observe(float64(result.Iterations))
	slog.Warn("Agent iteration budget exhausted",
		slog.Int("iterations", result.Iterations),
	)
	return nil, resolve.NewError(resolve.CodeIterationsExceeded,
		"I could not complete that request. Please try rephrasing it.").
		WithSuggestion("Ask about one product configuration at a time.")
}

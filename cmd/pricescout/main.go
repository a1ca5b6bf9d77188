// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command pricescout starts the furniture price resolution server.
//
// PriceScout turns free-text furniture queries into exact prices:
//   - Cascading keyword resolution over four catalog dictionaries
//   - Bounded TTL+LRU price cache in front of the retailer's API
//   - Dual-scope sliding window rate limiting
//   - Optional LLM agent loop for conversational queries
//
// Usage:
//
//	go run ./cmd/pricescout
//	go run ./cmd/pricescout -port 9090 -dict ./dictionaries
//
// With the chat agent (OpenRouter):
//
//	PRICESCOUT_LLM_API_KEY=sk-or-... go run ./cmd/pricescout
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/health
//
//	# Direct price lookup
//	curl -X POST http://localhost:8080/v1/price \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "alwinton snuggler pacific"}'
//
//	# Conversational query (requires LLM API key)
//	curl -X POST http://localhost:8080/v1/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"messages": [{"role": "user", "content": "sofas under 2000?"}]}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/PriceScout/services/llm"
	"github.com/AleutianAI/PriceScout/services/pricer"
	"github.com/AleutianAI/PriceScout/services/pricer/agent"
	"github.com/AleutianAI/PriceScout/services/pricer/catalog"
	"github.com/AleutianAI/PriceScout/services/pricer/pricing"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	dictDir := flag.String("dict", "", "Dictionary directory (overrides PRICESCOUT_DICT_DIR)")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := pricer.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *dictDir != "" {
		cfg.DictDir = *dictDir
	}

	// The catalog is the source of truth for resolution; refusing to start
	// without it beats serving wrong answers.
	cat, err := catalog.Load(cfg.DictDir)
	if err != nil {
		slog.Error("Failed to load catalog dictionaries",
			slog.String("dir", cfg.DictDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	store := catalog.NewStore(cat)
	slog.Info("Catalog loaded",
		slog.String("dir", cfg.DictDir),
		slog.Int("products", cat.Products.Len()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.WatchDictionaries {
		watcher := catalog.NewWatcher(cfg.DictDir, store)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Warn("Dictionary watcher stopped",
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	cache := pricing.NewCache(cfg.CacheCapacity, cfg.CacheTTL)
	client := pricing.NewClient(pricing.ClientConfig{
		ChangeSizeURL:     cfg.ChangeSizeURL,
		ProductPriceURL:   cfg.ProductPriceURL,
		SiteBaseURL:       cfg.SiteBaseURL,
		Timeout:           cfg.UpstreamTimeout,
		MaxRetries:        cfg.UpstreamRetries,
		RequestsPerSecond: cfg.UpstreamRPS,
		UserAgent:         "PriceScout/1.0",
	})
	service := pricer.NewService(store, cache, client)
	limiter := pricer.NewRateLimiter(cfg.GlobalRateLimit, cfg.SessionRateLimit, cfg.RateWindow)

	loop := setupAgentLoop(cfg, service, store)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("pricescout"))
	router.Use(pricer.CORSMiddleware())
	if *debug {
		router.Use(gin.Logger())
	}

	handlers := pricer.NewHandlers(service, limiter, loop)
	v1 := router.Group("/v1")
	pricer.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port, loop != nil)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: router,
	}

	go func() {
		slog.Info("Starting PriceScout server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down PriceScout server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Graceful shutdown incomplete", slog.String("error", err.Error()))
	}
}

// setupAgentLoop wires the chat agent when an LLM API key is configured.
// Returns nil when the agent is disabled; the chat endpoint then answers 503.
func setupAgentLoop(cfg *pricer.Config, service *pricer.Service, store *catalog.Store) *agent.Loop {
	if cfg.LLMAPIKey == "" {
		slog.Info("No LLM API key configured, chat agent disabled")
		return nil
	}

	client, err := llm.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL)
	if err != nil {
		slog.Error("Failed to initialize LLM client", slog.String("error", err.Error()))
		return nil
	}

	registry := agent.NewRegistry(service, store.Snapshot)
	loop := agent.NewLoop(client, registry, cfg.LLMModel).
		WithMaxIterations(cfg.AgentMaxIterations)
	slog.Info("Chat agent enabled", slog.String("model", cfg.LLMModel))
	return loop
}

func printBanner(port int, agentEnabled bool) {
	agentStatus := "DISABLED (set PRICESCOUT_LLM_API_KEY to enable)"
	if agentEnabled {
		agentStatus = "ENABLED"
	}

	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                         PRICESCOUT SERVER                         ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Free-text furniture queries resolved to exact upstream prices.   ║
║  Chat Agent: %-51s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/health                    │  ║
║  │                                                             │  ║
║  │ # Direct price lookup                                       │  ║
║  │ curl -X POST http://localhost:%d/v1/price \           │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"query": "alwinton snuggler pacific"}'               │  ║
║  │                                                             │  ║
║  │ # Conversational query (requires LLM API key)               │  ║
║  │ curl -X POST http://localhost:%d/v1/chat \            │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"messages":[{"role":"user","content":"..."}]}'       │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints: /v1/price, /v1/chat, /v1/health, /v1/ready, /metrics  ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, agentStatus, port, port, port)
}

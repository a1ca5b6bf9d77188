// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pricing talks to the retailer's pricing endpoints and memoizes the
// normalized responses in a bounded TTL cache.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AleutianAI/PriceScout/services/pricer/catalog"
	"github.com/AleutianAI/PriceScout/services/pricer/resolve"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const clientTracerName = "pricescout.pricing"

// FabricDetails is the fabric metadata folded into a price response.
type FabricDetails struct {
	Tier        string `json:"tier"`
	Description string `json:"description"`
	SwatchURL   string `json:"swatchUrl"`
}

// PriceResponse is the normalized pricing record served to clients and to the
// agent's get_price tool. Field names are the wire contract with the frontend.
type PriceResponse struct {
	ProductName   string            `json:"productName"`
	FabricName    string            `json:"fabricName"`
	Price         string            `json:"price"`
	OldPrice      string            `json:"oldPrice,omitempty"`
	ImageURLs     []string          `json:"imageUrls"`
	Specs         []json.RawMessage `json:"specs"`
	FabricDetails FabricDetails     `json:"fabricDetails"`
}

// ClientConfig configures the upstream price client.
type ClientConfig struct {
	// ChangeSizeURL prices sofa-like and mattress configurations.
	ChangeSizeURL string
	// ProductPriceURL prices bed configurations.
	ProductPriceURL string
	// SiteBaseURL prefixes relative image paths in upstream responses.
	SiteBaseURL string
	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration
	// MaxRetries is the number of automatic retries on transient statuses.
	MaxRetries int
	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
	// RequestsPerSecond throttles outbound calls to the retailer's API.
	// Zero disables the throttle.
	RequestsPerSecond float64
	// UserAgent is sent with every request.
	UserAgent string
}

// Client performs one outbound pricing request per resolved configuration.
//
// Description:
//
//	Dispatches by product type to one of two upstream endpoints, retries
//	transient failures with exponential backoff, and normalizes the two
//	response shapes into a single PriceResponse. The only suspension points
//	are the HTTP call and the outbound throttle; both honour ctx.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a price client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
	}
}

// transientStatus reports whether an upstream status is worth retrying.
func transientStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// FetchPrice prices one resolved configuration against the upstream API.
//
// Outputs:
//   - *PriceResponse: The normalized record on success.
//   - error: A typed *resolve.Error with an E1xxx code on failure.
func (c *Client) FetchPrice(ctx context.Context, res *resolve.Resolution) (*PriceResponse, error) {
	endpoint, apiURL, payload := c.buildRequest(res)

	ctx, span := otel.Tracer(clientTracerName).Start(ctx, "pricing.FetchPrice",
		oteltrace.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("product_sku", res.Config.ProductSKU),
		),
	)
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			span.SetStatus(codes.Error, "throttle wait cancelled")
			return nil, resolve.NewError(resolve.CodeUpstreamTimeout,
				"Request timed out. The pricing server may be slow.").WithInternal(err)
		}
	}

	start := time.Now()
	body, err := c.postWithRetries(ctx, endpoint, apiURL, payload, res.ProductURL)
	upstreamLatencySeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		upstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}
	upstreamRequestsTotal.WithLabelValues(endpoint, "success").Inc()

	resp, err := c.normalize(res, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return resp, nil
}

// buildRequest selects the endpoint and builds the form payload for the
// resolved configuration.
func (c *Client) buildRequest(res *resolve.Resolution) (endpoint, apiURL string, payload url.Values) {
	cfg := res.Config
	if cfg.ProductType.UsesBedEndpoint() {
		return "product_price", c.cfg.ProductPriceURL, url.Values{
			"productsku": {cfg.ProductSKU},
			"sizesku":    {cfg.SizeSKU},
			"coversku":   {cfg.CoverSKU},
			"fabricSku":  {cfg.FabricSKU},
			"colourSku":  {cfg.ColorSKU},
		}
	}

	// Sofa-like types and mattresses share the change-size endpoint, keyed by
	// a concatenated query SKU. Mattress SKUs carry a tension instead of a
	// cover/colour pair, padded with "offoff".
	querySKU := cfg.ProductSKU + cfg.SizeSKU + cfg.CoverSKU + cfg.FabricSKU + cfg.ColorSKU
	if cfg.ProductType == catalog.TypeMattress {
		querySKU = cfg.ProductSKU + cfg.SizeSKU + cfg.FabricSKU + "offoff"
	}
	return "change_size", c.cfg.ChangeSizeURL, url.Values{
		"sku":      {cfg.ProductSKU},
		"querySku": {querySKU},
	}
}

// postWithRetries sends the form POST, retrying transient failures with
// exponential backoff. Returns the final response body.
func (c *Client) postWithRetries(ctx context.Context, endpoint, apiURL string, payload url.Values, productURL string) ([]byte, error) {
	var lastErr error
	var lastStatus int

	attempts := c.cfg.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			upstreamRequestsTotal.WithLabelValues(endpoint, "retry").Inc()
			backoff := c.cfg.BackoffBase << (attempt - 1)
			slog.Debug("Retrying upstream pricing call",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return nil, timeoutError(ctx.Err())
			case <-time.After(backoff):
			}
		}

		body, status, err := c.post(ctx, apiURL, payload, productURL)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
				return nil, timeoutError(err)
			}
			lastErr = err
			continue
		}
		if status == http.StatusOK {
			return body, nil
		}
		lastStatus = status
		if !transientStatus(status) {
			break
		}
	}

	if lastErr != nil {
		return nil, resolve.NewError(resolve.CodeUpstreamUnreachable,
			"Unable to connect to the pricing service.").WithInternal(lastErr)
	}
	if lastStatus == http.StatusTooManyRequests {
		return nil, resolve.NewError(resolve.CodeUpstreamRateLimited,
			"Too many requests to the pricing service. Please wait a moment.").
			WithSuggestion("Wait 60 seconds before trying again.")
	}
	return nil, resolve.NewError(resolve.CodeUpstreamBadStatus,
		"The pricing service returned an error.").
		WithInternal(fmt.Errorf("upstream status %d", lastStatus))
}

func timeoutError(cause error) *resolve.Error {
	return resolve.NewError(resolve.CodeUpstreamTimeout,
		"Request timed out. The pricing server may be slow.").WithInternal(cause)
}

func (c *Client) post(ctx context.Context, apiURL string, payload url.Values, productURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL,
		strings.NewReader(payload.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("pricing: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if productURL != "" {
		req.Header.Set("Referer", strings.TrimRight(c.cfg.SiteBaseURL, "/")+"/"+strings.TrimLeft(productURL, "/"))
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("pricing: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("pricing: reading response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// Upstream wire shapes. The change-size endpoint nests its record; the
// product-price endpoint returns it flat.
type changeSizeResponse struct {
	Success bool `json:"success"`
	Result  struct {
		ProductSkuRecord skuRecord `json:"ProductSkuRecord"`
		HeroImages       []struct {
			ImageURL string `json:"ImageUrl"`
		} `json:"HeroImages"`
	} `json:"result"`
}

type skuRecord struct {
	ProductName           string            `json:"ProductName"`
	SizeName              string            `json:"SizeName"`
	FabricName            string            `json:"FabricName"`
	ColourName            string            `json:"ColourName"`
	PriceText             string            `json:"PriceText"`
	OldPriceText          string            `json:"OldPriceText"`
	ProductSizeAttributes []json.RawMessage `json:"ProductSizeAttributes"`
}

// normalize converts either upstream shape into a PriceResponse.
func (c *Client) normalize(res *resolve.Resolution, body []byte) (*PriceResponse, error) {
	var record skuRecord
	var imageURLs []string

	if res.Config.ProductType.UsesBedEndpoint() {
		if err := json.Unmarshal(body, &record); err != nil {
			return nil, resolve.NewError(resolve.CodeUpstreamEmpty,
				"The pricing service returned an unreadable response.").WithInternal(err)
		}
	} else {
		var parsed changeSizeResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, resolve.NewError(resolve.CodeUpstreamEmpty,
				"The pricing service returned an unreadable response.").WithInternal(err)
		}
		if !parsed.Success {
			return nil, resolve.NewError(resolve.CodeUpstreamEmpty,
				"The pricing service returned an empty response.")
		}
		record = parsed.Result.ProductSkuRecord
		for _, img := range parsed.Result.HeroImages {
			if u := c.normalizeImageURL(img.ImageURL); u != "" {
				imageURLs = append(imageURLs, u)
			}
		}
	}

	if record.PriceText == "" && record.ProductName == "" {
		return nil, resolve.NewError(resolve.CodeUpstreamEmpty,
			"The pricing service returned an empty response.")
	}

	return &PriceResponse{
		ProductName: strings.TrimSpace(record.ProductName + " " + record.SizeName),
		FabricName:  strings.TrimSpace(record.FabricName + " - " + record.ColourName),
		Price:       record.PriceText,
		OldPrice:    record.OldPriceText,
		ImageURLs:   imageURLs,
		Specs:       record.ProductSizeAttributes,
		FabricDetails: FabricDetails{
			Tier:        string(res.Fabric.Tier),
			Description: res.Fabric.Description,
			SwatchURL:   res.Fabric.SwatchURL,
		},
	}, nil
}

// normalizeImageURL cleans an upstream image path into an absolute URL.
// Upstream paths arrive with backslashes, optional "assets/" prefixes and
// unescaped spaces.
func (c *Client) normalizeImageURL(raw string) string {
	cleaned := strings.ReplaceAll(raw, `\`, "/")
	if cleaned == "" {
		return ""
	}
	if strings.HasPrefix(cleaned, "http") {
		return cleaned
	}
	cleaned = strings.TrimLeft(cleaned, "/")
	cleaned = strings.TrimPrefix(cleaned, "assets/")

	parts := strings.Split(cleaned, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.TrimRight(c.cfg.SiteBaseURL, "/") + "/" + strings.Join(parts, "/")
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/PriceScout/services/pricer/catalog"
	"github.com/AleutianAI/PriceScout/services/pricer/resolve"
)

func sofaResolution() *resolve.Resolution {
	return &resolve.Resolution{
		Config: resolve.Configuration{
			ProductSKU:  "alw",
			ProductType: catalog.TypeSofa,
			SizeSKU:     "sng",
			CoverSKU:    "fit",
			FabricSKU:   "sxp",
			ColorSKU:    "pac",
		},
		ProductName: "Alwinton Sofa",
		ProductURL:  "/sofas/alwinton",
		Fabric: catalog.FabricEntry{
			Tier:        catalog.TierEssentials,
			Description: "A hardwearing plain",
			SwatchURL:   "/swatches/pacific.jpg",
		},
	}
}

func bedResolution() *resolve.Resolution {
	res := sofaResolution()
	res.Config.ProductSKU = "hmp"
	res.Config.ProductType = catalog.TypeBed
	return res
}

func testClient(changeSizeURL, productPriceURL string) *Client {
	return NewClient(ClientConfig{
		ChangeSizeURL:   changeSizeURL,
		ProductPriceURL: productPriceURL,
		SiteBaseURL:     "https://sofasandstuff.com",
		Timeout:         2 * time.Second,
		MaxRetries:      3,
		BackoffBase:     time.Millisecond,
	})
}

const sofaBody = `{
	"success": true,
	"result": {
		"ProductSkuRecord": {
			"ProductName": "Alwinton",
			"SizeName": "Snuggler",
			"FabricName": "House Plain",
			"ColourName": "Pacific",
			"PriceText": "£1,899",
			"OldPriceText": "£2,099",
			"ProductSizeAttributes": [{"Name": "Width", "Value": "120cm"}]
		},
		"HeroImages": [
			{"ImageUrl": "assets\\images\\alwinton 1.jpg"},
			{"ImageUrl": "https://cdn.example.com/alwinton.jpg"}
		]
	}
}`

func TestFetchPrice_SofaEndpoint(t *testing.T) {
	var gotPayload string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotPayload = r.PostForm.Encode()
		if got := r.Header.Get("X-Requested-With"); got != "XMLHttpRequest" {
			t.Errorf("X-Requested-With = %q", got)
		}
		w.Write([]byte(sofaBody))
	}))
	defer srv.Close()

	client := testClient(srv.URL, "")
	resp, err := client.FetchPrice(context.Background(), sofaResolution())
	if err != nil {
		t.Fatalf("FetchPrice failed: %v", err)
	}

	if resp.ProductName != "Alwinton Snuggler" {
		t.Errorf("ProductName = %q", resp.ProductName)
	}
	if resp.FabricName != "House Plain - Pacific" {
		t.Errorf("FabricName = %q", resp.FabricName)
	}
	if resp.Price != "£1,899" || resp.OldPrice != "£2,099" {
		t.Errorf("Price = %q, OldPrice = %q", resp.Price, resp.OldPrice)
	}
	if resp.FabricDetails.Tier != "Essentials" {
		t.Errorf("FabricDetails.Tier = %q", resp.FabricDetails.Tier)
	}
	if len(resp.ImageURLs) != 2 {
		t.Fatalf("ImageURLs = %v", resp.ImageURLs)
	}
	if resp.ImageURLs[0] != "https://sofasandstuff.com/images/alwinton%201.jpg" {
		t.Errorf("normalized image URL = %q", resp.ImageURLs[0])
	}
	if resp.ImageURLs[1] != "https://cdn.example.com/alwinton.jpg" {
		t.Errorf("absolute image URL should pass through, got %q", resp.ImageURLs[1])
	}

	// querySku is the concatenated tuple for sofa-like products.
	want := "querySku=alwsngfitsxppac&sku=alw"
	if gotPayload != want {
		t.Errorf("payload = %q, want %q", gotPayload, want)
	}
}

func TestFetchPrice_MattressQuerySKU(t *testing.T) {
	var gotQuerySKU string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotQuerySKU = r.PostForm.Get("querySku")
		w.Write([]byte(sofaBody))
	}))
	defer srv.Close()

	res := sofaResolution()
	res.Config.ProductType = catalog.TypeMattress

	client := testClient(srv.URL, "")
	if _, err := client.FetchPrice(context.Background(), res); err != nil {
		t.Fatalf("FetchPrice failed: %v", err)
	}

	// Mattresses skip the cover/colour pair and pad with "offoff".
	if gotQuerySKU != "alwsngsxpoffoff" {
		t.Errorf("querySku = %q, want alwsngsxpoffoff", gotQuerySKU)
	}
}

func TestFetchPrice_BedEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if got := r.PostForm.Get("productsku"); got != "hmp" {
			t.Errorf("productsku = %q", got)
		}
		if got := r.PostForm.Get("fabricSku"); got != "sxp" {
			t.Errorf("fabricSku = %q", got)
		}
		// The bed endpoint returns the record flat, not nested.
		w.Write([]byte(`{"ProductName": "Hampton", "SizeName": "King", "PriceText": "£2,499"}`))
	}))
	defer srv.Close()

	client := testClient("", srv.URL)
	resp, err := client.FetchPrice(context.Background(), bedResolution())
	if err != nil {
		t.Fatalf("FetchPrice failed: %v", err)
	}
	if resp.ProductName != "Hampton King" || resp.Price != "£2,499" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestFetchPrice_RetriesTransientStatus(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(sofaBody))
	}))
	defer srv.Close()

	client := testClient(srv.URL, "")
	if _, err := client.FetchPrice(context.Background(), sofaResolution()); err != nil {
		t.Fatalf("FetchPrice failed after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestFetchPrice_NoRetryOnClientError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := testClient(srv.URL, "")
	_, err := client.FetchPrice(context.Background(), sofaResolution())
	if err == nil {
		t.Fatal("expected error on 404")
	}
	te, ok := resolve.AsError(err)
	if !ok || te.Code != resolve.CodeUpstreamBadStatus {
		t.Errorf("error = %v, want %s", err, resolve.CodeUpstreamBadStatus)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, 404 must not be retried", attempts)
	}
}

func TestFetchPrice_RateLimitedAfterExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := testClient(srv.URL, "")
	_, err := client.FetchPrice(context.Background(), sofaResolution())
	te, ok := resolve.AsError(err)
	if !ok || te.Code != resolve.CodeUpstreamRateLimited {
		t.Errorf("error = %v, want %s", err, resolve.CodeUpstreamRateLimited)
	}
}

func TestFetchPrice_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false}`))
	}))
	defer srv.Close()

	client := testClient(srv.URL, "")
	_, err := client.FetchPrice(context.Background(), sofaResolution())
	te, ok := resolve.AsError(err)
	if !ok || te.Code != resolve.CodeUpstreamEmpty {
		t.Errorf("error = %v, want %s", err, resolve.CodeUpstreamEmpty)
	}
}

func TestFetchPrice_UnreachableHost(t *testing.T) {
	client := NewClient(ClientConfig{
		ChangeSizeURL: "http://127.0.0.1:1/nope",
		Timeout:       500 * time.Millisecond,
		MaxRetries:    1,
		BackoffBase:   time.Millisecond,
	})

	_, err := client.FetchPrice(context.Background(), sofaResolution())
	te, ok := resolve.AsError(err)
	if !ok || te.Code != resolve.CodeUpstreamUnreachable {
		t.Errorf("error = %v, want %s", err, resolve.CodeUpstreamUnreachable)
	}
}

func TestNormalizeImageURL(t *testing.T) {
	client := testClient("", "")

	cases := []struct {
		in   string
		want string
	}{
		{`assets\images\sofa 1.jpg`, "https://sofasandstuff.com/images/sofa%201.jpg"},
		{"/images/sofa.jpg", "https://sofasandstuff.com/images/sofa.jpg"},
		{"https://cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := client.normalizeImageURL(tc.in); got != tc.want {
			t.Errorf("normalizeImageURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

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
	"encoding/json"
	"strings"
	"testing"

	"github.com/AleutianAI/PriceScout/services/pricer/catalog"
	"github.com/AleutianAI/PriceScout/services/pricer/pricing"
	"github.com/AleutianAI/PriceScout/services/pricer/resolve"
)

func toolCatalog() *catalog.Catalog {
	products := catalog.NewTable[catalog.ProductEntry]()
	products.Set("alwinton", catalog.ProductEntry{SKU: "alw", Type: catalog.TypeSofa, FullName: "Alwinton Sofa", BasePrice: 1899})
	products.Set("petworth", catalog.ProductEntry{SKU: "ptw", Type: catalog.TypeFootstool, FullName: "Petworth Footstool", BasePrice: 349})

	fabrics := map[string]*catalog.Table[catalog.FabricEntry]{"alw": catalog.NewTable[catalog.FabricEntry]()}
	fabrics["alw"].Set("pacific", catalog.FabricEntry{FabricSKU: "sxp", ColorSKU: "pac", FabricName: "House Plain", ColorName: "Pacific Blue", Tier: catalog.TierEssentials})

	return &catalog.Catalog{Products: products, Fabrics: fabrics}
}

func catalogRegistry(pricer PriceGetter) *Registry {
	cat := toolCatalog()
	return NewRegistry(pricer, func() *catalog.Catalog { return cat })
}

func decodeEnvelope(t *testing.T, raw string) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("tool result is not valid JSON: %v\n%s", err, raw)
	}
	return env
}

func TestDefinitions_AllThreeTools(t *testing.T) {
	reg := catalogRegistry(&fakePricer{})

	defs := reg.Definitions()
	if len(defs) != 3 {
		t.Fatalf("tool count = %d, want 3", len(defs))
	}
	names := map[string]bool{}
	for _, d := range defs {
		if d.Type != "function" {
			t.Errorf("tool type = %q", d.Type)
		}
		names[d.Function.Name] = true
	}
	for _, want := range []string{"get_price", "search_by_budget", "search_fabrics_by_color"} {
		if !names[want] {
			t.Errorf("missing tool %q", want)
		}
	}
}

func TestExecute_GetPriceSuccess(t *testing.T) {
	pricer := &fakePricer{resp: &pricing.PriceResponse{ProductName: "Alwinton Snuggler", Price: "£1,899"}}
	reg := catalogRegistry(pricer)

	out := reg.Execute(context.Background(), toolCall("c1", "get_price", `{"query": "alwinton snuggler pacific"}`))
	env := decodeEnvelope(t, out)
	if env.Status != "SUCCESS" {
		t.Fatalf("status = %q: %s", env.Status, out)
	}
	if env.CriticalWarning != "" {
		t.Error("success envelope should not carry the warning")
	}
	if !strings.Contains(out, "£1,899") {
		t.Error("envelope should carry the price data")
	}
}

func TestExecute_GetPriceFailureCarriesWarning(t *testing.T) {
	pricer := &fakePricer{err: resolve.NewError(resolve.CodeFabricNotFound, "Fabric not found.").
		WithSuggestion("Try 'pacific'.")}
	reg := catalogRegistry(pricer)

	out := reg.Execute(context.Background(), toolCall("c1", "get_price", `{"query": "alwinton snuggler tartan"}`))
	env := decodeEnvelope(t, out)
	if env.Status != "FAILED" {
		t.Fatalf("status = %q", env.Status)
	}
	if env.ErrorCode != string(resolve.CodeFabricNotFound) {
		t.Errorf("error_code = %q", env.ErrorCode)
	}
	if env.Suggestion != "Try 'pacific'." {
		t.Errorf("suggestion = %q", env.Suggestion)
	}
	if env.CriticalWarning == "" {
		t.Error("failed envelope must carry the no-fabrication warning")
	}
	// A failed price lookup must never leak a number the model could quote.
	if strings.Contains(out, "£") {
		t.Error("failed envelope must not contain a price")
	}
}

func TestExecute_GetPriceMissingQuery(t *testing.T) {
	reg := catalogRegistry(&fakePricer{})

	out := reg.Execute(context.Background(), toolCall("c1", "get_price", `{}`))
	env := decodeEnvelope(t, out)
	if env.Status != "FAILED" || env.ErrorCode != string(resolve.CodeToolInvocation) {
		t.Errorf("envelope = %+v", env)
	}
}

func TestExecute_SearchByBudget(t *testing.T) {
	reg := catalogRegistry(&fakePricer{})

	out := reg.Execute(context.Background(), toolCall("c1", "search_by_budget", `{"max_price": 500}`))
	env := decodeEnvelope(t, out)
	if env.Status != "SUCCESS" {
		t.Fatalf("status = %q: %s", env.Status, out)
	}
	if !strings.Contains(out, "Petworth Footstool") {
		t.Error("budget search should find the footstool")
	}
	if strings.Contains(out, "Alwinton Sofa") {
		t.Error("budget search should exclude products over budget")
	}
}

func TestExecute_SearchByBudgetBadArgs(t *testing.T) {
	reg := catalogRegistry(&fakePricer{})

	out := reg.Execute(context.Background(), toolCall("c1", "search_by_budget", `{"max_price": -5}`))
	env := decodeEnvelope(t, out)
	if env.Status != "FAILED" {
		t.Errorf("negative budget should fail, got %q", env.Status)
	}
}

func TestExecute_SearchFabricsByColor(t *testing.T) {
	reg := catalogRegistry(&fakePricer{})

	out := reg.Execute(context.Background(), toolCall("c1", "search_fabrics_by_color",
		`{"color": "blue", "product_name": "alwinton"}`))
	env := decodeEnvelope(t, out)
	if env.Status != "SUCCESS" {
		t.Fatalf("status = %q: %s", env.Status, out)
	}
	if !strings.Contains(out, "Pacific Blue") {
		t.Error("fabric search should find Pacific Blue")
	}
}

func TestExecute_SearchFabricsUnknownProduct(t *testing.T) {
	reg := catalogRegistry(&fakePricer{})

	out := reg.Execute(context.Background(), toolCall("c1", "search_fabrics_by_color",
		`{"color": "blue", "product_name": "chesterfield"}`))
	env := decodeEnvelope(t, out)
	if env.Status != "FAILED" || env.ErrorCode != string(resolve.CodeProductNotFound) {
		t.Errorf("envelope = %+v", env)
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	reg := catalogRegistry(&fakePricer{})

	out := reg.Execute(context.Background(), toolCall("c1", "delete_everything", `{}`))
	env := decodeEnvelope(t, out)
	if env.Status != "FAILED" || env.ErrorCode != string(resolve.CodeToolInvocation) {
		t.Errorf("envelope = %+v", env)
	}
}

func TestExecute_StringWrappedArguments(t *testing.T) {
	pricer := &fakePricer{resp: &pricing.PriceResponse{Price: "£1,899"}}
	reg := catalogRegistry(pricer)

	// Some models return the arguments object wrapped in a JSON string.
	wrapped := `"{\"query\": \"alwinton snuggler pacific\"}"`
	out := reg.Execute(context.Background(), toolCall("c1", "get_price", wrapped))
	env := decodeEnvelope(t, out)
	if env.Status != "SUCCESS" {
		t.Errorf("string-wrapped arguments should work, got %q: %s", env.Status, out)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"sort"
	"strings"
)

// Result caps keep tool payloads small enough for the agent's context window.
const (
	maxBudgetResults = 20
	maxFabricResults = 30
)

// BudgetMatch is one product returned by SearchByBudget.
type BudgetMatch struct {
	Name         string `json:"name"`
	BasePrice    int    `json:"base_price"`
	PriceDisplay string `json:"price_display"`
	Type         string `json:"type"`
	SKU          string `json:"sku"`
}

// SearchByBudget returns products whose base price is within maxPrice,
// cheapest first.
//
// Description:
//
//	Read-only scan over the product table. productType filters by type;
//	"all" or empty matches every type. Results are capped at 20; the second
//	return reports whether the cap truncated the list. Base prices are for
//	standard configurations; size, fabric tier and cover change the final
//	price, which is the get_price tool's job.
//
// Thread Safety: Safe for concurrent use; the catalog snapshot is immutable.
func (c *Catalog) SearchByBudget(maxPrice float64, productType string) ([]BudgetMatch, bool) {
	matches := make([]BudgetMatch, 0)
	for _, keyword := range c.Products.Keys() {
		entry, _ := c.Products.Get(keyword)
		if productType != "" && productType != "all" && string(entry.Type) != productType {
			continue
		}
		if float64(entry.BasePrice) > maxPrice {
			continue
		}
		name := entry.FullName
		if name == "" {
			name = keyword
		}
		matches = append(matches, BudgetMatch{
			Name:         name,
			BasePrice:    entry.BasePrice,
			PriceDisplay: entry.PriceDisplay,
			Type:         string(entry.Type),
			SKU:          entry.SKU,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].BasePrice < matches[j].BasePrice
	})

	if len(matches) > maxBudgetResults {
		return matches[:maxBudgetResults], true
	}
	return matches, false
}

// FabricMatch is one fabric returned by SearchFabricsByColor.
type FabricMatch struct {
	FabricName  string `json:"fabric_name"`
	ColorName   string `json:"color_name"`
	Tier        string `json:"tier"`
	Collection  string `json:"collection"`
	Description string `json:"description"`
	SwatchURL   string `json:"swatch_url"`
	FabricSKU   string `json:"fabric_sku"`
	ColorSKU    string `json:"color_sku"`
}

// FindProductSKU resolves a product name to its SKU for scoping a fabric
// search. Matches the keyword exactly or a substring of the full name.
func (c *Catalog) FindProductSKU(productName string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(productName))
	if needle == "" {
		return "", false
	}
	for _, keyword := range c.Products.Keys() {
		entry, _ := c.Products.Get(keyword)
		if keyword == needle || strings.Contains(strings.ToLower(entry.FullName), needle) {
			return entry.SKU, true
		}
	}
	return "", false
}

// SearchFabricsByColor returns fabrics whose colour name contains color.
//
// Description:
//
//	Scans either one product's fabric sub-table (productSKU non-empty) or
//	every product's. Duplicate fabric+colour SKU pairs across products are
//	collapsed. Results are ordered cheapest tier first, then by fabric and
//	colour name, and capped at 30 with a truncation flag. Long descriptions
//	are clipped to 200 characters.
//
// Thread Safety: Safe for concurrent use; the catalog snapshot is immutable.
func (c *Catalog) SearchFabricsByColor(color, productSKU string) ([]FabricMatch, bool) {
	needle := strings.ToLower(strings.TrimSpace(color))
	if needle == "" {
		return nil, false
	}

	scopes := make([]string, 0, len(c.Fabrics))
	if productSKU != "" {
		scopes = append(scopes, productSKU)
	} else {
		for sku := range c.Fabrics {
			scopes = append(scopes, sku)
		}
		sort.Strings(scopes) // deterministic scan order across map iteration
	}

	seen := make(map[string]bool)
	matches := make([]FabricMatch, 0)
	for _, sku := range scopes {
		table := c.FabricsFor(sku)
		for _, keyword := range table.Keys() {
			entry, _ := table.Get(keyword)
			if !strings.Contains(strings.ToLower(entry.ColorName), needle) {
				continue
			}
			uniq := entry.FabricSKU + "-" + entry.ColorSKU
			if seen[uniq] {
				continue
			}
			seen[uniq] = true
			matches = append(matches, FabricMatch{
				FabricName:  entry.FabricName,
				ColorName:   entry.ColorName,
				Tier:        string(entry.Tier),
				Collection:  entry.Collection,
				Description: clip(entry.Description, 200),
				SwatchURL:   entry.SwatchURL,
				FabricSKU:   entry.FabricSKU,
				ColorSKU:    entry.ColorSKU,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		ti, tj := FabricTier(matches[i].Tier).sortRank(), FabricTier(matches[j].Tier).sortRank()
		if ti != tj {
			return ti < tj
		}
		if matches[i].FabricName != matches[j].FabricName {
			return matches[i].FabricName < matches[j].FabricName
		}
		return matches[i].ColorName < matches[j].ColorName
	})

	if len(matches) > maxFabricResults {
		return matches[:maxFabricResults], true
	}
	return matches, false
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog holds the four read-only lookup dictionaries produced by the
// offline SKU discovery crawler, and the entity matcher that resolves free-text
// keywords against them.
//
// All tables preserve insertion order from the source JSON files. Ordering is a
// contract, not an accident: the resolution pipeline defaults to "first entry"
// for sizes and covers, and ambiguity tie-breaks must be reproducible.
package catalog

// ProductType classifies a product line and selects the upstream pricing endpoint.
type ProductType string

const (
	TypeSofa      ProductType = "sofa"
	TypeChair     ProductType = "chair"
	TypeFootstool ProductType = "footstool"
	TypeDogBed    ProductType = "dog_bed"
	TypeSofaBed   ProductType = "sofa_bed"
	TypeSnuggler  ProductType = "snuggler"
	TypeMattress  ProductType = "mattress"
	TypeBed       ProductType = "bed"
)

// SizeOptional reports whether the product type commonly has a single implicit
// size. For these types the pipeline silently defaults to the first size entry
// when the query names none.
func (t ProductType) SizeOptional() bool {
	return t == TypeFootstool || t == TypeDogBed
}

// UsesBedEndpoint reports whether pricing for this type goes through the
// dedicated product-price endpoint instead of the change-size endpoint.
func (t ProductType) UsesBedEndpoint() bool {
	return t == TypeBed
}

// FabricTier is a fabric's pricing class.
type FabricTier string

const (
	TierEssentials FabricTier = "Essentials"
	TierPremium    FabricTier = "Premium"
	TierLuxury     FabricTier = "Luxury"
	TierUnknown    FabricTier = "Unknown"
)

// sortRank orders tiers cheapest-first for search result presentation.
// Unrecognized tiers sort last.
func (t FabricTier) sortRank() int {
	switch t {
	case TierEssentials:
		return 1
	case TierPremium:
		return 2
	case TierLuxury:
		return 3
	default:
		return 99
	}
}

// ProductEntry is one keyword's product record from products.json.
//
// Entries are immutable after load. Keyword collisions across types are
// resolved by the crawler (it suffixes the type onto the keyword), so one
// keyword maps to exactly one entry.
type ProductEntry struct {
	SKU          string      `json:"sku"`
	Type         ProductType `json:"type"`
	FullName     string      `json:"full_name"`
	URL          string      `json:"url"`
	BasePrice    int         `json:"price"`
	PriceDisplay string      `json:"price_display"`
}

// FabricEntry is one keyword's fabric/colour record from fabrics.json,
// scoped under a product SKU.
type FabricEntry struct {
	FabricSKU   string     `json:"fabric_sku"`
	ColorSKU    string     `json:"color_sku"`
	FabricName  string     `json:"fabric_name"`
	ColorName   string     `json:"color_name"`
	Tier        FabricTier `json:"tier"`
	Collection  string     `json:"collection"`
	Description string     `json:"desc"`
	SwatchURL   string     `json:"swatch_url"`
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve turns a free-text furniture query into an exact SKU tuple
// by cascading the entity matcher over the four catalog dictionaries:
// product, then size, cover and fabric scoped to the matched product.
package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/PriceScout/services/pricer/catalog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "pricescout.resolve"

// defaultCoverKeyword is tried first when a query names no cover type.
const defaultCoverKeyword = "fit"

// fabricAmbiguityGap: a non-exact top fabric match whose lead over the
// runner-up is below this gap is treated as unresolved ambiguity
// ("blue" matching both "light blue" and "dark blue").
const fabricAmbiguityGap = 10

// Configuration is the canonical SKU tuple identifying one priceable variant.
//
// Every field is non-empty on a successful resolution; the tuple is exactly
// the cache key material for the pricing layer.
type Configuration struct {
	ProductSKU  string              `json:"product_sku"`
	ProductType catalog.ProductType `json:"product_type"`
	SizeSKU     string              `json:"size_sku"`
	CoverSKU    string              `json:"cover_sku"`
	FabricSKU   string              `json:"fabric_sku"`
	ColorSKU    string              `json:"color_sku"`
}

// Resolution is a successful pipeline result: the SKU tuple plus the display
// metadata the pricing layer folds into its response.
type Resolution struct {
	Config      Configuration
	ProductName string
	ProductURL  string
	Fabric      catalog.FabricEntry
}

// Resolve runs the four-stage resolution pipeline over one catalog snapshot.
//
// Description:
//
//	Stage 1 matches the product; a confidence tie between the top two
//	candidates is rejected as ambiguous. Stages 2-4 match size, cover and
//	fabric against the sub-tables scoped to the resolved product SKU. Sizes
//	default silently for single-size product types (footstools, dog beds);
//	covers always default ("fit" when available, else the first table
//	entry); fabrics never default: a close non-exact fabric race is
//	rejected as ambiguous rather than guessed.
//
//	The pipeline is pure: all ordering comes from table insertion order,
//	fixed at load time, so identical inputs give identical outputs.
//
// Inputs:
//   - ctx: Carries the request span; the pipeline itself never blocks.
//   - cat: The catalog snapshot for this request.
//   - query: Free text, already lower-cased and trimmed by the caller.
//
// Outputs:
//   - *Resolution: Non-nil on success.
//   - error: A typed *Error from this package on any failure.
//
// Thread Safety: Safe for concurrent use; reads only the immutable snapshot.
func Resolve(ctx context.Context, cat *catalog.Catalog, query string) (*Resolution, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "resolve.Resolve",
		oteltrace.WithAttributes(attribute.Int("query_len", len(query))),
	)
	defer span.End()

	product, err := resolveProduct(cat, query)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	sizeSKU, err := resolveSize(cat, query, product)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	coverSKU := resolveCover(cat, query, product.SKU)

	fabric, err := resolveFabric(cat, query, product)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("product_sku", product.SKU),
		attribute.String("size_sku", sizeSKU),
		attribute.String("cover_sku", coverSKU),
		attribute.String("fabric_sku", fabric.FabricSKU),
	)

	return &Resolution{
		Config: Configuration{
			ProductSKU:  product.SKU,
			ProductType: product.Type,
			SizeSKU:     sizeSKU,
			CoverSKU:    coverSKU,
			FabricSKU:   fabric.FabricSKU,
			ColorSKU:    fabric.ColorSKU,
		},
		ProductName: product.FullName,
		ProductURL:  product.URL,
		Fabric:      fabric,
	}, nil
}

func resolveProduct(cat *catalog.Catalog, query string) (catalog.ProductEntry, error) {
	matches := catalog.Match(query, cat.Products)
	if len(matches) == 0 {
		return catalog.ProductEntry{}, NewError(CodeProductNotFound,
			"Product not found.").
			WithSuggestion("Try a product name like 'Alwinton' or 'Dog Bed'.")
	}
	if len(matches) > 1 && matches[0].Confidence == matches[1].Confidence {
		names := make([]string, 0, 3)
		for _, m := range matches {
			if len(names) == 3 {
				break
			}
			names = append(names, m.Value.FullName)
		}
		slog.Debug("Ambiguous product match",
			slog.String("query", query),
			slog.Any("candidates", names),
		)
		return catalog.ProductEntry{}, NewError(CodeAmbiguousProduct,
			"Ambiguous product.").WithSuggestions(names)
	}
	return matches[0].Value, nil
}

func resolveSize(cat *catalog.Catalog, query string, product catalog.ProductEntry) (string, error) {
	sizes := cat.SizesFor(product.SKU)
	matches := catalog.Match(query, sizes)
	if len(matches) > 0 {
		return matches[0].Value, nil
	}

	// Footstools and dog beds usually have one size; nobody says it out loud.
	if product.Type.SizeOptional() && sizes.Len() > 0 {
		_, first, _ := sizes.First()
		slog.Debug("No size in query, defaulting to first available",
			slog.String("product_sku", product.SKU),
			slog.String("size_sku", first),
		)
		return first, nil
	}

	return "", NewError(CodeSizeNotFound,
		fmt.Sprintf("Could not find a size for '%s'.", product.FullName)).
		WithSuggestion("Try 'snuggler', '3 seater', etc.")
}

// resolveCover never fails: cover is the one stage with a universal default.
func resolveCover(cat *catalog.Catalog, query, productSKU string) string {
	covers := cat.CoversFor(productSKU)
	if matches := catalog.Match(query, covers); len(matches) > 0 {
		return matches[0].Value
	}
	if v, ok := covers.Get(defaultCoverKeyword); ok {
		return v
	}
	if _, first, ok := covers.First(); ok {
		return first
	}
	return defaultCoverKeyword
}

func resolveFabric(cat *catalog.Catalog, query string, product catalog.ProductEntry) (catalog.FabricEntry, error) {
	fabrics := cat.FabricsFor(product.SKU)
	if fabrics.Len() == 0 {
		return catalog.FabricEntry{}, NewError(CodeFabricUnavailable,
			fmt.Sprintf("No fabrics seem to be available for '%s'.", product.FullName))
	}

	matches := catalog.Match(query, fabrics)
	if len(matches) == 0 {
		return catalog.FabricEntry{}, NewError(CodeFabricNotFound,
			fmt.Sprintf("Fabric not found for '%s'.", product.FullName)).
			WithSuggestion("Try a specific colour like 'pacific' or 'waves'.")
	}

	if len(matches) > 1 && matches[0].Confidence < 100 &&
		matches[0].Confidence-matches[1].Confidence < fabricAmbiguityGap {
		keywords := make([]string, 0, 3)
		for _, m := range matches {
			if len(keywords) == 3 {
				break
			}
			keywords = append(keywords, m.Keyword)
		}
		return catalog.FabricEntry{}, NewError(CodeAmbiguousFabric,
			"Ambiguous fabric.").WithSuggestions(keywords)
	}

	fabric := matches[0].Value
	if fabric.FabricSKU == "" || fabric.ColorSKU == "" {
		// Corrupt dictionary entry. A system fault, not a user error: surface
		// generically, log the full detail server-side.
		slog.Error("Malformed fabric entry in dictionary",
			slog.String("product_sku", product.SKU),
			slog.String("keyword", matches[0].Keyword),
			slog.String("fabric_sku", fabric.FabricSKU),
			slog.String("color_sku", fabric.ColorSKU),
		)
		return catalog.FabricEntry{}, NewError(CodeMalformedFabricData,
			fmt.Sprintf("Invalid fabric data found for '%s'.", product.FullName))
	}

	return fabric, nil
}

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

import "regexp"

type redactionPattern struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// redactionPatterns is the ordered list of secret patterns scrubbed from
// anything this package logs or folds into error text.
//
// Order matters: the OpenRouter pattern must appear before the generic
// OpenAI one since both start with "sk-".
var redactionPatterns = []redactionPattern{
	// OpenRouter API key: sk-or-v1-<hex>
	{
		Pattern:     regexp.MustCompile(`sk-or-v1-[A-Za-z0-9]{20,}`),
		Replacement: "[REDACTED:openrouter_key]",
	},
	// OpenAI-style API key: sk-<base62, 20+ chars>
	{
		Pattern:     regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
		Replacement: "[REDACTED:api_key]",
	},
	// Bearer token in Authorization header values
	{
		Pattern:     regexp.MustCompile(`Bearer\s+[A-Za-z0-9._-]{10,}`),
		Replacement: "[REDACTED:bearer_token]",
	},
	// API key in URL query parameter: key=<value>
	{
		Pattern:     regexp.MustCompile(`key=[A-Za-z0-9._-]{10,}`),
		Replacement: "key=[REDACTED]",
	},
}

// SafeLogString redacts known secret patterns from a string before logging.
//
// Description:
//
//	Upstream error bodies sometimes echo the Authorization header back.
//	Each match is replaced with a labeled placeholder so the log reader
//	knows what class of secret was present without seeing the value.
//
// Limitations:
//   - Pattern-based only; secrets in non-standard formats pass through.
//   - Single-line patterns; a secret spanning lines is not matched.
//
// Thread Safety: This function is safe for concurrent use.
func SafeLogString(s string) string {
	if s == "" {
		return s
	}
	for _, p := range redactionPatterns {
		s = p.Pattern.ReplaceAllString(s, p.Replacement)
	}
	return s
}

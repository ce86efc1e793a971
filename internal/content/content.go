// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content renders user-supplied markdown to sanitized HTML.
// Event descriptions support markdown; comments are sanitized plain
// text with no markup at all.
package content

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// ugcPolicy allows the safe user-generated-content subset of HTML,
// stripping scripts, event handlers and the rest.
var ugcPolicy = bluemonday.UGCPolicy()

// strictPolicy strips every tag, leaving only text.
var strictPolicy = bluemonday.StrictPolicy()

// RenderMarkdown converts markdown to sanitized HTML. Raw HTML in the
// source survives goldmark as-is, so the output is always passed
// through the UGC policy.
func RenderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return ugcPolicy.Sanitize(buf.String()), nil
}

// SanitizeText strips all markup from user input, for fields that are
// stored and redisplayed as plain text (comments, contact messages).
func SanitizeText(input string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(input))
}

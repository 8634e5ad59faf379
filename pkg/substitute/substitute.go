// Package substitute implements the deterministic template mini-language used
// by the document templates: plain {{FIELD}} placeholders, {{#if FIELD}}
// conditional blocks, {{#each NAME}} repeating blocks and the percentage
// coordinate transform for diagram markers. All functions are side-effect
// free: calling them twice with identical inputs yields byte-identical output.
package substitute

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Fallback is substituted for any placeholder that has no resolution path.
const Fallback = "—"

const (
	ifOpen    = "{{#if "
	ifClose   = "{{/if}}"
	eachOpen  = "{{#each "
	eachClose = "{{/each}}"

	// maxConditionalPasses bounds the innermost-first resolution loop so a
	// malformed template cannot spin. Observed templates nest at most one
	// level deep; anything past this cap is swept as unresolved.
	maxConditionalPasses = 256
)

var fieldToken = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_]*)\s*\}\}`)

// leftover matches any remaining {{...}} construct after resolution,
// including stray block tags from malformed templates.
var leftover = regexp.MustCompile(`\{\{[^{}]*\}\}`)

// Apply resolves a template against a field map: loops first, then
// conditionals innermost-out, then plain placeholders, then a final sweep
// that replaces anything still unresolved with the fallback token.
func Apply(tpl string, fields map[string]any) string {
	out := expandLoops(tpl, fields)
	out = resolveConditionals(out, fields)
	out = replaceFields(out, fields)
	return sweepUnresolved(out)
}

// Truthy implements the conditional-block predicate: absent values, empty or
// whitespace-only strings, false, zero numbers and empty collections are
// falsy; everything else is truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		s := strings.TrimSpace(t)
		return s != "" && s != "false" && s != "null" && s != "undefined"
	case float64:
		return t != 0
	case int:
		return t != 0
	case []any:
		return len(t) > 0
	case []map[string]any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// Stringify converts a present field value to its literal string form.
// A deliberately empty string stays empty; only nil (a JSON null) falls back,
// since a null value carries no more information than an absent key. Integral
// floats (the default JSON number decoding) render without a decimal point.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return Fallback
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// PercentOf converts a coordinate in source-image pixel space to a
// percentage-of-container position, so markers stay put at any render scale.
func PercentOf(coord, sourceDim float64) float64 {
	if sourceDim == 0 {
		return 0
	}
	return coord / sourceDim * 100
}

// FormatPercent renders a percentage with one decimal place, the precision
// the marker CSS positions use.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64)
}

// expandLoops replaces every {{#each NAME}}...{{/each}} block with the body
// rendered once per record. Records see their own fields layered over the
// outer field map. An empty or absent collection removes the block entirely.
// Loops do not nest.
func expandLoops(tpl string, fields map[string]any) string {
	var b strings.Builder
	rest := tpl
	for {
		open := strings.Index(rest, eachOpen)
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		nameEnd := strings.Index(rest[open:], "}}")
		if nameEnd < 0 {
			b.WriteString(rest)
			return b.String()
		}
		bodyStart := open + nameEnd + 2
		close := strings.Index(rest[bodyStart:], eachClose)
		if close < 0 {
			b.WriteString(rest)
			return b.String()
		}
		name := strings.TrimSpace(rest[open+len(eachOpen) : open+nameEnd])
		body := rest[bodyStart : bodyStart+close]

		b.WriteString(rest[:open])
		for _, record := range collection(fields[name]) {
			merged := make(map[string]any, len(fields)+len(record))
			for k, v := range fields {
				merged[k] = v
			}
			for k, v := range record {
				merged[k] = v
			}
			fragment := resolveConditionals(body, merged)
			b.WriteString(replaceFields(fragment, merged))
		}
		rest = rest[bodyStart+close+len(eachClose):]
	}
}

// collection normalizes the supported loop collection shapes to a record slice.
func collection(v any) []map[string]any {
	switch t := v.(type) {
	case []map[string]any:
		return t
	case []any:
		records := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				records = append(records, m)
			}
		}
		return records
	}
	return nil
}

// resolveConditionals removes or unwraps {{#if FIELD}} blocks, innermost
// first so nested conditionals resolve correctly: the inner block is decided
// before the outer block's body is inspected.
func resolveConditionals(tpl string, fields map[string]any) string {
	s := tpl
	for i := 0; i < maxConditionalPasses; i++ {
		close := strings.Index(s, ifClose)
		if close < 0 {
			return s
		}
		open := strings.LastIndex(s[:close], ifOpen)
		if open < 0 {
			// Closing tag with no opener; drop it and keep going.
			s = s[:close] + s[close+len(ifClose):]
			continue
		}
		nameEnd := strings.Index(s[open:], "}}")
		if nameEnd < 0 || open+nameEnd > close {
			return s
		}
		name := strings.TrimSpace(s[open+len(ifOpen) : open+nameEnd])
		body := s[open+nameEnd+2 : close]

		if Truthy(fields[name]) {
			s = s[:open] + body + s[close+len(ifClose):]
		} else {
			s = s[:open] + s[close+len(ifClose):]
		}
	}
	return s
}

// replaceFields substitutes every plain {{FIELD}} token that has a value in
// the field map with its literal string form, empty included. Only tokens
// without a value are left for the fallback sweep.
func replaceFields(tpl string, fields map[string]any) string {
	return fieldToken.ReplaceAllStringFunc(tpl, func(tok string) string {
		name := strings.TrimSpace(tok[2 : len(tok)-2])
		v, ok := fields[name]
		if !ok {
			return tok
		}
		return Stringify(v)
	})
}

// sweepUnresolved guarantees placeholder completeness: any {{...}} construct
// that survived resolution becomes the fallback token.
func sweepUnresolved(tpl string) string {
	return leftover.ReplaceAllString(tpl, Fallback)
}

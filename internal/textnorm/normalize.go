// Package textnorm is the single point of truth for name comparability.
// Every string comparison in the matcher and the registry runs both sides
// through Normalize, otherwise scores are not reproducible.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	bracketed  = regexp.MustCompile(`\(.*?\)`)
	nonAlnum   = regexp.MustCompile(`[^a-z0-9 ]`)
	spaceRuns  = regexp.MustCompile(`\s+`)
	deaccenter = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// stopWords are institutional filler removed when building the filtered
// variant of a name with more than two tokens.
var stopWords = map[string]bool{
	"college":    true,
	"university": true,
	"institute":  true,
	"school":     true,
	"academy":    true,
	"department": true,
}

// Normalize canonicalizes text for case-insensitive matching: folds
// diacritics, lower-cases, strips bracketed substrings like "(W)", removes
// everything that is not alphanumeric or a space, collapses whitespace runs,
// and trims. Empty input yields "".
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	if folded, _, err := transform.String(deaccenter, text); err == nil {
		text = folded
	}

	text = strings.ToLower(text)
	text = bracketed.ReplaceAllString(text, "")
	text = nonAlnum.ReplaceAllString(text, " ")
	text = spaceRuns.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// ExpandVariants returns the comparison variants of an institution name, most
// faithful first: the normalized form; a compacted form with internal spaces
// removed (OCR space artifacts); and, when the normalized form has more than
// two tokens, a form with institutional stop-words removed. Callers may
// short-circuit on the first exact hit, so order matters.
func ExpandVariants(name string) []string {
	if name == "" {
		return nil
	}

	normalized := Normalize(name)
	if normalized == "" {
		return nil
	}
	variants := []string{normalized}

	compact := strings.ReplaceAll(normalized, " ", "")
	if compact != normalized {
		variants = append(variants, compact)
	}

	words := strings.Fields(normalized)
	if len(words) > 2 {
		filtered := words[:0:0]
		for _, w := range words {
			if !stopWords[w] {
				filtered = append(filtered, w)
			}
		}
		if len(filtered) > 0 && len(filtered) != len(words) {
			variants = append(variants, strings.Join(filtered, " "))
		}
	}

	return variants
}

// Package textclean removes boilerplate labels from OCR output.
package textclean

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Options controls post-processing beyond token removal.
type Options struct {
	NormalizeForm      string // "NFC" (default), "NFKC", "NFD", "NFKD", "none" to disable
	CollapseWhitespace bool   // collapse runs of whitespace to a single space
	RemoveZeroWidth    bool   // remove zero-width spaces/joiners
	RemoveControlChars bool   // remove non-printable control characters
}

// NormalizeForms lists the accepted Options.NormalizeForm values.
var NormalizeForms = []string{"NFC", "NFKC", "NFD", "NFKD", "none"}

// ValidForm reports whether form is one of NormalizeForms (case-insensitive)
// or empty.
func ValidForm(form string) bool {
	if form == "" {
		return true
	}
	for _, f := range NormalizeForms {
		if strings.EqualFold(f, form) {
			return true
		}
	}
	return false
}

// DefaultOptions normalizes to NFC and leaves whitespace layout intact, so
// Clean only drops the tokens and trims the ends.
func DefaultOptions() Options {
	return Options{NormalizeForm: "NFC"}
}

// Clean removes every occurrence of each token and trims surrounding
// whitespace. It never fails; text without any of the tokens is only trimmed.
func Clean(text string, tokens []string) string {
	return CleanWith(text, tokens, DefaultOptions())
}

// CleanWith is Clean with explicit options.
func CleanWith(text string, tokens []string, opts Options) string {
	if text == "" {
		return text
	}

	text = normalize(text, opts.NormalizeForm)
	if opts.RemoveZeroWidth {
		text = removeZeroWidth(text)
	}
	if opts.RemoveControlChars {
		text = removeControlChars(text)
	}

	// Tokens are removed in list order; a token that is a prefix of a later
	// one must be listed after it.
	for _, tok := range tokens {
		tok = normalize(tok, opts.NormalizeForm)
		if tok == "" {
			continue
		}
		text = strings.ReplaceAll(text, tok, "")
	}

	if opts.CollapseWhitespace {
		text = wsRe.ReplaceAllString(text, " ")
	}
	return strings.TrimSpace(text)
}

func normalize(s, form string) string {
	switch strings.ToUpper(form) {
	case "NFC", "":
		return norm.NFC.String(s)
	case "NFKC":
		return norm.NFKC.String(s)
	case "NFD":
		return norm.NFD.String(s)
	case "NFKD":
		return norm.NFKD.String(s)
	}
	return s
}

var wsRe = regexp.MustCompile(`\s+`)

func removeZeroWidth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\u200B', '\u200C', '\u200D', '\uFEFF':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func removeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package ingest

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeColumn turns an arbitrary CSV header into a SQL-safe identifier.
//
//   - surrounding whitespace is trimmed
//   - every character other than a word character or '-' becomes '_'
//   - runs of '_' collapse to one, and leading/trailing '_' are dropped
//   - a leading digit gets a "col_" prefix
//   - an empty result becomes "unnamed_column"
//
// SanitizeColumn is idempotent.
func SanitizeColumn(name string) string {
	name = strings.TrimSpace(name)

	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		if !isWordRune(r) && r != '-' {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "unnamed_column"
	}
	if first, _ := utf8.DecodeRuneInString(out); unicode.IsDigit(first) {
		out = "col_" + out
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// SanitizeHeaders sanitises every header and disambiguates collisions with
// numeric suffixes ("Email", "Email_2", ...).
func SanitizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		name := SanitizeColumn(h)
		key := strings.ToLower(name)
		if seen[key] {
			for n := 2; ; n++ {
				candidate := name + "_" + strconv.Itoa(n)
				if !seen[strings.ToLower(candidate)] {
					name = candidate
					key = strings.ToLower(candidate)
					break
				}
			}
		}
		seen[key] = true
		out[i] = name
	}
	return out
}

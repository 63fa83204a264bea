// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fsutil

import (
	"strings"
	"unicode"
)

const maxSlugLen = 48

// Slug reduces s to a filesystem-safe name: letters, digits, '.', '_' and '-'
// survive, every other run of characters becomes one '-'. It never returns an
// empty string.
func Slug(s string, fallback string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_'):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-.")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-.")
	}
	if slug == "" {
		return fallback
	}
	return slug
}

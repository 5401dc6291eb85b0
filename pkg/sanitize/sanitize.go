package sanitize

import (
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Plain email addresses (case-insensitive)
var reEmail = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)

// Common phone formats: +63..., (02) 8123-4567, 0917..., etc.
// Only digits, spaces, dashes, dots, parentheses and plus are allowed; at least 9 digits total.
var rePhone = regexp.MustCompile(`\+?\d[\d\s\-\.\(\)]{7,}\d`)

// Anything outside this set is replaced in storage object names.
var reUnsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func RedactPII(s string) string {
	if s == "" {
		return s
	}
	s = reEmail.ReplaceAllString(s, "[redacted email]")
	s = rePhone.ReplaceAllString(s, "[redacted phone]")
	return s
}

// Summary cuts s to at most max runes, preferring the last space before
// the limit, and marks the cut with an ellipsis.
func Summary(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	cut := max
	if i := strings.LastIndexByte(string(r[:max+1]), ' '); i > 0 {
		cut = utf8.RuneCountInString(string(r[:max+1])[:i])
	}
	return strings.TrimRight(string(r[:cut]), " ") + "…"
}

// Filename turns an uploaded file name into a storage-safe object name.
func Filename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = reUnsafeName.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		return "file"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}

// Package security holds input sanitizing, password hashing and per-client
// rate limiting.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxInputLength is the rune limit applied when none is given.
const DefaultMaxInputLength = 2000

var (
	inlineHandlerQuoted = regexp.MustCompile(`(?i)on\w+\s*=\s*["'][^"']*["']`)
	inlineHandlerBare   = regexp.MustCompile(`(?i)on\w+\s*=\s*[^\s>]+`)
	javascriptURL       = regexp.MustCompile(`(?i)javascript:[^\s<>"']*`)
	htmlDataURL         = regexp.MustCompile(`(?i)data:[^<>]*text/html[^<>]*`)
)

// Sanitizer strips markup and script vectors from user text.
type Sanitizer struct {
	policy *bluemonday.Policy
	maxLen int
}

// NewSanitizer creates a Sanitizer. A non-positive maxLen uses
// DefaultMaxInputLength.
func NewSanitizer(maxLen int) *Sanitizer {
	if maxLen <= 0 {
		maxLen = DefaultMaxInputLength
	}
	return &Sanitizer{policy: bluemonday.StrictPolicy(), maxLen: maxLen}
}

// Clean truncates text to the configured rune limit and removes markup.
func (s *Sanitizer) Clean(text string) string {
	return s.CleanN(text, s.maxLen)
}

// CleanN is Clean with an explicit rune limit.
func (s *Sanitizer) CleanN(text string, maxLen int) string {
	if text == "" {
		return ""
	}
	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		text = string([]rune(text)[:maxLen])
	}

	text = s.policy.Sanitize(text)
	text = inlineHandlerQuoted.ReplaceAllString(text, "")
	text = inlineHandlerBare.ReplaceAllString(text, "")
	text = javascriptURL.ReplaceAllString(text, "")
	text = htmlDataURL.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

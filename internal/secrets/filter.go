package secrets

import (
	"regexp"
	"strings"
)

// LineFilter decides whether a matched line should be suppressed. It is a
// separate stage from the rules so suppression policy can be tested on its
// own and tuned without touching the patterns.
type LineFilter struct {
	allow []*regexp.Regexp

	// MinifiedLineLength and MinifiedWhitespaceRatio tune the minification
	// heuristic: lines at least this long with less whitespace than the
	// ratio are treated as bundler output.
	MinifiedLineLength      int
	MinifiedWhitespaceRatio float64
}

// Curated allowlist of line shapes that look like secrets but are not:
// intentionally public keys, analytics ids, subresource hashes, and
// minified-code artifacts around key-ish property names.
var defaultAllowPatterns = []*regexp.Regexp{
	// CAPTCHA site keys are public by design.
	regexp.MustCompile(`(?i)(?:sitekey|site_key|recaptcha|hcaptcha|turnstile)`),
	// Analytics and tag-manager ids.
	regexp.MustCompile(`(?i)(?:gtag\(|google-analytics|googletagmanager|UA-\d{4,10}-\d{1,4}|G-[A-Z0-9]{8,12}|GTM-[A-Z0-9]{5,9})`),
	// Publishable / intentionally client-side keys.
	regexp.MustCompile(`(?i)(?:pk_live_|pk_test_|publishable[_-]?key|public[_-]?key)`),
	// Supabase anon keys are meant to be embedded; exposure is judged by the
	// access-control prober, not reported as a leak.
	regexp.MustCompile(`(?i)supabase`),
	// Subresource integrity hashes.
	regexp.MustCompile(`(?:integrity=|sha256-|sha384-|sha512-)`),
	// Bare hex digests (content hashes, build ids).
	regexp.MustCompile(`["'][0-9a-f]{32,64}["']`),
	// Keyboard/animation property names that embed "key".
	regexp.MustCompile(`(?i)(?:keyframes|keycode|keydown|keyup|keypress|hotkey|monkey)`),
	// Source map references.
	regexp.MustCompile(`sourceMappingURL`),
}

// NewLineFilter returns the default suppression filter.
func NewLineFilter() *LineFilter {
	return &LineFilter{
		allow:                   defaultAllowPatterns,
		MinifiedLineLength:      800,
		MinifiedWhitespaceRatio: 0.05,
	}
}

// Allowlisted reports whether the line matches a known false-positive shape.
func (f *LineFilter) Allowlisted(line string) bool {
	for _, re := range f.allow {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// LikelyMinified reports whether the line looks like bundler output:
// very long with almost no whitespace. Heuristic matches on such lines are
// suppressed; trusted provider patterns are not.
func (f *LineFilter) LikelyMinified(line string) bool {
	if len(line) < f.MinifiedLineLength {
		return false
	}
	ws := 0
	for _, r := range line {
		if r == ' ' || r == '\t' {
			ws++
		}
	}
	return float64(ws)/float64(len(line)) < f.MinifiedWhitespaceRatio
}

// containingLine returns the full line of text around the byte offset.
func containingLine(text string, offset int) string {
	start := strings.LastIndexByte(text[:offset], '\n') + 1
	end := strings.IndexByte(text[offset:], '\n')
	if end < 0 {
		return text[start:]
	}
	return text[start : offset+end]
}

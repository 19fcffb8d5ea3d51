// Package secrets statically detects credential-like strings in fetched
// page and script content. Detection is an ordered rule engine with a
// separate false-positive suppression stage; every emitted finding is
// redacted before it leaves this package.
package secrets

import (
	"strings"

	"github.com/argusscan/argus/internal/logging"
)

// Finding is one redacted, classified leak. Preview and Details never carry
// the full matched secret, only its first characters plus a mask.
type Finding struct {
	Type     string   `json:"type"`
	Preview  string   `json:"preview"`
	Details  string   `json:"details"`
	Severity Severity `json:"severity"`
}

const (
	redactKeep = 8
	redactMask = "********"

	// detailContext bounds how much of the surrounding line is kept in Details.
	detailContext = 40
)

type Detector struct {
	rules  []Rule
	filter *LineFilter
	logger logging.Logger
}

// NewDetector builds a detector with the default rules and filter.
func NewDetector(logger logging.Logger) *Detector {
	return NewDetectorWithRules(DefaultRules(), NewLineFilter(), logger)
}

// NewDetectorWithRules allows injecting a custom rule list and filter,
// used by tests to exercise rules and suppression independently.
func NewDetectorWithRules(rules []Rule, filter *LineFilter, logger logging.Logger) *Detector {
	return &Detector{
		rules:  rules,
		filter: filter,
		logger: logger.With(logging.Field{Key: "component", Value: "secret-detector"}),
	}
}

// Detect runs every rule over text and returns redacted, deduplicated
// findings. Heuristic-rule matches on allowlisted or likely-minified lines
// are dropped; trusted provider patterns survive minified context but still
// honor the allowlist.
func (d *Detector) Detect(text string) []Finding {
	var findings []Finding
	for _, rule := range d.rules {
		locs := rule.Pattern.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			secret := text[loc[0]:loc[1]]
			line := containingLine(text, loc[0])

			if d.filter.Allowlisted(line) {
				d.logger.Debug("match suppressed by allowlist",
					logging.Field{Key: "rule", Value: rule.Name})
				continue
			}
			if !rule.Trusted && d.filter.LikelyMinified(line) {
				d.logger.Debug("heuristic match suppressed in minified line",
					logging.Field{Key: "rule", Value: rule.Name})
				continue
			}

			findings = append(findings, Finding{
				Type:     rule.Name,
				Preview:  RedactPreview(secret),
				Details:  redactedContext(line, secret),
				Severity: rule.Severity,
			})
		}
	}
	return Dedupe(findings)
}

// Dedupe collapses findings that share a preview string, preserving the
// order of first occurrence. Used both inside Detect and when merging
// findings from multiple sources (page HTML plus each script).
func Dedupe(findings []Finding) []Finding {
	seen := make(map[string]struct{}, len(findings))
	out := findings[:0:0]
	for _, f := range findings {
		if _, ok := seen[f.Preview]; ok {
			continue
		}
		seen[f.Preview] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Redact keeps the first few characters of a secret and replaces the rest
// with a fixed-width mask, so the output length reveals nothing either.
func Redact(secret string) string {
	if len(secret) <= redactKeep {
		half := len(secret) / 2
		return secret[:half] + redactMask
	}
	return secret[:redactKeep] + redactMask
}

// RedactPreview is the shorter display form used for listings and dedupe.
func RedactPreview(secret string) string {
	if len(secret) <= redactKeep {
		half := len(secret) / 2
		return secret[:half] + "..."
	}
	return secret[:redactKeep] + "..."
}

// redactedContext returns a snippet of the containing line with the secret
// replaced by its redacted form. The snippet is trimmed around the secret's
// position so huge lines don't bloat reports.
func redactedContext(line, secret string) string {
	idx := strings.Index(line, secret)
	if idx < 0 {
		return Redact(secret)
	}

	start := idx - detailContext
	if start < 0 {
		start = 0
	}
	end := idx + len(secret) + detailContext
	if end > len(line) {
		end = len(line)
	}

	// The secret may repeat inside the kept window; every occurrence is
	// redacted, not just the one that triggered the match.
	snippet := strings.ReplaceAll(line[start:end], secret, Redact(secret))
	return strings.TrimSpace(snippet)
}

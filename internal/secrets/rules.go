package secrets

import "regexp"

// Severity classifies how bad a leaked credential is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rule is one named detection pattern. Trusted rules are provider-specific
// formats precise enough to fire even inside minified bundles; untrusted
// (heuristic) rules are suppressed there because generic assignments inside
// minified code are overwhelmingly library internals, not leaks.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Severity Severity
	Trusted  bool
}

// DefaultRules returns the ordered rule list. Trusted provider formats come
// first so a string matching both a provider rule and a generic one is
// reported under its specific name.
func DefaultRules() []Rule {
	return []Rule{
		// Provider-specific formats, trusted in any context.
		{Name: "AWS Key", Pattern: regexp.MustCompile(`AKIA[0-9A-Z]{16}`), Severity: SeverityCritical, Trusted: true},
		{Name: "GitHub Token", Pattern: regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`), Severity: SeverityCritical, Trusted: true},
		{Name: "Slack Token", Pattern: regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}-[a-zA-Z0-9]{24}`), Severity: SeverityCritical, Trusted: true},
		{Name: "Stripe Secret Key", Pattern: regexp.MustCompile(`sk_live_[0-9a-zA-Z]{24,}`), Severity: SeverityCritical, Trusted: true},
		{Name: "Google API Key", Pattern: regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), Severity: SeverityHigh, Trusted: true},
		{Name: "Private Key", Pattern: regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH |PGP )?PRIVATE KEY-----`), Severity: SeverityCritical, Trusted: true},
		{Name: "JWT Token", Pattern: regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{8,}`), Severity: SeverityHigh, Trusted: true},

		// Heuristic patterns, suppressed in likely-minified lines.
		{Name: "Generic API Key", Pattern: regexp.MustCompile(`(?i)(?:api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["'][A-Za-z0-9_\-]{16,}["']`), Severity: SeverityHigh},
		{Name: "Generic Secret", Pattern: regexp.MustCompile(`(?i)(?:secret|client_secret|access_token)\s*[:=]\s*["'][A-Za-z0-9_\-./+]{16,}["']`), Severity: SeverityHigh},
		{Name: "Bearer Token", Pattern: regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]{20,}`), Severity: SeverityHigh},
		{Name: "Key In URL", Pattern: regexp.MustCompile(`(?i)[?&](?:api_?key|token|secret|access_token)=[A-Za-z0-9._\-]{12,}`), Severity: SeverityMedium},
		{Name: "Password Assignment", Pattern: regexp.MustCompile(`(?i)password\s*[:=]\s*["'][^"']{8,}["']`), Severity: SeverityMedium},
	}
}

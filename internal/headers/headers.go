// Package headers audits HTTP response headers against the canonical set of
// browser security headers.
package headers

import "net/http"

// Canonical is the fixed set of security headers every audit reports on.
// The audit result always partitions exactly this set.
var Canonical = []string{
	"content-security-policy",
	"strict-transport-security",
	"x-frame-options",
	"x-content-type-options",
	"x-xss-protection",
	"referrer-policy",
	"permissions-policy",
}

// Audit is the result of checking a response against Canonical.
// Present and Missing are disjoint and together cover the canonical set.
type Audit struct {
	Present []string `json:"present"`
	Missing []string `json:"missing"`
}

// AuditHeaders checks which canonical security headers are set.
// Header-name matching is case-insensitive. Pure function, safe to re-run.
func AuditHeaders(h http.Header) Audit {
	audit := Audit{
		Present: make([]string, 0, len(Canonical)),
		Missing: make([]string, 0, len(Canonical)),
	}
	for _, name := range Canonical {
		if h.Get(name) != "" {
			audit.Present = append(audit.Present, name)
		} else {
			audit.Missing = append(audit.Missing, name)
		}
	}
	return audit
}

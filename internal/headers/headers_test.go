package headers_test

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/argusscan/argus/internal/headers"
)

func TestAuditHeaders_AllMissing(t *testing.T) {
	t.Parallel()

	audit := headers.AuditHeaders(http.Header{})

	if len(audit.Present) != 0 {
		t.Errorf("expected no present headers, got %v", audit.Present)
	}
	if len(audit.Missing) != len(headers.Canonical) {
		t.Errorf("expected %d missing headers, got %d", len(headers.Canonical), len(audit.Missing))
	}
}

func TestAuditHeaders_AllPresent(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	for _, name := range headers.Canonical {
		h.Set(name, "value")
	}

	audit := headers.AuditHeaders(h)

	if len(audit.Missing) != 0 {
		t.Errorf("expected no missing headers, got %v", audit.Missing)
	}
	if len(audit.Present) != len(headers.Canonical) {
		t.Errorf("expected %d present headers, got %d", len(headers.Canonical), len(audit.Present))
	}
}

func TestAuditHeaders_CaseInsensitive(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("CONTENT-SECURITY-POLICY", "default-src 'self'")
	h.Set("Strict-Transport-Security", "max-age=31536000")

	audit := headers.AuditHeaders(h)

	want := []string{"content-security-policy", "strict-transport-security"}
	if !reflect.DeepEqual(audit.Present, want) {
		t.Errorf("expected present %v, got %v", want, audit.Present)
	}
}

func TestAuditHeaders_PartitionsCanonicalSet(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "no-referrer")

	audit := headers.AuditHeaders(h)

	if len(audit.Present)+len(audit.Missing) != len(headers.Canonical) {
		t.Fatalf("present (%d) + missing (%d) should cover the canonical set (%d)",
			len(audit.Present), len(audit.Missing), len(headers.Canonical))
	}

	seen := make(map[string]bool)
	for _, name := range append(append([]string{}, audit.Present...), audit.Missing...) {
		if seen[name] {
			t.Errorf("header %q appears in both partitions", name)
		}
		seen[name] = true
	}
}

func TestAuditHeaders_Idempotent(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("X-Content-Type-Options", "nosniff")

	first := headers.AuditHeaders(h)
	second := headers.AuditHeaders(h)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-auditing the same headers gave a different result: %v vs %v", first, second)
	}
}

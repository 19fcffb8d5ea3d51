package utils_test

import (
	"testing"

	"github.com/argusscan/argus/internal/utils"
)

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	opts := utils.CanonicalizeOptions{
		DropTrackingParams: true,
		StripTrailingSlash: true,
		DefaultScheme:      "https",
	}

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"schemeless gets default", "example.com", "https://example.com/"},
		{"uppercase host lowered", "https://EXAMPLE.com/Path", "https://example.com/Path"},
		{"default port dropped", "https://example.com:443/x", "https://example.com/x"},
		{"custom port kept", "https://example.com:8443/x", "https://example.com:8443/x"},
		{"fragment removed", "https://example.com/a#section", "https://example.com/a"},
		{"trailing slash stripped", "https://example.com/a/", "https://example.com/a"},
		{"root slash kept", "https://example.com/", "https://example.com/"},
		{"tracking params dropped", "https://example.com/?utm_source=x&q=1", "https://example.com/?q=1"},
		{"query sorted", "https://example.com/?b=2&a=1", "https://example.com/?a=1&b=2"},
		{"dot segments cleaned", "https://example.com/a/../b", "https://example.com/b"},
		{"idn to punycode", "https://bücher.example/x", "https://xn--bcher-kva.example/x"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := utils.Canonicalize(tc.in, opts)
			if err != nil {
				t.Fatalf("Canonicalize(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCanonicalize_Deterministic(t *testing.T) {
	t.Parallel()

	opts := utils.CanonicalizeOptions{StripTrailingSlash: true, DefaultScheme: "https"}

	first, err := utils.Canonicalize("Example.com/a/?z=1&y=2", opts)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	second, err := utils.Canonicalize(first, opts)
	if err != nil {
		t.Fatalf("Canonicalize round 2: %v", err)
	}
	if first != second {
		t.Errorf("canonicalizing a canonical URL changed it: %q -> %q", first, second)
	}
}

func TestCanonicalize_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		opts utils.CanonicalizeOptions
	}{
		{"empty", "", utils.CanonicalizeOptions{}},
		{"whitespace only", "   ", utils.CanonicalizeOptions{}},
		{"schemeless without default", "example.com", utils.CanonicalizeOptions{}},
		{"no host", "https://", utils.CanonicalizeOptions{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got, err := utils.Canonicalize(tc.in, tc.opts); err == nil {
				t.Errorf("expected error for %q, got %q", tc.in, got)
			}
		})
	}
}

func TestURLTools_ResolveFullUrlString(t *testing.T) {
	t.Parallel()

	base, err := utils.NewURLTools("https://example.com/app/index.html")
	if err != nil {
		t.Fatalf("NewURLTools: %v", err)
	}

	cases := []struct {
		in   string
		want string
	}{
		{"/static/app.js", "https://example.com/static/app.js"},
		{"app.js", "https://example.com/app/app.js"},
		{"https://cdn.example.com/lib.js", "https://cdn.example.com/lib.js"},
		{"//cdn.example.com/lib.js", "https://cdn.example.com/lib.js"},
	}

	for _, tc := range cases {
		got, err := base.ResolveFullUrlString(tc.in)
		if err != nil {
			t.Fatalf("ResolveFullUrlString(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ResolveFullUrlString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestURLTools_RegistrableDomain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"https://www.example.com/x", "example.com"},
		{"https://example.com", "example.com"},
		{"https://api.example.com", "api.example.com"},
	}

	for _, tc := range cases {
		u, err := utils.NewURLTools(tc.in)
		if err != nil {
			t.Fatalf("NewURLTools(%q): %v", tc.in, err)
		}
		if got := u.RegistrableDomain(); got != tc.want {
			t.Errorf("RegistrableDomain(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

package subdomains_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/argusscan/argus/internal/subdomains"
	"github.com/argusscan/argus/internal/testutil"
)

func testConfig() subdomains.Config {
	return subdomains.Config{
		Candidates:  []string{"www", "api", "dead", "broken"},
		Concurrency: 2,
		Timeout:     time.Second,
	}
}

func fakeLookup(resolvable map[string]bool) func(context.Context, string) ([]string, error) {
	return func(_ context.Context, host string) ([]string, error) {
		if resolvable[host] {
			return []string{"192.0.2.1"}, nil
		}
		return nil, errors.New("no such host")
	}
}

func TestDiscoverer_Discover(t *testing.T) {
	t.Parallel()

	wc := &testutil.DummyWebClient{
		Responses: map[string]testutil.CannedResponse{
			"https://www.example.com":    {Status: 200, Body: "home"},
			"https://api.example.com":    {Status: 404, Body: "not found"},
			"https://broken.example.com": {Status: 503, Body: "down"},
		},
	}

	d := subdomains.NewDiscoverer(testConfig(), wc, &testutil.DummyLogger{})
	d.Lookup = fakeLookup(map[string]bool{
		"www.example.com":    true,
		"api.example.com":    true,
		"broken.example.com": true,
		// dead.example.com does not resolve.
	})

	live := d.Discover(context.Background(), "example.com")

	// 404 still proves a live host; 503 and unresolvable names do not.
	want := []string{"api.example.com", "www.example.com"}
	if !reflect.DeepEqual(live, want) {
		t.Errorf("expected %v, got %v", want, live)
	}
}

func TestDiscoverer_Discover_NothingLive(t *testing.T) {
	t.Parallel()

	d := subdomains.NewDiscoverer(testConfig(), &testutil.DummyWebClient{}, &testutil.DummyLogger{})
	d.Lookup = fakeLookup(nil)

	if live := d.Discover(context.Background(), "example.com"); len(live) != 0 {
		t.Errorf("expected no live subdomains, got %v", live)
	}
}

func TestDiscoverer_Discover_ProbeFailureIsNotLive(t *testing.T) {
	t.Parallel()

	wc := &testutil.DummyWebClient{
		FailURLs: map[string]bool{"https://www.example.com": true},
	}

	cfg := testConfig()
	cfg.Candidates = []string{"www"}
	d := subdomains.NewDiscoverer(cfg, wc, &testutil.DummyLogger{})
	d.Lookup = fakeLookup(map[string]bool{"www.example.com": true})

	if live := d.Discover(context.Background(), "example.com"); len(live) != 0 {
		t.Errorf("resolved name with failing HTTPS probe should not be live, got %v", live)
	}
}

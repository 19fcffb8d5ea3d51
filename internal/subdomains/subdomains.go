// Package subdomains enumerates candidate subdomains of a target domain
// and checks which of them are live. It is intentionally shallow: a fixed
// candidate list, DNS resolution, and one HTTPS liveness probe each.
package subdomains

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/argusscan/argus/internal/logging"
	"github.com/argusscan/argus/internal/webclient"
)

// DefaultCandidates are the subdomain prefixes worth checking on almost
// any target.
var DefaultCandidates = []string{
	"www", "api", "app", "admin", "staging", "dev", "test", "beta",
	"portal", "dashboard", "mail", "blog", "shop", "docs", "cdn",
}

type Config struct {
	Candidates  []string
	Concurrency int
	Timeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Candidates:  DefaultCandidates,
		Concurrency: 5,
		Timeout:     3 * time.Second,
	}
}

type Discoverer struct {
	cfg    Config
	wc     webclient.WebClient
	logger logging.Logger

	// Lookup resolves a hostname. Defaults to the system resolver;
	// replaceable in tests.
	Lookup func(ctx context.Context, host string) ([]string, error)
}

func NewDiscoverer(cfg Config, wc webclient.WebClient, logger logging.Logger) *Discoverer {
	if len(cfg.Candidates) == 0 {
		cfg.Candidates = DefaultCandidates
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Discoverer{
		cfg:    cfg,
		wc:     wc,
		Lookup: net.DefaultResolver.LookupHost,
		logger: logger.With(logging.Field{Key: "component", Value: "subdomains"}),
	}
}

// Discover returns the live subdomains of domain, sorted. A candidate is
// live when its name resolves and an HTTPS GET answers with any status
// below 500. Individual failures are silent; only the aggregate matters.
func (d *Discoverer) Discover(ctx context.Context, domain string) []string {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		live []string
	)
	sem := make(chan struct{}, d.cfg.Concurrency)

	for _, prefix := range d.cfg.Candidates {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(prefix string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			fqdn := prefix + "." + domain
			if d.isLive(ctx, fqdn) {
				mu.Lock()
				live = append(live, fqdn)
				mu.Unlock()
			}
		}(prefix)
	}

	wg.Wait()
	sort.Strings(live)

	d.logger.Info("subdomain discovery finished",
		logging.Field{Key: "domain", Value: domain},
		logging.Field{Key: "live", Value: len(live)})
	return live
}

func (d *Discoverer) isLive(ctx context.Context, fqdn string) bool {
	lookupCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	addrs, err := d.Lookup(lookupCtx, fqdn)
	if err != nil || len(addrs) == 0 {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	resp, err := d.wc.Get(probeCtx, "https://"+fqdn)
	if err != nil {
		return false
	}
	return resp.StatusCode < 500
}

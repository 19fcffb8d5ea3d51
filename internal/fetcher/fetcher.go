// Package fetcher retrieves a page and the script content reachable from
// it. It is the single entry point for pipeline steps that need target
// content: one page fetch plus a bounded, concurrent set of script
// sub-fetches.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/argusscan/argus/internal/logging"
	"github.com/argusscan/argus/internal/utils"
	"github.com/argusscan/argus/internal/webclient"
)

// Script is one collected script blob, inline or fetched from a src link.
type Script struct {
	// Source identifies where the content came from: the resolved URL for
	// linked scripts, "inline#N" for inline blocks.
	Source string

	Content string
}

// PageContent is everything one page fetch yields.
type PageContent struct {
	URL        string
	StatusCode int
	Headers    http.Header
	HTML       string
	Scripts    []Script

	// SkippedScripts counts linked scripts that failed to fetch and were
	// dropped rather than failing the page.
	SkippedScripts int
}

// Pool returns the page HTML plus every script body as one content slice,
// the shape the secret detector and credential extractor consume.
func (p *PageContent) Pool() []string {
	pool := make([]string, 0, len(p.Scripts)+1)
	pool = append(pool, p.HTML)
	for _, s := range p.Scripts {
		pool = append(pool, s.Content)
	}
	return pool
}

type Fetcher struct {
	cfg    Config
	wc     webclient.WebClient
	logger logging.Logger
}

// New creates a Fetcher over the given webclient.
func New(cfg Config, wc webclient.WebClient, logger logging.Logger) (*Fetcher, error) {
	if wc == nil {
		return nil, fmt.Errorf("fetcher: webclient is nil")
	}
	if cfg.MaxScripts <= 0 {
		cfg.MaxScripts = DefaultConfig().MaxScripts
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if cfg.ScriptTimeout <= 0 {
		cfg.ScriptTimeout = DefaultConfig().ScriptTimeout
	}
	return &Fetcher{
		cfg:    cfg,
		wc:     wc,
		logger: logger.With(logging.Field{Key: "component", Value: "fetcher"}),
	}, nil
}

// FetchPage retrieves the target page and collects its script content.
// The page fetch itself is the only fatal operation; every script
// sub-fetch is skip-and-log. A non-2xx page status is reported as a
// *webclient.FetchError of kind status.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) (*PageContent, error) {
	resp, err := f.wc.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", pageURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &webclient.FetchError{
			Kind:       webclient.FetchStatus,
			URL:        pageURL,
			StatusCode: resp.StatusCode,
		}
	}

	page := &PageContent{
		URL:        pageURL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		HTML:       string(resp.Body),
	}

	inline, links := f.extractScripts(resp.Body, pageURL)
	page.Scripts = append(page.Scripts, inline...)

	if len(links) > f.cfg.MaxScripts {
		links = links[:f.cfg.MaxScripts]
	}

	fetched, skipped := f.fetchScripts(ctx, links)
	page.Scripts = append(page.Scripts, fetched...)
	page.SkippedScripts = skipped

	f.logger.Info("fetched page",
		logging.Field{Key: "url", Value: pageURL},
		logging.Field{Key: "status", Value: resp.StatusCode},
		logging.Field{Key: "scripts", Value: len(page.Scripts)},
		logging.Field{Key: "skipped", Value: skipped})

	return page, nil
}

// extractScripts parses the HTML and returns inline script bodies plus the
// resolved URLs of linked scripts, in document order.
func (f *Fetcher) extractScripts(body []byte, pageURL string) ([]Script, []string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		f.logger.Warn("couldn't parse page html",
			logging.Field{Key: "url", Value: pageURL},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, nil
	}

	base, err := utils.NewURLTools(pageURL)
	if err != nil {
		return nil, nil
	}

	var inline []Script
	var links []string
	doc.Find("script").Each(func(i int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && src != "" {
			resolved, err := base.ResolveFullUrlString(src)
			if err != nil {
				f.logger.Warn("couldn't resolve script src",
					logging.Field{Key: "src", Value: src},
					logging.Field{Key: "error", Value: err.Error()})
				return
			}
			links = append(links, resolved)
			return
		}
		if text := sel.Text(); text != "" {
			inline = append(inline, Script{
				Source:  fmt.Sprintf("inline#%d", len(inline)),
				Content: text,
			})
		}
	})

	return inline, links
}

// fetchScripts retrieves linked scripts concurrently under a semaphore.
// Failures are counted and logged, never raised.
func (f *Fetcher) fetchScripts(ctx context.Context, links []string) ([]Script, int) {
	if len(links) == 0 {
		return nil, 0
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		scripts []Script
		skipped int
	)
	sem := make(chan struct{}, f.cfg.MaxConcurrency)

	for _, link := range links {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(link string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			scriptCtx, cancel := context.WithTimeout(ctx, f.cfg.ScriptTimeout)
			defer cancel()

			resp, err := f.wc.Get(scriptCtx, link)
			if err != nil || resp.StatusCode != http.StatusOK {
				f.logger.Warn("skipping script",
					logging.Field{Key: "url", Value: link},
					logging.Field{Key: "error", Value: errString(err, resp)})
				mu.Lock()
				skipped++
				mu.Unlock()
				return
			}

			mu.Lock()
			scripts = append(scripts, Script{Source: link, Content: string(resp.Body)})
			mu.Unlock()
		}(link)
	}

	wg.Wait()
	return scripts, skipped
}

func errString(err error, resp *webclient.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	return "unknown"
}

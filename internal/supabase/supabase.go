// Package supabase detects Supabase project credentials in client-side
// code, introspects the project's REST schema, and probes discovered
// tables for missing row-level security using only the public anon key.
package supabase

import (
	"regexp"
	"time"

	"github.com/argusscan/argus/internal/logging"
	"github.com/argusscan/argus/internal/webclient"
	"golang.org/x/time/rate"
)

// Credentials is a project endpoint plus the anon key that reaches it.
type Credentials struct {
	URL        string `json:"url"`
	ProjectRef string `json:"project_ref"`
	AnonKey    string `json:"anon_key"`
}

// Column is one best-effort recovered table column.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// TableSchema is one discovered REST resource with its access-control
// verdict. IsPublic is true only when an unauthenticated read returned at
// least one row. RLSEnabled is tracked separately because "no rows came
// back" and "access was denied" are different kinds of protected.
type TableSchema struct {
	Name         string   `json:"name"`
	Columns      []Column `json:"columns"`
	IsPublic     bool     `json:"is_public"`
	RLSEnabled   bool     `json:"rls_enabled"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

var (
	projectURLRe = regexp.MustCompile(`https://([a-z0-9][a-z0-9-]{6,})\.supabase\.co`)
	anonKeyRe    = regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{8,}`)
)

// ExtractCredentials scans a content pool (page HTML plus collected
// scripts) for a project URL and a JWT-shaped anon key. The first match of
// each wins. Returns nil when either half is missing: absent credentials
// are a normal outcome, not an error.
func ExtractCredentials(pool []string) *Credentials {
	var creds Credentials
	for _, content := range pool {
		if creds.URL == "" {
			if m := projectURLRe.FindStringSubmatch(content); m != nil {
				creds.URL = m[0]
				creds.ProjectRef = m[1]
			}
		}
		if creds.AnonKey == "" {
			if m := anonKeyRe.FindString(content); m != "" {
				creds.AnonKey = m
			}
		}
		if creds.URL != "" && creds.AnonKey != "" {
			return &creds
		}
	}
	return nil
}

// Config bounds schema discovery and table probing.
type Config struct {
	// SchemaTimeout is the budget for the single schema introspection fetch.
	SchemaTimeout time.Duration

	// ProbeTimeout is the per-table read budget.
	ProbeTimeout time.Duration

	// ProbeBatchSize caps how many tables are probed concurrently. Kept
	// small so the scan is not mistaken for an attack on the target.
	ProbeBatchSize int

	// BatchPause is the minimum spacing between probe batches.
	BatchPause time.Duration

	// RowLimit is how many rows an unauthenticated probe requests.
	RowLimit int
}

// DefaultConfig returns probing bounds matching the scan pipeline budget.
func DefaultConfig() Config {
	return Config{
		SchemaTimeout:  8 * time.Second,
		ProbeTimeout:   3 * time.Second,
		ProbeBatchSize: 5,
		BatchPause:     500 * time.Millisecond,
		RowLimit:       1,
	}
}

// Client talks to a discovered Supabase project.
type Client struct {
	cfg     Config
	wc      webclient.WebClient
	limiter *rate.Limiter
	logger  logging.Logger
}

// NewClient wires a client against the shared webclient. The internal rate
// limiter spaces probe batches at cfg.BatchPause intervals.
func NewClient(cfg Config, wc webclient.WebClient, logger logging.Logger) *Client {
	if cfg.ProbeBatchSize <= 0 {
		cfg.ProbeBatchSize = DefaultConfig().ProbeBatchSize
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = DefaultConfig().BatchPause
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = DefaultConfig().RowLimit
	}
	if cfg.SchemaTimeout <= 0 {
		cfg.SchemaTimeout = DefaultConfig().SchemaTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultConfig().ProbeTimeout
	}
	return &Client{
		cfg:     cfg,
		wc:      wc,
		limiter: rate.NewLimiter(rate.Every(cfg.BatchPause), 1),
		logger:  logger.With(logging.Field{Key: "component", Value: "supabase"}),
	}
}

// Package scan holds the scan job model, the step-oriented orchestrator
// that drives the pipeline, and the scorer that condenses results into a
// single number.
package scan

import (
	"time"

	"github.com/argusscan/argus/internal/headers"
	"github.com/argusscan/argus/internal/secrets"
	"github.com/argusscan/argus/internal/supabase"
)

// Status is the scan request lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Mode selects the pipeline depth.
type Mode string

const (
	// ModeQuick runs fetch + header audit + secret detection only.
	ModeQuick Mode = "quick"

	// ModeDeep additionally runs backend discovery, table probing and
	// subdomain enumeration as a multi-step asynchronous job.
	ModeDeep Mode = "deep"
)

// Request is one scan job record. Owned by the orchestrator: created at
// submission, mutated at step boundaries, immutable once terminal.
type Request struct {
	ID        string `json:"id"`
	TargetURL string `json:"target_url"`
	Mode      Mode   `json:"mode"`

	// AuthToken is an optional end-user token for authenticated-mode
	// probing. Never serialized into reports.
	AuthToken string `json:"-"`

	// SupabaseURL/SupabaseKey are optional out-of-band credentials that
	// take precedence over anything extracted from page content.
	SupabaseURL string `json:"-"`
	SupabaseKey string `json:"-"`

	// Authorized reflects the external payment/subscription check that
	// gates deep scans. The pipeline never computes it, only reads it.
	Authorized bool `json:"authorized"`

	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty"`
}

// Terminal reports whether the request reached a final state.
func (r *Request) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Results is the aggregate report, built section by section. Each section
// is independently optional: nil means the step hasn't run, a section with
// its Error set means it ran and failed. A completed scan may legitimately
// mix successful and errored sections.
type Results struct {
	SecurityHeaders *HeaderSection    `json:"security_headers,omitempty"`
	APIKeysAndLeaks *LeakSection      `json:"api_keys_and_leaks,omitempty"`
	BackendAnalysis *BackendSection   `json:"backend_analysis,omitempty"`
	Subdomains      *SubdomainSection `json:"subdomain_analysis,omitempty"`
	Authenticated   *AuthSection      `json:"authenticated_analysis,omitempty"`
	Metadata        Metadata          `json:"scan_metadata"`

	// OverallScore is derived, never written by any step but the scorer.
	OverallScore *int `json:"overall_score,omitempty"`
}

type HeaderSection struct {
	Audit headers.Audit `json:"audit"`
	Error string        `json:"error,omitempty"`
}

type LeakSection struct {
	Findings []secrets.Finding `json:"findings"`
	Error    string            `json:"error,omitempty"`
}

type BackendSection struct {
	SupabaseDetected bool                   `json:"supabase_detected"`
	URL              string                 `json:"url,omitempty"`
	ProjectRef       string                 `json:"project_ref,omitempty"`
	Tables           []supabase.TableSchema `json:"tables,omitempty"`
	Error            string                 `json:"error,omitempty"`
}

type SubdomainSection struct {
	Live  []string `json:"live"`
	Error string   `json:"error,omitempty"`
}

type AuthSection struct {
	Tables []supabase.TableSchema `json:"tables,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// Metadata records per-step completion and the overall pipeline status.
type Metadata struct {
	Steps  map[string]StepMeta `json:"steps,omitempty"`
	Status Status              `json:"status"`
}

type StepMeta struct {
	CompletedAt time.Time `json:"completed_at"`
	Error       string    `json:"error,omitempty"`
}

// recordStep stamps a step's completion into the metadata.
func (r *Results) recordStep(step int, err string) {
	if r.Metadata.Steps == nil {
		r.Metadata.Steps = make(map[string]StepMeta)
	}
	r.Metadata.Steps[stepName(step)] = StepMeta{
		CompletedAt: time.Now().UTC(),
		Error:       err,
	}
}

func stepName(step int) string {
	switch step {
	case StepFetch:
		return "step1_fetch"
	case StepBackend:
		return "step2_backend"
	case StepSubdomains:
		return "step3_subdomains"
	case StepFinalize:
		return "step4_finalize"
	default:
		return "unknown"
	}
}

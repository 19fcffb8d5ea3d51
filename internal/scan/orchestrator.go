package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/argusscan/argus/internal/fetcher"
	"github.com/argusscan/argus/internal/headers"
	"github.com/argusscan/argus/internal/logging"
	"github.com/argusscan/argus/internal/secrets"
	"github.com/argusscan/argus/internal/subdomains"
	"github.com/argusscan/argus/internal/supabase"
	"github.com/argusscan/argus/internal/utils"
)

// Pipeline steps. Quick scans run StepFetch only; deep scans run all four
// in sequence.
const (
	StepFetch      = 1
	StepBackend    = 2
	StepSubdomains = 3
	StepFinalize   = 4
)

// EventType tags progress events streamed to watchers.
type EventType string

const (
	EventStatus EventType = "status"
	EventStep   EventType = "step"
)

type Event struct {
	ScanID string    `json:"scan_id"`
	Type   EventType `json:"type"`
	Step   string    `json:"step,omitempty"`
	Status Status    `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`
}

type Config struct {
	// StepDelay is the scheduling pause before the next step fires,
	// avoiding tight-loop re-entrancy between persist and trigger.
	StepDelay time.Duration

	// StepTimeout is the wall-clock budget for one step. On exhaustion the
	// step behaves as if it errored and the pipeline advances.
	StepTimeout time.Duration

	// URLOpts controls target canonicalization at submission.
	URLOpts utils.CanonicalizeOptions
}

func DefaultConfig() *Config {
	return &Config{
		StepDelay:   100 * time.Millisecond,
		StepTimeout: 30 * time.Second,
		URLOpts: utils.CanonicalizeOptions{
			StripTrailingSlash: true,
			DefaultScheme:      "https",
		},
	}
}

// ErrInvalidTarget is returned by Submit for URLs that cannot be scanned.
var ErrInvalidTarget = fmt.Errorf("invalid target url")

// Submission is the external input that starts a scan.
type Submission struct {
	TargetURL string
	Mode      Mode

	// AuthToken enables authenticated-mode probing in step 4.
	AuthToken string

	// SupabaseURL/SupabaseKey supplied out-of-band always win over
	// credentials extracted from page content.
	SupabaseURL string
	SupabaseKey string

	// Authorized is the result of the external subscription check.
	Authorized bool
}

// Orchestrator sequences the pipeline steps for each scan request. Each
// step loads the record, does its work under a budget, writes its section
// (with an error marker on failure), persists, and schedules the next
// step. A step failure never aborts the pipeline; only an unloadable
// record does.
type Orchestrator struct {
	cfg      *Config
	store    Store
	fetcher  *fetcher.Fetcher
	detector *secrets.Detector
	backend  *supabase.Client
	subs     *subdomains.Discoverer
	logger   logging.Logger

	eventsMu sync.Mutex
	events   map[string]chan Event
}

func NewOrchestrator(
	cfg *Config,
	store Store,
	f *fetcher.Fetcher,
	detector *secrets.Detector,
	backend *supabase.Client,
	subs *subdomains.Discoverer,
	logger logging.Logger,
) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		fetcher:  f,
		detector: detector,
		backend:  backend,
		subs:     subs,
		logger:   logger.With(logging.Field{Key: "component", Value: "orchestrator"}),
		events:   make(map[string]chan Event),
	}
}

// Submit validates and persists a new scan request, schedules step 1, and
// returns immediately. Processing is asynchronous; callers poll or watch.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (*Request, error) {
	canonical, err := utils.Canonicalize(sub.TargetURL, o.cfg.URLOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	mode := sub.Mode
	if mode == "" {
		mode = ModeQuick
	}

	req := &Request{
		ID:          uuid.New().String(),
		TargetURL:   canonical,
		Mode:        mode,
		AuthToken:   sub.AuthToken,
		SupabaseURL: sub.SupabaseURL,
		SupabaseKey: sub.SupabaseKey,
		Authorized:  sub.Authorized,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	res := &Results{Metadata: Metadata{Status: StatusPending}}

	if err := o.store.Create(ctx, req, res); err != nil {
		return nil, fmt.Errorf("persist scan request: %w", err)
	}

	o.eventsMu.Lock()
	o.events[req.ID] = make(chan Event, 16)
	o.eventsMu.Unlock()

	o.logger.Info("scan submitted",
		logging.Field{Key: "scan_id", Value: req.ID},
		logging.Field{Key: "target", Value: canonical},
		logging.Field{Key: "mode", Value: string(mode)})

	o.schedule(req.ID, StepFetch)
	return req, nil
}

// schedule fires a step after the configured delay.
func (o *Orchestrator) schedule(id string, step int) {
	time.AfterFunc(o.cfg.StepDelay, func() {
		if err := o.RunStep(context.Background(), id, step); err != nil {
			o.logger.Error("step run failed",
				logging.Field{Key: "scan_id", Value: id},
				logging.Field{Key: "step", Value: step},
				logging.Field{Key: "error", Value: err.Error()})
		}
	})
}

// RunStep executes one pipeline step. It is also the entry point for the
// internal trigger route, so it is safe to call on completed scans (no-op)
// and returns an error only for fatal conditions: unknown step, record
// unloadable, or persistence failure.
func (o *Orchestrator) RunStep(ctx context.Context, id string, step int) error {
	if step < StepFetch || step > StepFinalize {
		return fmt.Errorf("unknown step %d", step)
	}

	req, res, err := o.store.Get(ctx, id)
	if err != nil {
		// The record itself is gone or unreadable: total pipeline failure.
		o.emit(id, Event{ScanID: id, Type: EventStatus, Status: StatusFailed, Error: "scan record unavailable"})
		o.closeEvents(id)
		return fmt.Errorf("load scan %s: %w", id, err)
	}
	if req.Terminal() {
		return nil
	}

	// A quick scan only ever runs the fetch step; the trigger route cannot
	// escalate it into the deep analyses.
	if req.Mode == ModeQuick && step != StepFetch {
		return nil
	}

	if req.Status == StatusPending {
		req.Status = StatusProcessing
		res.Metadata.Status = StatusProcessing
		o.emit(id, Event{ScanID: id, Type: EventStatus, Status: StatusProcessing})
	}

	stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	stepErr := o.runGuarded(stepCtx, step, req, res)
	cancel()

	res.recordStep(step, stepErr)
	if stepErr != "" {
		o.logger.Warn("step completed with error",
			logging.Field{Key: "scan_id", Value: id},
			logging.Field{Key: "step", Value: stepName(step)},
			logging.Field{Key: "error", Value: stepErr})
	}

	// Quick scans finish after the fetch step; deep scans finish in step 4.
	done := (req.Mode == ModeQuick && step == StepFetch) || step == StepFinalize
	if done {
		o.finalize(req, res)
	}

	if err := o.store.Update(ctx, req, res); err != nil {
		return fmt.Errorf("persist scan %s after step %d: %w", id, step, err)
	}

	o.emit(id, Event{ScanID: id, Type: EventStep, Step: stepName(step), Status: req.Status, Error: stepErr})

	if done {
		o.emit(id, Event{ScanID: id, Type: EventStatus, Status: req.Status})
		o.closeEvents(id)
		return nil
	}

	o.schedule(id, step+1)
	return nil
}

// runGuarded dispatches the step body and converts panics into step
// errors so a bug in one analysis cannot kill the pipeline.
func (o *Orchestrator) runGuarded(ctx context.Context, step int, req *Request, res *Results) (stepErr string) {
	defer func() {
		if r := recover(); r != nil {
			stepErr = fmt.Sprintf("step panic: %v", r)
		}
	}()

	switch step {
	case StepFetch:
		return o.stepFetch(ctx, req, res)
	case StepBackend:
		return o.stepBackend(ctx, req, res)
	case StepSubdomains:
		return o.stepSubdomains(ctx, req, res)
	case StepFinalize:
		return o.stepAuthenticated(ctx, req, res)
	}
	return ""
}

// stepFetch retrieves the page, audits response headers and runs secret
// detection over the page and its scripts.
func (o *Orchestrator) stepFetch(ctx context.Context, req *Request, res *Results) string {
	page, err := o.fetcher.FetchPage(ctx, req.TargetURL)
	if err != nil {
		res.SecurityHeaders = &HeaderSection{Error: "page fetch failed"}
		res.APIKeysAndLeaks = &LeakSection{Error: "page fetch failed"}
		return err.Error()
	}

	res.SecurityHeaders = &HeaderSection{Audit: headers.AuditHeaders(page.Headers)}

	var findings []secrets.Finding
	for _, content := range page.Pool() {
		findings = append(findings, o.detector.Detect(content)...)
	}
	res.APIKeysAndLeaks = &LeakSection{Findings: secrets.Dedupe(findings)}
	return ""
}

// stepBackend discovers Supabase credentials and probes the project's
// tables for missing row-level security. Out-of-band credentials on the
// request always win over extraction.
func (o *Orchestrator) stepBackend(ctx context.Context, req *Request, res *Results) string {
	endpoint, key := req.SupabaseURL, req.SupabaseKey
	var projectRef string

	if endpoint == "" || key == "" {
		page, err := o.fetcher.FetchPage(ctx, req.TargetURL)
		if err != nil {
			res.BackendAnalysis = &BackendSection{Error: "page fetch failed"}
			return err.Error()
		}
		creds := supabase.ExtractCredentials(page.Pool())
		if creds == nil {
			// Common, expected outcome: nothing to analyze.
			res.BackendAnalysis = &BackendSection{SupabaseDetected: false}
			return ""
		}
		endpoint, key, projectRef = creds.URL, creds.AnonKey, creds.ProjectRef
	}

	section := &BackendSection{
		SupabaseDetected: true,
		URL:              endpoint,
		ProjectRef:       projectRef,
	}
	res.BackendAnalysis = section

	tables, err := o.backend.DiscoverSchema(ctx, endpoint, key)
	if err != nil {
		// Schema failure is fatal to this step only; the prober and scorer
		// still run downstream against an empty table list.
		section.Error = "schema discovery failed"
		return err.Error()
	}

	section.Tables = o.backend.ProbeTables(ctx, endpoint, key, "", tables)
	return ""
}

func (o *Orchestrator) stepSubdomains(ctx context.Context, req *Request, res *Results) string {
	target, err := utils.NewURLTools(req.TargetURL)
	if err != nil {
		res.Subdomains = &SubdomainSection{Error: "unparseable target"}
		return err.Error()
	}

	live := o.subs.Discover(ctx, target.RegistrableDomain())
	res.Subdomains = &SubdomainSection{Live: live}
	return ""
}

// stepAuthenticated re-probes discovered tables with the caller's own
// token when one was supplied. Finalization happens in RunStep regardless
// of this sub-analysis succeeding.
func (o *Orchestrator) stepAuthenticated(ctx context.Context, req *Request, res *Results) string {
	if req.AuthToken == "" {
		return ""
	}

	backend := res.BackendAnalysis
	if backend == nil || !backend.SupabaseDetected || backend.URL == "" {
		res.Authenticated = &AuthSection{Error: "no backend credentials discovered"}
		return ""
	}

	key := req.SupabaseKey
	if key == "" {
		// The anon key is re-extracted rather than persisted; fall back to
		// probing with the user token as both apikey and bearer.
		key = req.AuthToken
	}

	res.Authenticated = &AuthSection{
		Tables: o.backend.ProbeTables(ctx, backend.URL, key, req.AuthToken, backend.Tables),
	}
	return ""
}

// finalize computes the overall score, stamps duration and marks the scan
// completed. Runs whether or not individual sections errored: completed
// means "pipeline finished", not "all sections succeeded".
func (o *Orchestrator) finalize(req *Request, res *Results) {
	res.OverallScore = computeScore(req.Mode, res)

	now := time.Now().UTC()
	req.Status = StatusCompleted
	req.CompletedAt = &now
	req.DurationMS = now.Sub(req.CreatedAt).Milliseconds()
	res.Metadata.Status = StatusCompleted

	o.logger.Info("scan completed",
		logging.Field{Key: "scan_id", Value: req.ID},
		logging.Field{Key: "duration_ms", Value: req.DurationMS})
}

// computeScore derives the overall score. It returns nil unless both the
// header audit and secret detection produced usable results: a score over
// missing inputs would be misleadingly precise.
func computeScore(mode Mode, res *Results) *int {
	if res.SecurityHeaders == nil || res.SecurityHeaders.Error != "" {
		return nil
	}
	if res.APIKeysAndLeaks == nil || res.APIKeysAndLeaks.Error != "" {
		return nil
	}

	present := len(res.SecurityHeaders.Audit.Present)
	missing := len(res.SecurityHeaders.Audit.Missing)
	leaks := len(res.APIKeysAndLeaks.Findings)

	var score int
	if mode == ModeQuick {
		score = QuickScore(missing, leaks)
	} else {
		score = WeightedScore(present, missing, leaks)
	}
	return &score
}

// Events returns the progress channel for a scan, or nil when the scan is
// unknown or already terminal. The channel closes when the scan finishes.
func (o *Orchestrator) Events(id string) <-chan Event {
	o.eventsMu.Lock()
	defer o.eventsMu.Unlock()
	return o.events[id]
}

func (o *Orchestrator) emit(id string, ev Event) {
	o.eventsMu.Lock()
	ch := o.events[id]
	o.eventsMu.Unlock()
	if ch == nil {
		return
	}

	// Non-blocking send; drop if buffer is full.
	select {
	case ch <- ev:
	default:
	}
}

func (o *Orchestrator) closeEvents(id string) {
	o.eventsMu.Lock()
	defer o.eventsMu.Unlock()
	if ch, ok := o.events[id]; ok {
		close(ch)
		delete(o.events, id)
	}
}

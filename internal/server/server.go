// Package server is the HTTP + WebSocket API surface of the scanner.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/argusscan/argus/internal/logging"
	"github.com/argusscan/argus/internal/quota"
	"github.com/argusscan/argus/internal/scan"
	"github.com/argusscan/argus/internal/supabase"
)

type Server struct {
	cfg          Config
	orchestrator *scan.Orchestrator
	store        scan.Store
	quota        quota.Store
	auth         Authorizer
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

func NewServer(cfg Config, orch *scan.Orchestrator, store scan.Store, q quota.Store, auth Authorizer) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}
	if auth == nil {
		auth = DenyAnonymous{}
	}

	s := &Server{
		cfg:          cfg,
		orchestrator: orch,
		store:        store,
		quota:        q,
		auth:         auth,
		router:       chi.NewRouter(),
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	allowed := s.cfg.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-User-ID"},
		MaxAge:         86400,
	}))

	r.Get("/health", s.handleHealth)

	r.Post("/scans", s.handleCreateScan)
	r.Get("/scans/{scanID}", s.handleGetScan)
	r.Get("/scans/{scanID}/summary", s.handleGetSummary)

	r.Post("/internal/scans/{scanID}/steps/{step}", s.handleTriggerStep)

	r.Get("/ws/scans/{scanID}", s.handleScanWS)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Request bodies carry user tokens and backend keys; log the envelope
	// only.
	s.logger.Info("http_request",
		logging.Field{Key: "method", Value: r.Method},
		logging.Field{Key: "path", Value: r.URL.Path})

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket streams stay open
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	var body createScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	mode := scan.Mode(body.Mode)
	if mode == "" {
		mode = scan.ModeQuick
	}
	if mode != scan.ModeQuick && mode != scan.ModeDeep {
		writeError(w, http.StatusBadRequest, "mode must be quick or deep")
		return
	}

	userID := r.Header.Get("X-User-ID")
	identity := quota.IPIdentity(clientIP(r))
	if userID != "" {
		identity = quota.UserIdentity(userID)
	}

	authorized := false
	if mode == scan.ModeDeep {
		if !s.cfg.DeepEnabled {
			writeError(w, http.StatusServiceUnavailable, "deep scans are disabled")
			return
		}
		authorized = s.auth.AllowDeep(r.Context(), userID)
		if !authorized {
			s.logger.Warn("deep scan denied",
				logging.Field{Key: "identity", Value: identity.Key})
			writeError(w, http.StatusForbidden, "deep scans require an authorized account")
			return
		}
	}

	if !s.quota.Consume(identity) {
		s.logger.Warn("quota exceeded",
			logging.Field{Key: "identity", Value: identity.Key})
		writeError(w, http.StatusTooManyRequests, "scan quota exceeded")
		return
	}

	req, err := s.orchestrator.Submit(r.Context(), scan.Submission{
		TargetURL:   body.URL,
		Mode:        mode,
		AuthToken:   body.AuthToken,
		SupabaseURL: body.SupabaseURL,
		SupabaseKey: body.SupabaseKey,
		Authorized:  authorized,
	})
	if err != nil {
		if errors.Is(err, scan.ErrInvalidTarget) {
			writeError(w, http.StatusBadRequest, "invalid target url")
			return
		}
		s.logger.Error("submitting scan", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, "couldn't start scan")
		return
	}

	writeJSON(w, http.StatusAccepted, createScanResponse{
		ID:        req.ID,
		TargetURL: req.TargetURL,
		Mode:      req.Mode,
		Status:    req.Status,
	})
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "scanID")

	req, res, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, scan.ErrScanNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		s.logger.Error("loading scan", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, "couldn't load scan")
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{Request: req, Results: res})
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "scanID")

	req, res, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, scan.ErrScanNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		s.logger.Error("loading scan", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, "couldn't load scan")
		return
	}

	writeJSON(w, http.StatusOK, summarize(req, res))
}

// summarize reduces a full report to counts and verdicts.
func summarize(req *scan.Request, res *scan.Results) summaryResponse {
	out := summaryResponse{
		ID:           req.ID,
		TargetURL:    req.TargetURL,
		Mode:         req.Mode,
		Status:       req.Status,
		OverallScore: res.OverallScore,
	}
	if res.SecurityHeaders != nil {
		out.HeadersMissing = len(res.SecurityHeaders.Audit.Missing)
	}
	if res.APIKeysAndLeaks != nil {
		out.LeaksFound = len(res.APIKeysAndLeaks.Findings)
	}
	if res.BackendAnalysis != nil {
		out.SupabaseDetected = res.BackendAnalysis.SupabaseDetected
		out.PublicTables = supabase.PublicCount(res.BackendAnalysis.Tables)
	}
	if res.Subdomains != nil {
		out.LiveSubdomains = len(res.Subdomains.Live)
	}
	return out
}

// handleTriggerStep lets a trusted scheduler drive pipeline steps over
// HTTP. Shared-secret bearer auth, compared in constant time.
func (s *Server) handleTriggerStep(w http.ResponseWriter, r *http.Request) {
	if s.cfg.TriggerSecret == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.TriggerSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "scanID")
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil || step < scan.StepFetch || step > scan.StepFinalize {
		writeError(w, http.StatusBadRequest, "invalid step")
		return
	}

	if err := s.orchestrator.RunStep(r.Context(), id, step); err != nil {
		if errors.Is(err, scan.ErrScanNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		s.logger.Error("running step",
			logging.Field{Key: "scan_id", Value: id},
			logging.Field{Key: "step", Value: step},
			logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, "step failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"scan_id": id, "step": step})
}

// handleScanWS streams step progress events for a scan. Terminal scans get
// one snapshot event and a clean close.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "scanID")

	req, _, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	snapshot := scan.Event{ScanID: id, Type: scan.EventStatus, Status: req.Status}
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}

	ch := s.orchestrator.Events(id)
	if ch == nil {
		// Already terminal; the snapshot said everything.
		return
	}
	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// clientIP extracts the caller's IP, preferring the first X-Forwarded-For
// hop when a proxy set one.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

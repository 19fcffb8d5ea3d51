package server

import "github.com/argusscan/argus/internal/scan"

// createScanRequest is the POST /scans body.
type createScanRequest struct {
	URL  string `json:"url"`
	Mode string `json:"mode,omitempty"`

	// AuthToken opts into authenticated-mode probing.
	AuthToken string `json:"auth_token,omitempty"`

	// SupabaseURL/SupabaseKey supply backend credentials directly instead
	// of relying on extraction from page content.
	SupabaseURL string `json:"supabase_url,omitempty"`
	SupabaseKey string `json:"supabase_key,omitempty"`
}

// createScanResponse acknowledges an accepted scan.
type createScanResponse struct {
	ID        string      `json:"id"`
	TargetURL string      `json:"target_url"`
	Mode      scan.Mode   `json:"mode"`
	Status    scan.Status `json:"status"`
}

// scanResponse is the full report view.
type scanResponse struct {
	*scan.Request
	Results *scan.Results `json:"results"`
}

// summaryResponse is the reduced free-tier view: verdict booleans and
// counts only, no previews, table names or per-item detail.
type summaryResponse struct {
	ID           string      `json:"id"`
	TargetURL    string      `json:"target_url"`
	Mode         scan.Mode   `json:"mode"`
	Status       scan.Status `json:"status"`
	OverallScore *int        `json:"overall_score,omitempty"`

	HeadersMissing   int  `json:"headers_missing"`
	LeaksFound       int  `json:"leaks_found"`
	SupabaseDetected bool `json:"supabase_detected"`
	PublicTables     int  `json:"public_tables"`
	LiveSubdomains   int  `json:"live_subdomains"`
}

package webclient

import "time"

// Config bounds every outbound request made through the client.
type Config struct {
	// Timeout is the per-request wall-clock budget.
	Timeout time.Duration

	// MaxRedirects caps redirect chains; fetches beyond it fail.
	MaxRedirects int

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64

	// UserAgent is sent on every request.
	UserAgent string
}

// DefaultConfig returns conservative fetch bounds for page scans.
func DefaultConfig() Config {
	return Config{
		Timeout:      5 * time.Second,
		MaxRedirects: 5,
		MaxBodyBytes: 2 << 20, // 2 MiB
		UserAgent:    "argus-scanner/1.0",
	}
}

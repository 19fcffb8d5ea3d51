package webclient

import (
	"fmt"
	"net/http"
	"time"
)

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
}

// FetchErrorKind classifies why a fetch failed. Callers use the kind to
// decide whether a failure is transient (skip and continue) or terminal.
type FetchErrorKind string

const (
	FetchTimeout FetchErrorKind = "timeout"
	FetchNetwork FetchErrorKind = "network"
	FetchStatus  FetchErrorKind = "status"
)

// FetchError is the typed error returned for failed fetches.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

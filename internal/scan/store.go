package scan

import (
	"context"
	"errors"
)

// ErrScanNotFound is returned by stores when the id is unknown.
var ErrScanNotFound = errors.New("scan not found")

// Store persists scan requests and their incrementally-built results,
// keyed by opaque id. Steps within one scan are sequenced, never
// concurrent, so Update is whole-object last-writer-wins by design.
type Store interface {
	// Create persists a new request with its (empty) results.
	Create(ctx context.Context, req *Request, res *Results) error

	// Get loads a request and its current results.
	Get(ctx context.Context, id string) (*Request, *Results, error)

	// Update overwrites the stored request and results.
	Update(ctx context.Context, req *Request, res *Results) error
}

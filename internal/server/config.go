package server

import (
	"context"

	"github.com/argusscan/argus/internal/logging"
)

type Config struct {
	Listen string

	// TriggerSecret guards the internal step-trigger route. Empty disables
	// the route.
	TriggerSecret string

	// DeepEnabled gates deep scans globally.
	DeepEnabled bool

	// AllowedOrigins feeds CORS. Empty allows any origin, suitable for a
	// public scanning API.
	AllowedOrigins []string

	Logger logging.Logger
}

// Authorizer answers whether an identity may run deep scans. The billing
// or subscription system plugs in here; the pipeline itself never checks
// payment state.
type Authorizer interface {
	AllowDeep(ctx context.Context, userID string) bool
}

// AllowAll authorizes every identity. Useful for self-hosted deployments
// with no plan gating.
type AllowAll struct{}

func (AllowAll) AllowDeep(context.Context, string) bool { return true }

// DenyAnonymous authorizes any identified user and rejects anonymous
// callers.
type DenyAnonymous struct{}

func (DenyAnonymous) AllowDeep(_ context.Context, userID string) bool { return userID != "" }

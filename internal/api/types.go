package api

import (
	"context"

	"screenscrapehub/pkg/types"
)

// Scraper is the batch engine behind the HTTP API.
type Scraper interface {
	Scrape(ctx context.Context, seed string) (types.ScrapeResponse, error)
	Discover(ctx context.Context, seed string) (types.LinkReport, error)
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

// Error kinds reported in ErrorResponse.Kind.
const (
	KindInvalidRequest   = "invalid_request"
	KindInvalidURL       = "invalid_url"
	KindSeedFetchFailed  = "seed_fetch_failed"
	KindMethodNotAllowed = "method_not_allowed"
	KindNotFound         = "not_found"
	KindInternal         = "internal_error"
)

// HealthResponse is returned by the root and health endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

package search

import (
	"context"
	"errors"
)

// ErrSearch wraps every backend failure so callers can treat them as retryable.
var ErrSearch = errors.New("search failed")

// Service returns up to k raw blobs most similar to query, best match first.
type Service interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
}

package cvmfs

import (
	"context"
	"time"
)

// Fetcher performs HTTP GETs. Implementations must return an error wrapping
// ErrFetch for transport failures and non-2xx statuses.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// TokenGenerator produces opaque cache-busting tokens.
type TokenGenerator interface {
	NewToken() (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

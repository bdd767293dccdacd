// Package memory provides a canned-response Fetcher for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
)

// Response is one canned answer.
type Response struct {
	StatusCode int
	Body       []byte
	Err        error
}

// Fetcher serves registered responses by exact URL. Unregistered URLs
// answer 404.
type Fetcher struct {
	mu        sync.RWMutex
	responses map[string]Response
	requests  []string
}

var _ cvmfs.Fetcher = (*Fetcher)(nil)

// New returns an empty Fetcher.
func New() *Fetcher {
	return &Fetcher{responses: make(map[string]Response)}
}

// Set registers a 200 response with body for url.
func (f *Fetcher) Set(url string, body []byte) *Fetcher {
	return f.SetResponse(url, Response{StatusCode: http.StatusOK, Body: body})
}

// SetString is Set for string bodies.
func (f *Fetcher) SetString(url, body string) *Fetcher {
	return f.Set(url, []byte(body))
}

// SetStatus registers a bodyless response with the given status.
func (f *Fetcher) SetStatus(url string, status int) *Fetcher {
	return f.SetResponse(url, Response{StatusCode: status})
}

// SetError registers a transport failure for url.
func (f *Fetcher) SetError(url string, err error) *Fetcher {
	return f.SetResponse(url, Response{Err: err})
}

// SetResponse registers resp for url, replacing any previous entry.
func (f *Fetcher) SetResponse(url string, resp Response) *Fetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = resp
	return f
}

// Fetch returns the registered response for url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", cvmfs.ErrFetch, url, err)
	}

	f.mu.Lock()
	f.requests = append(f.requests, url)
	resp, ok := f.responses[url]
	f.mu.Unlock()

	switch {
	case !ok:
		return nil, &cvmfs.StatusError{URL: url, StatusCode: http.StatusNotFound}
	case resp.Err != nil:
		return nil, fmt.Errorf("%w: %s: %w", cvmfs.ErrFetch, url, resp.Err)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, &cvmfs.StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return append([]byte(nil), resp.Body...), nil
}

// Requests returns every URL fetched so far, in call order.
func (f *Fetcher) Requests() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.requests))
	copy(out, f.requests)
	return out
}

// Requested reports whether url was fetched at least once.
func (f *Fetcher) Requested(url string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, r := range f.requests {
		if r == url {
			return true
		}
	}
	return false
}

package cvmfs

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// GeoapiQuery records one proximity query against a server: the candidate
// hosts sent, in order, and the rank indices the server answered with.
type GeoapiQuery struct {
	Hostname   Hostname   `json:"hostname"`
	Candidates []Hostname `json:"candidates"`
	Response   []uint32   `json:"response"`
}

// IsEmpty reports whether the query was skipped or returned nothing.
func (q GeoapiQuery) IsEmpty() bool {
	return len(q.Response) == 0
}

// ParseGeoapiResponse decodes a comma-separated list of non-negative integers.
func ParseGeoapiResponse(body string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(body), ",")
	out := make([]uint32, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeoapi, err)
		}
		out = append(out, uint32(n))
	}
	return out, nil
}

// CheckOrderByIndex reports whether the response equals expected exactly.
func (q GeoapiQuery) CheckOrderByIndex(expected []uint32) bool {
	return slices.Equal(q.Response, expected)
}

// CheckOrderByHostname reports whether the response, resolved to hostnames,
// equals expected. When the candidate set and the expected set differ, both
// discrepancies are logged and the result is false without comparing order.
// A response whose length differs from the candidate list is an error.
func (q GeoapiQuery) CheckOrderByHostname(expected []Hostname, logger *zap.Logger) (bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	notExpected := missingFrom(q.Candidates, expected)
	notCandidates := missingFrom(expected, q.Candidates)
	if len(notExpected) > 0 {
		logger.Warn("geoapi candidates missing from expected order",
			zap.String("hostname", q.Hostname.String()),
			zap.Strings("hosts", HostnameStrings(notExpected)))
	}
	if len(notCandidates) > 0 {
		logger.Warn("geoapi expected order lists hosts that were not queried",
			zap.String("hostname", q.Hostname.String()),
			zap.Strings("hosts", HostnameStrings(notCandidates)))
	}
	if len(notExpected) > 0 || len(notCandidates) > 0 {
		return false, nil
	}
	resolved, err := q.ResolveHostnames()
	if err != nil {
		return false, err
	}
	return slices.Equal(resolved, expected), nil
}

// ResolveHostnames maps the response indices onto the candidate list.
func (q GeoapiQuery) ResolveHostnames() ([]Hostname, error) {
	if len(q.Response) != len(q.Candidates) {
		return nil, fmt.Errorf("%w: response count mismatch for %s: expected %d, got %d",
			ErrGeoapi, q.Hostname, len(q.Candidates), len(q.Response))
	}
	out := make([]Hostname, len(q.Response))
	for i, idx := range q.Response {
		if int(idx) >= len(q.Candidates) {
			return nil, fmt.Errorf("%w: index %d out of range for %s", ErrGeoapi, idx, q.Hostname)
		}
		out[i] = q.Candidates[idx]
	}
	return out, nil
}

// missingFrom returns the entries of a that do not occur in b.
func missingFrom(a, b []Hostname) []Hostname {
	var out []Hostname
	for _, h := range a {
		if !slices.Contains(b, h) {
			out = append(out, h)
		}
	}
	return out
}

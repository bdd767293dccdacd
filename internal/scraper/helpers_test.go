package scraper

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
	"github.com/JakeFAU/cvmfs-scraper/internal/fetcher/memory"
)

const testToken = "0123456789ab"

var testCandidates = []cvmfs.Hostname{
	"cvmfs-s1fnal.opensciencegrid.org",
	"cvmfs-stratum-one.cern.ch",
	"cvmfs-stratum-one.ihep.ac.cn",
}

type fixedTokens struct {
	token string
	err   error
}

func (f fixedTokens) NewToken() (string, error) {
	return f.token, f.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestScraper(f cvmfs.Fetcher) *Scraper {
	return New(f, fixedTokens{token: testToken}, &fakeClock{now: time.Unix(1_700_000_000, 0)}, zap.NewNop())
}

func defaultOptions() Options {
	return Options{GeoapiServers: testCandidates}
}

type selfDescription struct {
	Schema       int                          `json:"schema"`
	LastGeoDB    string                       `json:"last_geodb_update,omitempty"`
	Version      string                       `json:"cvmfs_version,omitempty"`
	OSID         string                       `json:"os_id,omitempty"`
	Repositories []cvmfs.RepositoryDescriptor `json:"repositories"`
	Replicas     []cvmfs.RepositoryDescriptor `json:"replicas"`
}

func descriptors(names ...string) []cvmfs.RepositoryDescriptor {
	out := make([]cvmfs.RepositoryDescriptor, 0, len(names))
	for _, n := range names {
		out = append(out, cvmfs.RepositoryDescriptor{Name: n, URL: "/cvmfs/" + n})
	}
	return out
}

func setSelfDescription(t *testing.T, f *memory.Fetcher, host cvmfs.Hostname, doc selfDescription) {
	t.Helper()
	body, err := json.Marshal(doc)
	require.NoError(t, err)
	f.Set(cvmfs.RepositoriesJSONURL(host), body)
}

// setRepository registers a valid manifest and status for name on host.
func setRepository(f *memory.Fetcher, host cvmfs.Hostname, name string, revision int32) {
	m := cvmfs.Manifest{
		RootCatalogHash: "600230b0ba7620426f2e898f1e1f43c5466efe59",
		Timestamp:       1718991602,
		CatalogTTL:      240,
		Revision:        revision,
		Name:            name,
		Signature:       []byte("sig"),
	}
	f.Set(cvmfs.ManifestURL(host, name), m.Encode())
	f.SetString(cvmfs.StatusURL(host, name),
		`{"last_snapshot":"Fri Jun 21 17:40:02 UTC 2024","last_gc":"Sun Jun 16 03:00:01 UTC 2024"}`)
}

func setGeoapi(f *memory.Fetcher, host cvmfs.Hostname, repo, body string) string {
	url := cvmfs.GeoapiURL(host, repo, testToken, testCandidates)
	f.SetString(url, body)
	return url
}

func repositoryNames(p *cvmfs.PopulatedServer) []string {
	out := make([]string, 0, len(p.Repositories))
	for _, r := range p.Repositories {
		out = append(out, r.Name)
	}
	return out
}

func requirePopulated(t *testing.T, s cvmfs.ScrapedServer) *cvmfs.PopulatedServer {
	t.Helper()
	if f, ok := s.(*cvmfs.FailedServer); ok {
		t.Fatalf("expected populated server, got failure: %v", f.Err)
	}
	p, err := cvmfs.AsPopulated(s)
	require.NoError(t, err)
	return p
}

func requireFailed(t *testing.T, s cvmfs.ScrapedServer) *cvmfs.FailedServer {
	t.Helper()
	f, err := cvmfs.AsFailed(s)
	require.NoError(t, err)
	return f
}

// concurrencyFetcher records the peak number of concurrent Fetch calls.
type concurrencyFetcher struct {
	inner   cvmfs.Fetcher
	delay   time.Duration
	current atomic.Int32
	peak    atomic.Int32
}

func (c *concurrencyFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	n := c.current.Add(1)
	defer c.current.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(c.delay)
	return c.inner.Fetch(ctx, url)
}

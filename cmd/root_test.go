package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/cvmfs-scraper/internal/app"
	"github.com/JakeFAU/cvmfs-scraper/internal/config"
	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
	"github.com/JakeFAU/cvmfs-scraper/internal/fetcher/memory"
	"github.com/JakeFAU/cvmfs-scraper/internal/report"
)

func withFakeServices(t *testing.T, f cvmfs.Fetcher) {
	t.Helper()
	prevApp, prevLogger := newApp, newLogger
	newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
		return app.NewApp(ctx, cfg, logger, app.WithFetcher(f))
	}
	newLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }
	t.Cleanup(func() { newApp, newLogger = prevApp, prevLogger })
}

func fixtureFetcher() *memory.Fetcher {
	host := cvmfs.Hostname("s0.example.org")
	m := cvmfs.Manifest{
		RootCatalogHash: "600230b0ba7620426f2e898f1e1f43c5466efe59",
		Timestamp:       1718991602,
		CatalogTTL:      240,
		Revision:        11,
		Name:            "atlas.cern.ch",
		Signature:       []byte("sig"),
	}
	return memory.New().
		Set(cvmfs.ManifestURL(host, "atlas.cern.ch"), m.Encode()).
		SetString(cvmfs.StatusURL(host, "atlas.cern.ch"), `{}`)
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestScrapeCommandWritesReportToStdout(t *testing.T) {
	withFakeServices(t, fixtureFetcher())

	stdout, _, err := execute(t, "scrape", "--forced", "atlas.cern.ch", "stratum0:s3:s0.example.org")
	require.NoError(t, err)

	var rep report.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	require.Equal(t, 1, rep.Succeeded)
	require.Equal(t, "atlas.cern.ch", rep.Servers[0].Repositories[0].Name)
	require.Equal(t, int32(11), rep.Servers[0].Repositories[0].Revision)
}

func TestScrapeCommandUsesConfigFile(t *testing.T) {
	withFakeServices(t, fixtureFetcher())

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
servers:
  - hostname: s0.example.org
    type: stratum0
    backend: s3
scrape:
  forced_repositories: [atlas.cern.ch]
output:
  destination: local
  dir: `+filepath.Join(dir, "out")+`
  format: yaml
`), 0o600))

	stdout, stderr, err := execute(t, "--config", path, "scrape")
	require.NoError(t, err)
	require.Empty(t, stdout)
	require.Contains(t, stderr, "file://"+filepath.Join(dir, "out"))
	require.Contains(t, stderr, ".yaml")
}

func TestScrapeCommandRejectsBadServerSpec(t *testing.T) {
	withFakeServices(t, memory.New())

	_, _, err := execute(t, "scrape", "stratum1")
	require.ErrorIs(t, err, cvmfs.ErrLexical)

	_, _, err = execute(t, "scrape", "--server", "stratum1:s3:bucket.example.org")
	require.ErrorIs(t, err, cvmfs.ErrEmptyRepositoryList)
}

func TestScrapeCommandRequiresServers(t *testing.T) {
	withFakeServices(t, memory.New())

	_, _, err := execute(t, "scrape")
	require.ErrorContains(t, err, "no servers configured")
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	withFakeServices(t, memory.New())

	_, _, err := execute(t, "scrape", "--format", "toml", "stratum1:s1.example.org")
	require.ErrorContains(t, err, "output.format")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
	"github.com/JakeFAU/cvmfs-scraper/internal/report"
	"github.com/JakeFAU/cvmfs-scraper/internal/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 15*time.Second, cfg.HTTPTimeout())
	require.Equal(t, report.FormatJSON, cfg.ReportFormat())
	require.True(t, cfg.WritesToStdout())
	require.Empty(t, cfg.Servers)
	require.Nil(t, cfg.ExpectedGeoapiOrder())

	opts, err := cfg.ScrapeOptions()
	require.NoError(t, err)
	require.Equal(t, cvmfs.DefaultGeoapiServers(), opts.GeoapiServers)
	require.Zero(t, opts.MaxConcurrency)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
servers:
  - hostname: cvmfs-stratum0.example.org
    type: primary
    backend: cvmfs
  - hostname: s1.example.org
    type: stratum1
  - hostname: bucket.example.org
    type: sync-only
    backend: s3
scrape:
  forced_repositories: [atlas.cern.ch]
  ignored_repositories: [test.cern.ch]
  only_forced: true
  geoapi_servers: [a.example.org, b.example.org]
  expected_geoapi_order: [b.example.org, a.example.org]
  max_concurrency: 4
http:
  timeout_seconds: 45
  user_agent: probe/1.0
  per_host_rps: 2.5
  per_host_burst: 3
output:
  format: yaml
  destination: local
  dir: /tmp/reports
  prefix: nightly
pubsub:
  project_id: proj
  topic_name: scrape-reports
server:
  port: 9090
logging:
  development: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Logging.Development)
	require.Equal(t, 45*time.Second, cfg.HTTPTimeout())
	require.Equal(t, "probe/1.0", cfg.HTTP.UserAgent)
	require.InDelta(t, 2.5, cfg.HTTP.PerHostRPS, 0)
	require.Equal(t, report.FormatYAML, cfg.ReportFormat())
	require.Equal(t, "scrape-reports", cfg.PubSub.TopicName)

	fleet, err := cfg.Fleet()
	require.NoError(t, err)
	require.Equal(t, []cvmfs.Server{
		cvmfs.NewServer(cvmfs.ServerTypePrimary, cvmfs.BackendWebFileset, "cvmfs-stratum0.example.org"),
		cvmfs.NewServer(cvmfs.ServerTypeReplica, cvmfs.BackendAutoDetect, "s1.example.org"),
		cvmfs.NewServer(cvmfs.ServerTypeSyncOnly, cvmfs.BackendObjectStore, "bucket.example.org"),
	}, fleet)

	opts, err := cfg.ScrapeOptions()
	require.NoError(t, err)
	require.Equal(t, []string{"atlas.cern.ch"}, opts.ForcedRepositories)
	require.Equal(t, []string{"test.cern.ch"}, opts.IgnoredRepositories)
	require.True(t, opts.OnlyForced)
	require.Equal(t, 4, opts.MaxConcurrency)
	require.Equal(t, []cvmfs.Hostname{"a.example.org", "b.example.org"}, opts.GeoapiServers)
	require.Equal(t, []cvmfs.Hostname{"b.example.org", "a.example.org"}, cfg.ExpectedGeoapiOrder())

	sc, err := cfg.StorageConfig()
	require.NoError(t, err)
	require.Equal(t, storage.Config{Backend: storage.BackendLocal, BaseDir: "/tmp/reports"}, sc)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CVMFS_SCRAPER_HTTP_TIMEOUT_SECONDS", "5")
	t.Setenv("CVMFS_SCRAPER_SCRAPE_FORCED_REPOSITORIES", "atlas.cern.ch,cms.cern.ch")
	t.Setenv("CVMFS_SCRAPER_OUTPUT_DESTINATION", "memory")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.HTTPTimeout())
	require.Equal(t, []string{"atlas.cern.ch", "cms.cern.ch"}, cfg.Scrape.ForcedRepositories)
	require.False(t, cfg.WritesToStdout())
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestLoadRejectsObjectStoreWithoutForced(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
servers:
  - hostname: bucket.example.org
    type: stratum1
    backend: s3
`)
	_, err := Load(path)
	require.ErrorIs(t, err, cvmfs.ErrEmptyRepositoryList)
	require.ErrorIs(t, err, cvmfs.ErrValidation)
	require.ErrorContains(t, err, "servers[0]")
}

func TestParseServerSpec(t *testing.T) {
	t.Parallel()

	entry, err := ParseServerSpec("stratum1:s1.example.org")
	require.NoError(t, err)
	require.Equal(t, ServerEntry{Type: "stratum1", Hostname: "s1.example.org"}, entry)

	entry, err = ParseServerSpec(" s0:cvmfs:s0.example.org ")
	require.NoError(t, err)
	srv, err := entry.Server()
	require.NoError(t, err)
	require.Equal(t, cvmfs.NewServer(cvmfs.ServerTypePrimary, cvmfs.BackendWebFileset, "s0.example.org"), srv)

	_, err = ParseServerSpec("s1.example.org")
	require.ErrorIs(t, err, cvmfs.ErrLexical)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := func() Config {
		return Config{
			Scrape: ScrapeConfig{GeoapiServers: []string{"a.example.org"}},
			HTTP:   HTTPConfig{TimeoutSeconds: 10},
			Output: OutputConfig{Format: "json", Destination: DestinationStdout},
			Server: ServerConfig{Port: 8080},
		}
	}
	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"negative rps", func(c *Config) { c.HTTP.PerHostRPS = -1 }, "http.per_host_rps"},
		{"negative concurrency", func(c *Config) { c.Scrape.MaxConcurrency = -2 }, "scrape.max_concurrency"},
		{"empty geoapi list", func(c *Config) { c.Scrape.GeoapiServers = nil }, "scrape.geoapi_servers"},
		{"bad geoapi host", func(c *Config) { c.Scrape.GeoapiServers = []string{"bad--host"} }, "scrape.geoapi_servers"},
		{"bad expected host", func(c *Config) { c.Scrape.ExpectedGeoapiOrder = []string{"-x"} }, "scrape.expected_geoapi_order"},
		{"bad server type", func(c *Config) {
			c.Servers = []ServerEntry{{Hostname: "s.example.org", Type: "stratum9"}}
		}, "servers[0]"},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"unknown destination", func(c *Config) { c.Output.Destination = "ftp" }, "output.destination"},
		{"local without dir", func(c *Config) {
			c.Output.Destination = DestinationLocal
			c.Output.Dir = ""
		}, "output.dir"},
		{"gcs without bucket", func(c *Config) { c.Output.Destination = DestinationGCS }, "output.gcs_bucket"},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "t" }, "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestStorageConfigStdout(t *testing.T) {
	t.Parallel()

	cfg := Config{Output: OutputConfig{Destination: "STDOUT"}}
	require.True(t, cfg.WritesToStdout())
	_, err := cfg.StorageConfig()
	require.Error(t, err)
}

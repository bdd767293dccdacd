// Package config loads and validates scraper configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
	"github.com/JakeFAU/cvmfs-scraper/internal/report"
	"github.com/JakeFAU/cvmfs-scraper/internal/scraper"
	"github.com/JakeFAU/cvmfs-scraper/internal/storage"
)

// EnvPrefix is prepended to every environment override, e.g.
// CVMFS_SCRAPER_HTTP_TIMEOUT_SECONDS.
const EnvPrefix = "CVMFS_SCRAPER"

// Output destinations. Everything but stdout is a storage backend.
const (
	DestinationStdout = "stdout"
	DestinationMemory = storage.BackendMemory
	DestinationLocal  = storage.BackendLocal
	DestinationGCS    = storage.BackendGCS
)

// Config captures all knobs loaded via Viper.
type Config struct {
	Servers []ServerEntry `mapstructure:"servers"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Output  OutputConfig  `mapstructure:"output"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerEntry names one server to scrape.
type ServerEntry struct {
	Hostname string `mapstructure:"hostname" json:"hostname"`
	Type     string `mapstructure:"type" json:"type"`
	Backend  string `mapstructure:"backend" json:"backend"`
}

// ScrapeConfig is the fleet-wide scrape configuration.
type ScrapeConfig struct {
	ForcedRepositories  []string `mapstructure:"forced_repositories"`
	IgnoredRepositories []string `mapstructure:"ignored_repositories"`
	OnlyForced          bool     `mapstructure:"only_forced"`
	GeoapiServers       []string `mapstructure:"geoapi_servers"`
	MaxConcurrency      int      `mapstructure:"max_concurrency"`
	ExpectedGeoapiOrder []string `mapstructure:"expected_geoapi_order"`
}

// HTTPConfig configures the outbound fetcher.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
	PerHostBurst   int     `mapstructure:"per_host_burst"`
}

// OutputConfig controls where and how reports are written.
type OutputConfig struct {
	Format      string `mapstructure:"format"`
	Destination string `mapstructure:"destination"`
	Dir         string `mapstructure:"dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
}

// PubSubConfig holds the run-completion notification target.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the HTTP server started by serve. A non-empty APIKey
// is required in the X-API-Key header of every non-probe request.
type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// New returns a Viper instance with defaults and environment binding applied.
// Commands bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from an optional file plus the environment.
func Load(path string) (Config, error) {
	return LoadFrom(New(), path)
}

// LoadFrom reads path (when set) into v, then unmarshals and validates.
func LoadFrom(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scrape.geoapi_servers", cvmfs.HostnameStrings(cvmfs.DefaultGeoapiServers()))
	v.SetDefault("scrape.forced_repositories", []string{})
	v.SetDefault("scrape.ignored_repositories", []string{})
	v.SetDefault("scrape.expected_geoapi_order", []string{})
	v.SetDefault("scrape.only_forced", false)
	v.SetDefault("scrape.max_concurrency", 0)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "cvmfs-scraper/0.1")
	v.SetDefault("http.per_host_rps", 0)
	v.SetDefault("http.per_host_burst", 1)
	v.SetDefault("output.format", string(report.FormatJSON))
	v.SetDefault("output.destination", DestinationStdout)
	v.SetDefault("output.dir", "reports")
	v.SetDefault("output.prefix", "reports")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits. Server entries are
// checked lexically, and an explicit object-store server without forced
// repositories is rejected because it could never yield a repository.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.PerHostRPS < 0 {
		return fmt.Errorf("http.per_host_rps must be >= 0")
	}
	if c.Scrape.MaxConcurrency < 0 {
		return fmt.Errorf("scrape.max_concurrency must be >= 0")
	}
	if len(c.Scrape.GeoapiServers) == 0 {
		return fmt.Errorf("scrape.geoapi_servers must not be empty")
	}
	if _, err := cvmfs.ParseHostnames(c.Scrape.GeoapiServers); err != nil {
		return fmt.Errorf("scrape.geoapi_servers: %w", err)
	}
	if _, err := cvmfs.ParseHostnames(c.Scrape.ExpectedGeoapiOrder); err != nil {
		return fmt.Errorf("scrape.expected_geoapi_order: %w", err)
	}
	if _, err := c.Fleet(); err != nil {
		return err
	}
	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	switch strings.ToLower(c.Output.Destination) {
	case DestinationStdout, DestinationMemory:
	case DestinationLocal:
		if strings.TrimSpace(c.Output.Dir) == "" {
			return fmt.Errorf("output.dir must be set when output.destination is local")
		}
	case DestinationGCS:
		if strings.TrimSpace(c.Output.GCSBucket) == "" {
			return fmt.Errorf("output.gcs_bucket must be set when output.destination is gcs")
		}
	default:
		return fmt.Errorf("output.destination %q is not one of stdout, memory, local, gcs", c.Output.Destination)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// Fleet converts the configured server entries.
func (c Config) Fleet() ([]cvmfs.Server, error) {
	servers := make([]cvmfs.Server, 0, len(c.Servers))
	for i, entry := range c.Servers {
		srv, err := entry.Server()
		if err != nil {
			return nil, fmt.Errorf("servers[%d]: %w", i, err)
		}
		if srv.Backend == cvmfs.BackendObjectStore && len(c.Scrape.ForcedRepositories) == 0 {
			return nil, fmt.Errorf("servers[%d]: %w: %s uses the s3 backend but scrape.forced_repositories is empty",
				i, cvmfs.ErrEmptyRepositoryList, srv.Hostname)
		}
		servers = append(servers, srv)
	}
	return servers, nil
}

// Server parses the entry.
func (e ServerEntry) Server() (cvmfs.Server, error) {
	host, err := cvmfs.ParseHostname(e.Hostname)
	if err != nil {
		return cvmfs.Server{}, err
	}
	serverType, err := cvmfs.ParseServerType(e.Type)
	if err != nil {
		return cvmfs.Server{}, err
	}
	backend, err := cvmfs.ParseBackendType(e.Backend)
	if err != nil {
		return cvmfs.Server{}, err
	}
	return cvmfs.NewServer(serverType, backend, host), nil
}

// ParseServerSpec parses the compact "type:hostname" or
// "type:backend:hostname" form used on the command line.
func ParseServerSpec(spec string) (ServerEntry, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	switch len(parts) {
	case 2:
		return ServerEntry{Type: parts[0], Hostname: parts[1]}, nil
	case 3:
		return ServerEntry{Type: parts[0], Backend: parts[1], Hostname: parts[2]}, nil
	default:
		return ServerEntry{}, fmt.Errorf("%w: server %q must be type:hostname or type:backend:hostname",
			cvmfs.ErrLexical, spec)
	}
}

// ScrapeOptions converts the scrape section into fleet options.
func (c Config) ScrapeOptions() (scraper.Options, error) {
	geo, err := cvmfs.ParseHostnames(c.Scrape.GeoapiServers)
	if err != nil {
		return scraper.Options{}, fmt.Errorf("scrape.geoapi_servers: %w", err)
	}
	opts := scraper.Options{
		ForcedRepositories:  c.Scrape.ForcedRepositories,
		IgnoredRepositories: c.Scrape.IgnoredRepositories,
		OnlyForced:          c.Scrape.OnlyForced,
		GeoapiServers:       geo,
		MaxConcurrency:      c.Scrape.MaxConcurrency,
	}
	if err := opts.Validate(); err != nil {
		return scraper.Options{}, err
	}
	return opts, nil
}

// ExpectedGeoapiOrder returns the hostname order reports are checked against,
// or nil when none is configured.
func (c Config) ExpectedGeoapiOrder() []cvmfs.Hostname {
	hosts, err := cvmfs.ParseHostnames(c.Scrape.ExpectedGeoapiOrder)
	if err != nil || len(hosts) == 0 {
		return nil
	}
	return hosts
}

// HTTPTimeout is the per-request fetch budget.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ReportFormat returns the parsed output format.
func (c Config) ReportFormat() report.Format {
	f, err := report.ParseFormat(c.Output.Format)
	if err != nil {
		return report.FormatJSON
	}
	return f
}

// WritesToStdout reports whether reports are printed instead of stored.
func (c Config) WritesToStdout() bool {
	return strings.EqualFold(c.Output.Destination, DestinationStdout)
}

// StorageConfig maps the output section onto a blob store configuration.
func (c Config) StorageConfig() (storage.Config, error) {
	if c.WritesToStdout() {
		return storage.Config{}, errors.New("output.destination is stdout")
	}
	return storage.Config{
		Backend: strings.ToLower(c.Output.Destination),
		BaseDir: c.Output.Dir,
		Bucket:  c.Output.GCSBucket,
	}, nil
}

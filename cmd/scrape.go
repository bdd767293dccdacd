package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/cvmfs-scraper/internal/config"
)

// newScrapeCmd creates the one-shot 'scrape' subcommand.
func newScrapeCmd(v *viper.Viper) *cobra.Command {
	var serverSpecs []string

	cmd := &cobra.Command{
		Use:   "scrape [type:[backend:]hostname ...]",
		Short: "Scrape a fleet of CVMFS servers once and write a report",
		Long: `Scrapes every server named on the command line (or in the config file
when none are given), then writes the report to stdout or the configured
destination. Servers are given as type:hostname or type:backend:hostname,
for example stratum1:cvmfs-stratum-one.cern.ch or stratum0:s3:s0.example.org.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, append(serverSpecs, args...))
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&serverSpecs, "server", "s", nil, "server to scrape as type:[backend:]hostname (repeatable)")
	flags.StringSlice("forced", nil, "repositories to scrape on every server")
	flags.StringSlice("ignored", nil, "repositories never to scrape")
	flags.Bool("only-forced", false, "do not add repositories the servers advertise")
	flags.StringSlice("geoapi-servers", nil, "candidate hosts sent to each server's GeoAPI")
	flags.StringSlice("expected-geoapi-order", nil, "hostname order each GeoAPI answer is checked against")
	flags.Int("max-concurrency", 0, "maximum servers scraped at once (0 = unbounded)")
	flags.String("format", "", "report format: json or yaml")
	flags.String("destination", "", "report destination: stdout, memory, local or gcs")
	flags.String("output-dir", "", "directory for the local destination")
	flags.String("gcs-bucket", "", "bucket for the gcs destination")
	flags.Int("timeout", 0, "per-request timeout in seconds")
	flags.Float64("rps", 0, "per-host request rate limit (0 = unlimited)")

	for key, name := range map[string]string{
		"scrape.forced_repositories":   "forced",
		"scrape.ignored_repositories":  "ignored",
		"scrape.only_forced":           "only-forced",
		"scrape.geoapi_servers":        "geoapi-servers",
		"scrape.expected_geoapi_order": "expected-geoapi-order",
		"scrape.max_concurrency":       "max-concurrency",
		"output.format":                "format",
		"output.destination":           "destination",
		"output.dir":                   "output-dir",
		"output.gcs_bucket":            "gcs-bucket",
		"http.timeout_seconds":         "timeout",
		"http.per_host_rps":            "rps",
	} {
		bindFlag(v, key, flags.Lookup(name))
	}
	return cmd
}

func runScrape(cmd *cobra.Command, specs []string) error {
	rt, err := runtimeFrom(cmd.Context())
	if err != nil {
		return err
	}
	cfg := rt.cfg
	if len(specs) > 0 {
		cfg.Servers = cfg.Servers[:0:0]
		for _, spec := range specs {
			entry, err := config.ParseServerSpec(spec)
			if err != nil {
				return err
			}
			cfg.Servers = append(cfg.Servers, entry)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	a, err := newApp(cmd.Context(), cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer a.Close()

	outcome, err := a.RunScrape(cmd.Context(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	rt.logger.Info("scrape finished",
		zap.String("run_id", outcome.Report.RunID),
		zap.Int("attempted", outcome.Report.Attempted),
		zap.Int("succeeded", outcome.Report.Succeeded),
		zap.Int("failed", outcome.Report.Failed))
	if outcome.Stored != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), outcome.Stored.URI)
	}
	return nil
}

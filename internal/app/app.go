// Package app initializes and holds long-lived application services, acting
// as the dependency container shared by the scrape and serve commands.
package app

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/cvmfs-scraper/internal/clock/system"
	"github.com/JakeFAU/cvmfs-scraper/internal/config"
	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
	collyfetcher "github.com/JakeFAU/cvmfs-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/cvmfs-scraper/internal/hash/sha256"
	"github.com/JakeFAU/cvmfs-scraper/internal/id/uuid"
	"github.com/JakeFAU/cvmfs-scraper/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/cvmfs-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/cvmfs-scraper/internal/report"
	"github.com/JakeFAU/cvmfs-scraper/internal/scraper"
	"github.com/JakeFAU/cvmfs-scraper/internal/storage"
)

// App holds the shared services built from one Config.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	ids     *uuid.Generator
	clock   cvmfs.Clock
	scraper *scraper.Scraper
	writer  *report.Writer
	closers []func()
}

// Option overrides a service NewApp would otherwise build from config.
type Option func(*overrides)

type overrides struct {
	fetcher   cvmfs.Fetcher
	store     storage.BlobStore
	publisher report.Publisher
	clock     cvmfs.Clock
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f cvmfs.Fetcher) Option {
	return func(o *overrides) { o.fetcher = f }
}

// WithBlobStore replaces the configured report destination.
func WithBlobStore(s storage.BlobStore) Option {
	return func(o *overrides) { o.store = s }
}

// WithPublisher replaces the Pub/Sub publisher.
func WithPublisher(p report.Publisher) Option {
	return func(o *overrides) { o.publisher = p }
}

// WithClock replaces the wall clock.
func WithClock(c cvmfs.Clock) Option {
	return func(o *overrides) { o.clock = c }
}

// NewApp builds every service cfg describes. It fails fast when a configured
// destination cannot be opened.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		ids:    uuid.New(),
		clock:  o.clock,
	}
	if a.clock == nil {
		a.clock = system.New()
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = a.newFetcher()
	}
	a.scraper = scraper.New(fetcher, a.ids, a.clock, logger.Named("scraper"))

	writer, err := a.newWriter(ctx, o)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.writer = writer
	return a, nil
}

func (a *App) newFetcher() cvmfs.Fetcher {
	var limiter collyfetcher.Limiter
	if a.cfg.HTTP.PerHostRPS > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			PerHostRPS:   a.cfg.HTTP.PerHostRPS,
			PerHostBurst: a.cfg.HTTP.PerHostBurst,
		})
	}
	return collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.HTTP.UserAgent,
		Timeout:   a.cfg.HTTPTimeout(),
	}, limiter, a.logger.Named("fetcher"))
}

// newWriter returns nil when reports go to stdout.
func (a *App) newWriter(ctx context.Context, o overrides) (*report.Writer, error) {
	store := o.store
	if store == nil {
		if a.cfg.WritesToStdout() {
			return nil, nil
		}
		storeCfg, err := a.cfg.StorageConfig()
		if err != nil {
			return nil, err
		}
		opened, closeStore, err := storage.Open(ctx, storeCfg, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closeStore)
		store = opened
		a.logger.Info("report destination ready", zap.String("backend", storeCfg.Backend))
	}

	publisher := o.publisher
	if publisher == nil && a.cfg.PubSub.TopicName != "" {
		client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		pub := pubsubpublisher.New(client, map[string]string{"source": "cvmfs-scraper"})
		a.closers = append(a.closers, func() {
			pub.Close()
			if err := client.Close(); err != nil {
				a.logger.Warn("failed to close pubsub client", zap.Error(err))
			}
		})
		publisher = pub
		a.logger.Info("report notifications enabled", zap.String("topic", a.cfg.PubSub.TopicName))
	}

	writer, err := report.NewWriter(store, publisher, sha256.New(), a.clock, report.WriterConfig{
		Prefix: a.cfg.Output.Prefix,
		Format: a.cfg.ReportFormat(),
		Topic:  a.cfg.PubSub.TopicName,
	}, a.logger.Named("report"))
	if err != nil {
		return nil, fmt.Errorf("build report writer: %w", err)
	}
	return writer, nil
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Scraper returns the fleet scraper.
func (a *App) Scraper() *scraper.Scraper { return a.scraper }

// IDs returns the run ID generator.
func (a *App) IDs() *uuid.Generator { return a.ids }

// Clock returns the clock used for report timestamps.
func (a *App) Clock() cvmfs.Clock { return a.clock }

// Writer returns the report writer, or nil when reports go to stdout.
func (a *App) Writer() *report.Writer { return a.writer }

// RunOutcome is the result of one configured fleet scrape.
type RunOutcome struct {
	Report report.Report
	Stored *report.Result
}

// RunScrape scrapes the configured fleet, then stores the report or, with
// stdout output, encodes it to out.
func (a *App) RunScrape(ctx context.Context, out io.Writer) (RunOutcome, error) {
	servers, err := a.cfg.Fleet()
	if err != nil {
		return RunOutcome{}, err
	}
	if len(servers) == 0 {
		return RunOutcome{}, fmt.Errorf("no servers configured")
	}
	opts, err := a.cfg.ScrapeOptions()
	if err != nil {
		return RunOutcome{}, err
	}
	runID, err := a.ids.NewID()
	if err != nil {
		return RunOutcome{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := a.logger.With(zap.String("run_id", runID))

	results, err := a.scraper.ScrapeFleet(ctx, servers, opts)
	if err != nil {
		return RunOutcome{}, fmt.Errorf("scrape fleet: %w", err)
	}
	for _, r := range results {
		if failed, err := cvmfs.AsFailed(r); err == nil {
			logger.Warn("server scrape failed",
				zap.String("hostname", failed.Identity.Hostname.String()),
				zap.Error(failed.Err))
		}
	}

	outcome := RunOutcome{
		Report: report.Build(runID, a.clock.Now(), results, a.cfg.ExpectedGeoapiOrder(), logger.Named("report")),
	}
	if a.writer == nil {
		data, err := report.Encode(outcome.Report, a.cfg.ReportFormat())
		if err != nil {
			return outcome, err
		}
		if _, err := out.Write(data); err != nil {
			return outcome, fmt.Errorf("write report: %w", err)
		}
		return outcome, nil
	}
	res, err := a.writer.Write(ctx, outcome.Report)
	if res.URI != "" {
		outcome.Stored = &res
	}
	if err != nil {
		return outcome, fmt.Errorf("write report: %w", err)
	}
	logger.Info("report written", zap.String("uri", res.URI))
	return outcome, nil
}

// Close releases every service in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

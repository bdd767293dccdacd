package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
	"github.com/JakeFAU/cvmfs-scraper/internal/metrics"
)

// ScrapeFleet scrapes every server concurrently and returns one outcome per
// server, in input order. Per-server failures are carried in the outcomes;
// the returned error is non-nil only when opts fail validation, in which
// case nothing is scraped.
func (s *Scraper) ScrapeFleet(ctx context.Context, servers []cvmfs.Server, opts Options) ([]cvmfs.ScrapedServer, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("scrape options: %w", err)
	}

	start := s.clock.Now()
	results := make([]cvmfs.ScrapedServer, len(servers))

	var g errgroup.Group
	if opts.MaxConcurrency > 0 {
		g.SetLimit(opts.MaxConcurrency)
	}
	for i, server := range servers {
		g.Go(func() error {
			metrics.IncInFlight()
			defer metrics.DecInFlight()
			results[i] = s.ScrapeServer(ctx, server, opts)
			return nil
		})
	}
	// Workers never return errors; Wait is only a barrier.
	_ = g.Wait()

	succeeded := 0
	for _, r := range results {
		if cvmfs.IsPopulated(r) {
			succeeded++
		}
	}
	s.logger.Info("fleet scrape finished",
		zap.Int("attempted", len(servers)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(servers)-succeeded),
		zap.Duration("duration", s.clock.Now().Sub(start)))
	return results, nil
}

package scraper

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
	"github.com/JakeFAU/cvmfs-scraper/internal/metrics"
)

// ScrapeRepository fetches the manifest and status record of one repository.
// Both fetches run concurrently and both must succeed.
func (s *Scraper) ScrapeRepository(ctx context.Context, host cvmfs.Hostname, name string) (cvmfs.PopulatedRepository, error) {
	var (
		manifest cvmfs.Manifest
		status   cvmfs.StatusRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := s.fetcher.Fetch(gctx, cvmfs.ManifestURL(host, name))
		if err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		manifest, err = cvmfs.ParseManifest(body)
		if err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		body, err := s.fetcher.Fetch(gctx, cvmfs.StatusURL(host, name))
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		status, err = cvmfs.ParseStatusRecord(body)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.ObserveRepository("failed")
		return cvmfs.PopulatedRepository{}, fmt.Errorf("repository %s on %s: %w", name, host, err)
	}
	metrics.ObserveRepository("populated")
	return cvmfs.PopulatedRepository{Name: name, Manifest: manifest, Status: status}, nil
}

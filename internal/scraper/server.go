package scraper

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
	"github.com/JakeFAU/cvmfs-scraper/internal/metrics"
)

// ScrapeServer runs one server scrape. It never returns nil and never
// panics on remote input; every failure is reported as a *cvmfs.FailedServer.
func (s *Scraper) ScrapeServer(ctx context.Context, server cvmfs.Server, opts Options) cvmfs.ScrapedServer {
	start := s.clock.Now()
	result := s.scrapeServer(ctx, server, opts)

	outcome, backend := "failed", string(server.Backend)
	if p, ok := result.(*cvmfs.PopulatedServer); ok {
		outcome, backend = "populated", string(p.BackendDetected)
	}
	metrics.ObserveServerScrape(outcome, backend, s.clock.Now().Sub(start))
	return result
}

func (s *Scraper) scrapeServer(ctx context.Context, server cvmfs.Server, opts Options) cvmfs.ScrapedServer {
	logger := s.logger.With(
		zap.String("hostname", server.Hostname.String()),
		zap.String("type", string(server.Type)),
		zap.String("backend", string(server.Backend)),
	)
	logger.Debug("scraping server")

	fail := func(err error) cvmfs.ScrapedServer {
		logger.Warn("server scrape failed", zap.Error(err))
		return &cvmfs.FailedServer{Identity: server, Err: err}
	}

	repos := newRepositorySet(opts.ForcedRepositories, opts.IgnoredRepositories)

	detected, doc, err := s.resolveBackend(ctx, server, logger)
	if err != nil {
		return fail(err)
	}

	var repoMeta cvmfs.RepoMetadata
	if doc != nil {
		repoMeta, err = doc.Metadata()
		if err != nil {
			return fail(fmt.Errorf("repositories.json metadata: %w", err))
		}
		if !opts.OnlyForced {
			for _, r := range doc.RepositoriesAndReplicas() {
				repos.add(r.Name)
			}
		}
	}

	if server.Backend == cvmfs.BackendObjectStore && repos.empty() {
		return fail(fmt.Errorf("%w with object-store backend: %s", cvmfs.ErrEmptyRepositoryList, server.Hostname))
	}

	names := repos.sorted()
	populated := make([]cvmfs.PopulatedRepository, 0, len(names))
	for _, name := range names {
		repo, err := s.ScrapeRepository(ctx, server.Hostname, name)
		if err != nil {
			return fail(err)
		}
		populated = append(populated, repo)
	}

	metadata := cvmfs.MergeMetadata(repoMeta, s.fetchContact(ctx, server.Hostname, logger))

	geo, err := s.probeGeoapi(ctx, server, detected, populated, opts.GeoapiServers, logger)
	if err != nil {
		return fail(err)
	}

	logger.Debug("server scraped",
		zap.String("backend_detected", string(detected)),
		zap.Int("repositories", len(populated)))
	return &cvmfs.PopulatedServer{
		Identity:        server,
		BackendDetected: detected,
		Repositories:    populated,
		Metadata:        metadata,
		Geoapi:          geo,
	}
}

// resolveBackend decides how the server exposes its repositories. It returns
// the validated self-description when one was fetched.
func (s *Scraper) resolveBackend(
	ctx context.Context,
	server cvmfs.Server,
	logger *zap.Logger,
) (cvmfs.BackendType, *cvmfs.RepositoriesJSON, error) {
	switch server.Backend {
	case cvmfs.BackendObjectStore:
		return cvmfs.BackendObjectStore, nil, nil
	case cvmfs.BackendWebFileset:
		doc, err := s.fetchSelfDescription(ctx, server)
		if err != nil {
			return "", nil, err
		}
		return cvmfs.BackendWebFileset, doc, nil
	case cvmfs.BackendAutoDetect:
		doc, err := s.fetchSelfDescription(ctx, server)
		switch {
		case errors.Is(err, errSelfDescriptionUnreachable):
			logger.Debug("detected object-store backend", zap.Error(err))
			return cvmfs.BackendObjectStore, nil, nil
		case err != nil:
			return "", nil, err
		}
		logger.Debug("detected web-fileset backend")
		return cvmfs.BackendWebFileset, doc, nil
	default:
		return "", nil, fmt.Errorf("%w: unknown backend %q for %s", cvmfs.ErrLexical, server.Backend, server.Hostname)
	}
}

// errSelfDescriptionUnreachable marks a transport or HTTP-status failure of
// the self-description fetch, as opposed to a bad document.
var errSelfDescriptionUnreachable = errors.New("repositories.json unreachable")

// fetchSelfDescription fetches, parses and role-checks repositories.json.
func (s *Scraper) fetchSelfDescription(ctx context.Context, server cvmfs.Server) (*cvmfs.RepositoriesJSON, error) {
	body, err := s.fetcher.Fetch(ctx, cvmfs.RepositoriesJSONURL(server.Hostname))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSelfDescriptionUnreachable, err)
	}
	doc, err := cvmfs.ParseRepositoriesJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", server.Hostname, err)
	}
	if err := server.ValidateSelfDescription(doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// fetchContact returns the server's contact metadata, or nil when it is
// missing or unreadable.
func (s *Scraper) fetchContact(ctx context.Context, host cvmfs.Hostname, logger *zap.Logger) *cvmfs.MetaJSON {
	body, err := s.fetcher.Fetch(ctx, cvmfs.MetaJSONURL(host))
	if err != nil {
		logger.Debug("no contact metadata", zap.Error(err))
		return nil
	}
	meta, err := cvmfs.ParseMetaJSON(body)
	if err != nil {
		logger.Debug("unreadable contact metadata", zap.Error(err))
		return nil
	}
	return &meta
}

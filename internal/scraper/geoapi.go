package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
)

// probeGeoapi queries the server's GeoAPI using the first repository as the
// probe path. The probe is skipped, yielding a query with no response, for
// primaries, for servers without repositories, and for object-store backends.
func (s *Scraper) probeGeoapi(
	ctx context.Context,
	server cvmfs.Server,
	detected cvmfs.BackendType,
	repos []cvmfs.PopulatedRepository,
	candidates []cvmfs.Hostname,
	logger *zap.Logger,
) (cvmfs.GeoapiQuery, error) {
	query := cvmfs.GeoapiQuery{Hostname: server.Hostname, Candidates: candidates}

	switch {
	case server.Type == cvmfs.ServerTypePrimary:
		logger.Debug("skipping geoapi for primary server")
		return query, nil
	case len(repos) == 0:
		logger.Debug("skipping geoapi, no repositories")
		return query, nil
	case detected == cvmfs.BackendObjectStore:
		logger.Debug("skipping geoapi for object-store backend")
		return query, nil
	}

	token, err := s.tokens.NewToken()
	if err != nil {
		return query, fmt.Errorf("%w: generate token: %w", cvmfs.ErrGeoapi, err)
	}
	url := cvmfs.GeoapiURL(server.Hostname, repos[0].Name, token, candidates)
	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		logger.Warn("geoapi fetch failed", zap.String("url", url), zap.Error(err))
		return query, fmt.Errorf("%w: failed to fetch geoapi for %s on %s (with %s): %v",
			cvmfs.ErrGeoapi, server.Hostname, server.Backend, token, err)
	}
	logger.Debug("fetched geoapi", zap.String("url", url), zap.ByteString("response", body))

	response, err := cvmfs.ParseGeoapiResponse(string(body))
	if err != nil {
		return query, fmt.Errorf("geoapi response from %s: %w", server.Hostname, err)
	}
	query.Response = response
	return query, nil
}

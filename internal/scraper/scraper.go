package scraper

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
	"github.com/JakeFAU/cvmfs-scraper/internal/metrics"
)

// Scraper scrapes CVMFS servers through a Fetcher. It holds no per-run
// state and is safe for concurrent use.
type Scraper struct {
	fetcher cvmfs.Fetcher
	tokens  cvmfs.TokenGenerator
	clock   cvmfs.Clock
	logger  *zap.Logger
}

// New wires a Scraper.
func New(fetcher cvmfs.Fetcher, tokens cvmfs.TokenGenerator, clock cvmfs.Clock, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Scraper{
		fetcher: fetcher,
		tokens:  tokens,
		clock:   clock,
		logger:  logger,
	}
}

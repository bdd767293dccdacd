package scraper

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
)

// Options is the per-run configuration shared by every server in a fleet scrape.
type Options struct {
	// ForcedRepositories are scraped on every server regardless of what it advertises.
	ForcedRepositories []string
	// IgnoredRepositories are never scraped, forced or advertised.
	IgnoredRepositories []string
	// OnlyForced disables adding advertised repositories.
	OnlyForced bool
	// GeoapiServers is the ordered candidate list sent to the GeoAPI.
	GeoapiServers []cvmfs.Hostname
	// MaxConcurrency bounds the number of servers scraped at once. Zero means unbounded.
	MaxConcurrency int
}

// Validate checks the options before a fleet scrape starts.
func (o Options) Validate() error {
	var errs []error
	if o.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("max concurrency must be >= 0, got %d", o.MaxConcurrency))
	}
	if len(o.GeoapiServers) == 0 {
		errs = append(errs, errors.New("geoapi server list is empty"))
	}
	for _, name := range o.ForcedRepositories {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("forced repository names must not be empty"))
			break
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", cvmfs.ErrValidation, err)
	}
	return nil
}

// repositorySet is a deduplicated set of repository names with an ignore filter.
type repositorySet struct {
	names  map[string]struct{}
	ignore map[string]struct{}
}

func newRepositorySet(forced, ignored []string) *repositorySet {
	s := &repositorySet{
		names:  make(map[string]struct{}, len(forced)),
		ignore: make(map[string]struct{}, len(ignored)),
	}
	for _, name := range ignored {
		s.ignore[name] = struct{}{}
	}
	for _, name := range forced {
		s.add(name)
	}
	return s
}

func (s *repositorySet) add(name string) {
	if _, skip := s.ignore[name]; skip {
		return
	}
	s.names[name] = struct{}{}
}

func (s *repositorySet) empty() bool {
	return len(s.names) == 0
}

// sorted returns the names in lexicographic order.
func (s *repositorySet) sorted() []string {
	out := make([]string, 0, len(s.names))
	for name := range s.names {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

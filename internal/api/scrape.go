package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/cvmfs-scraper/internal/config"
	"github.com/JakeFAU/cvmfs-scraper/internal/cvmfs"
	"github.com/JakeFAU/cvmfs-scraper/internal/report"
	"github.com/JakeFAU/cvmfs-scraper/internal/scraper"
)

// scrapeRequest overrides the configured fleet. Absent fields fall back to
// the server configuration.
type scrapeRequest struct {
	Servers             []config.ServerEntry `json:"servers"`
	ForcedRepositories  []string             `json:"forced_repositories"`
	IgnoredRepositories []string             `json:"ignored_repositories"`
	OnlyForced          *bool                `json:"only_forced"`
	GeoapiServers       []string             `json:"geoapi_servers"`
	ExpectedGeoapiOrder []string             `json:"expected_geoapi_order"`
	MaxConcurrency      *int                 `json:"max_concurrency"`
	Format              string               `json:"format"`
	Persist             bool                 `json:"persist"`
}

type scrapePlan struct {
	servers  []cvmfs.Server
	opts     scraper.Options
	expected []cvmfs.Hostname
	format   report.Format
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	if s.scraper == nil || s.idGen == nil || s.clock == nil {
		writeError(w, http.StatusServiceUnavailable, "scraper not configured")
		return
	}
	var req scrapeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	plan, err := s.plan(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Persist && s.writer == nil {
		writeError(w, http.StatusBadRequest, "report persistence is not configured")
		return
	}

	runID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("generate run id: %v", err))
		return
	}
	logger := s.logger.With(zap.String("run_id", runID), zap.String("request_id", RequestID(r.Context())))

	results, err := s.scraper.ScrapeFleet(r.Context(), plan.servers, plan.opts)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, cvmfs.ErrValidation) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	rep := report.Build(runID, s.clock.Now(), results, plan.expected, logger)

	if req.Persist {
		res, err := s.writer.Write(r.Context(), rep)
		if err != nil {
			logger.Error("report write failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		w.Header().Set("X-Report-URI", res.URI)
	}

	body, err := report.Encode(rep, plan.format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", plan.format.ContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Warn("write scrape response failed", zap.Error(err))
	}
}

// plan merges the request with configured defaults and validates the result
// with the same rules used at config load time.
func (s *Server) plan(req scrapeRequest) (scrapePlan, error) {
	cfg := s.cfg
	if len(req.Servers) > 0 {
		cfg.Servers = req.Servers
	}
	if req.ForcedRepositories != nil {
		cfg.Scrape.ForcedRepositories = req.ForcedRepositories
	}
	if req.IgnoredRepositories != nil {
		cfg.Scrape.IgnoredRepositories = req.IgnoredRepositories
	}
	if req.OnlyForced != nil {
		cfg.Scrape.OnlyForced = *req.OnlyForced
	}
	if len(req.GeoapiServers) > 0 {
		cfg.Scrape.GeoapiServers = req.GeoapiServers
	}
	if req.ExpectedGeoapiOrder != nil {
		cfg.Scrape.ExpectedGeoapiOrder = req.ExpectedGeoapiOrder
	}
	if req.MaxConcurrency != nil {
		cfg.Scrape.MaxConcurrency = *req.MaxConcurrency
	}
	if len(cfg.Servers) == 0 {
		return scrapePlan{}, errors.New("at least one server is required")
	}
	if _, err := cvmfs.ParseHostnames(cfg.Scrape.ExpectedGeoapiOrder); err != nil {
		return scrapePlan{}, fmt.Errorf("expected_geoapi_order: %w", err)
	}

	servers, err := cfg.Fleet()
	if err != nil {
		return scrapePlan{}, err
	}
	opts, err := cfg.ScrapeOptions()
	if err != nil {
		return scrapePlan{}, err
	}
	format := cfg.ReportFormat()
	if req.Format != "" {
		if format, err = report.ParseFormat(req.Format); err != nil {
			return scrapePlan{}, err
		}
	}
	return scrapePlan{
		servers:  servers,
		opts:     opts,
		expected: cfg.ExpectedGeoapiOrder(),
		format:   format,
	}, nil
}

// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal            *prometheus.CounterVec
	fetchBytesTotal               *prometheus.CounterVec
	serverScrapesTotal            *prometheus.CounterVec
	serverScrapeDurationSeconds   *prometheus.HistogramVec
	repositoryScrapesTotal        *prometheus.CounterVec
	geoapiChecksTotal             *prometheus.CounterVec
	fleetInFlightServers          prometheus.Gauge
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	scraperRateLimitDelaysSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvmfs_fetch_requests_total",
				Help: "Total number of endpoint fetches, labeled by host and status.",
			},
			[]string{"host", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvmfs_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by host.",
			},
			[]string{"host"},
		)

		serverScrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvmfs_server_scrapes_total",
				Help: "Total number of server scrapes, labeled by outcome and detected backend.",
			},
			[]string{"outcome", "backend"},
		)

		serverScrapeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cvmfs_server_scrape_duration_seconds",
				Help:    "Histogram of per-server scrape durations, labeled by outcome.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"outcome"},
		)

		repositoryScrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvmfs_repository_scrapes_total",
				Help: "Total number of repository scrapes, labeled by status.",
			},
			[]string{"status"},
		)

		geoapiChecksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvmfs_geoapi_checks_total",
				Help: "Total number of GeoAPI order checks, labeled by result.",
			},
			[]string{"result"},
		)

		fleetInFlightServers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "cvmfs_fleet_in_flight_servers",
				Help: "Number of servers currently being scraped.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
			},
			[]string{"method", "route"},
		)

		scraperRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cvmfs_rate_limit_delays_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch counts one endpoint fetch and the bytes it returned.
func ObserveFetch(rawURL string, status string, bytesFetched int) {
	host := SanitizeSite(rawURL)
	fetchRequestsTotal.WithLabelValues(host, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(host).Add(float64(bytesFetched))
	}
}

// ObserveServerScrape records a finished server scrape.
func ObserveServerScrape(outcome, backend string, duration time.Duration) {
	serverScrapesTotal.WithLabelValues(outcome, backend).Inc()
	serverScrapeDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveRepository counts one repository scrape.
func ObserveRepository(status string) {
	repositoryScrapesTotal.WithLabelValues(status).Inc()
}

// ObserveGeoapiCheck counts one GeoAPI order check.
func ObserveGeoapiCheck(result string) {
	geoapiChecksTotal.WithLabelValues(result).Inc()
}

// IncInFlight increments the in-flight servers gauge.
func IncInFlight() {
	fleetInFlightServers.Inc()
}

// DecInFlight decrements the in-flight servers gauge.
func DecInFlight() {
	fleetInFlightServers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	scraperRateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

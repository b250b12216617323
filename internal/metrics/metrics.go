// Package metrics provides Prometheus metrics for the siteforge server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "siteforge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// GitHub API metrics
	githubRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_github_requests_total",
			Help: "Total number of GitHub API requests",
		},
		[]string{"method", "status"},
	)

	githubRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siteforge_github_retries_total",
			Help: "Total number of retried GitHub API requests",
		},
	)

	tokenExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_token_exchanges_total",
			Help: "Total number of installation token exchanges",
		},
		[]string{"outcome"},
	)

	tokenCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siteforge_token_cache_hits_total",
			Help: "Total number of installation token cache hits",
		},
	)

	// Import / publish metrics
	importDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siteforge_import_duration_seconds",
			Help:    "Time to import a repository tree",
			Buckets: prometheus.DefBuckets,
		},
	)

	importedFilesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siteforge_imported_files_total",
			Help: "Total number of files imported from repositories",
		},
	)

	publishedCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_published_commits_total",
			Help: "Total number of file commits during publish",
		},
		[]string{"outcome"},
	)

	// Workspace persistence metrics
	snapshotSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_snapshot_saves_total",
			Help: "Total number of workspace snapshot writes",
		},
		[]string{"outcome"},
	)

	snapshotSavesCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siteforge_snapshot_saves_coalesced_total",
			Help: "Snapshot saves absorbed by the debounce window",
		},
	)
)

// RecordGitHubRequest records one GitHub API request outcome.
func RecordGitHubRequest(method string, status int) {
	githubRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// RecordGitHubRetry records one retried GitHub API attempt.
func RecordGitHubRetry() {
	githubRetriesTotal.Inc()
}

// RecordTokenExchange records an installation token exchange.
func RecordTokenExchange(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	tokenExchangesTotal.WithLabelValues(outcome).Inc()
}

// RecordTokenCacheHit records a token served from cache.
func RecordTokenCacheHit() {
	tokenCacheHitsTotal.Inc()
}

// RecordImport records an import run.
func RecordImport(d time.Duration, files int) {
	importDuration.Observe(d.Seconds())
	importedFilesTotal.Add(float64(files))
}

// RecordPublishedCommit records one commit during publish.
func RecordPublishedCommit(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	publishedCommitsTotal.WithLabelValues(outcome).Inc()
}

// RecordSnapshotSave records a snapshot store write.
func RecordSnapshotSave(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	snapshotSavesTotal.WithLabelValues(outcome).Inc()
}

// RecordSnapshotCoalesced records a save absorbed by debouncing.
func RecordSnapshotCoalesced() {
	snapshotSavesCoalesced.Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and latency for an HTTP handler.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

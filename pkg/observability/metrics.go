package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricScansTotal         = "unimported.scans.total"
	metricScanDuration       = "unimported.scan.duration.seconds"
	metricFilesParsed        = "unimported.files.parsed.total"
	metricCacheHits          = "unimported.cache.hits.total"
	metricCacheMisses        = "unimported.cache.misses.total"
	metricCacheInvalidations = "unimported.cache.invalidations.total"
	metricCacheRetries       = "unimported.cache.retries.total"

	attrStatus = "status"
	attrLevel  = "cache.level"

	levelSpecifiers  = "specifiers"
	levelResolutions = "resolutions"
)

// Scan outcome statuses.
const (
	StatusClean    = "clean"
	StatusFindings = "findings"
	StatusError    = "error"
)

// durationBucketBoundaries covers 10ms to 300s.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// ScanStats is what one scan reports to ScanMetrics.
type ScanStats struct {
	Status        string
	Duration      time.Duration
	Parsed        int
	Cached        int
	Memoized      int
	Invalidations int
	Retries       int
}

// ScanMetrics holds the OTel instruments of the scanner.
type ScanMetrics struct {
	scans         metric.Int64Counter
	duration      metric.Float64Histogram
	parsed        metric.Int64Counter
	hits          metric.Int64Counter
	misses        metric.Int64Counter
	invalidations metric.Int64Counter
	retries       metric.Int64Counter
}

// NewScanMetrics creates scan instruments from mt.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	counter := func(name, desc, unit string) (metric.Int64Counter, error) {
		c, err := mt.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", name, err)
		}

		return c, nil
	}

	var (
		sm  ScanMetrics
		err error
	)

	sm.scans, err = counter(metricScansTotal, "Completed scans", "{scan}")
	if err != nil {
		return nil, err
	}

	sm.duration, err = mt.Float64Histogram(metricScanDuration,
		metric.WithDescription("Scan duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricScanDuration, err)
	}

	sm.parsed, err = counter(metricFilesParsed, "Files read and parsed", "{file}")
	if err != nil {
		return nil, err
	}

	sm.hits, err = counter(metricCacheHits, "Fingerprint cache hits", "{file}")
	if err != nil {
		return nil, err
	}

	sm.misses, err = counter(metricCacheMisses, "Fingerprint cache misses", "{file}")
	if err != nil {
		return nil, err
	}

	sm.invalidations, err = counter(metricCacheInvalidations, "Cache entries invalidated", "{entry}")
	if err != nil {
		return nil, err
	}

	sm.retries, err = counter(metricCacheRetries, "Traversals retried after a cache purge", "{retry}")
	if err != nil {
		return nil, err
	}

	return &sm, nil
}

// RecordScan records one finished scan.
func (sm *ScanMetrics) RecordScan(ctx context.Context, mode AppMode, stats ScanStats) {
	modeAttr := attribute.String(attrMode, string(mode))
	attrs := metric.WithAttributes(modeAttr, attribute.String(attrStatus, stats.Status))

	sm.scans.Add(ctx, 1, attrs)
	sm.duration.Record(ctx, stats.Duration.Seconds(), attrs)

	sm.parsed.Add(ctx, int64(stats.Parsed), metric.WithAttributes(modeAttr))
	sm.misses.Add(ctx, int64(stats.Parsed), metric.WithAttributes(modeAttr))
	sm.hits.Add(ctx, int64(stats.Cached), metric.WithAttributes(modeAttr, attribute.String(attrLevel, levelSpecifiers)))
	sm.hits.Add(ctx, int64(stats.Memoized), metric.WithAttributes(modeAttr, attribute.String(attrLevel, levelResolutions)))
	sm.invalidations.Add(ctx, int64(stats.Invalidations), metric.WithAttributes(modeAttr))
	sm.retries.Add(ctx, int64(stats.Retries), metric.WithAttributes(modeAttr))
}

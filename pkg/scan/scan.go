// Package scan runs a complete project scan: configuration, per-entry
// traversal with cache recovery, merging, enumeration and reporting.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/unimported/pkg/cache"
	"github.com/Sumatoshi-tech/unimported/pkg/config"
	"github.com/Sumatoshi-tech/unimported/pkg/gitlib"
	"github.com/Sumatoshi-tech/unimported/pkg/manifest"
	"github.com/Sumatoshi-tech/unimported/pkg/observability"
	"github.com/Sumatoshi-tech/unimported/pkg/report"
	"github.com/Sumatoshi-tech/unimported/pkg/resolve"
	"github.com/Sumatoshi-tech/unimported/pkg/specifier"
	"github.com/Sumatoshi-tech/unimported/pkg/traverse"
	"github.com/Sumatoshi-tech/unimported/pkg/walker"
)

const (
	tracerName = "unimported/scan"

	// maxAttempts is the first traversal plus one retry after a cache purge.
	maxAttempts = 2
)

// Options configures a Scanner.
type Options struct {
	Logger *slog.Logger
	// Tracer creates run and entry spans. Nil falls back to the global provider.
	Tracer  trace.Tracer
	Metrics *observability.ScanMetrics
	Mode    observability.AppMode
	// Extractor is shared across runs. Nil creates one.
	Extractor *specifier.Extractor
}

// Scanner runs scans. It is safe for sequential reuse; concurrent runs on
// the same project compete for the cache lock and fall back to memory only.
type Scanner struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *observability.ScanMetrics
	mode      observability.AppMode
	extractor *specifier.Extractor
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	s := &Scanner{
		logger:    opts.Logger,
		tracer:    opts.Tracer,
		metrics:   opts.Metrics,
		mode:      opts.Mode,
		extractor: opts.Extractor,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}

	if s.mode == "" {
		s.mode = observability.ModeCLI
	}

	if s.extractor == nil {
		s.extractor = specifier.NewExtractor()
	}

	return s
}

// Request describes one scan.
type Request struct {
	Root     string
	Settings *config.Settings
}

// EntryTiming records how one entry traversal went.
type EntryTiming struct {
	Entry    string
	Files    int
	Attempts int
	Duration time.Duration
}

// Outcome is everything a run produced.
type Outcome struct {
	Plan    *config.Plan
	Result  *traverse.Result
	Report  *report.Report
	Entries []EntryTiming
	Cache   cache.Stats
	Retries int
}

// Run scans the project at req.Root.
func (s *Scanner) Run(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()

	settings := req.Settings
	if settings == nil {
		settings = &config.Settings{}
	}

	root, err := filepath.Abs(req.Root)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "scan.run", trace.WithAttributes(attribute.String("scan.root", root)))
	defer span.End()

	out, err := s.run(ctx, root, settings)

	stats := observability.ScanStats{Status: observability.StatusError, Duration: time.Since(start)}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		out.Report.Summary.Duration = stats.Duration

		stats.Status = observability.StatusClean
		if !out.Report.Empty() {
			stats.Status = observability.StatusFindings
		}

		stats.Parsed = out.Result.Stats.Parsed
		stats.Cached = out.Result.Stats.Cached
		stats.Memoized = out.Result.Stats.Memoized
		stats.Invalidations = int(out.Cache.Invalidations)
		stats.Retries = out.Retries
	}

	if s.metrics != nil {
		s.metrics.RecordScan(ctx, s.mode, stats)
	}

	return out, err
}

func (s *Scanner) run(ctx context.Context, root string, settings *config.Settings) (*Outcome, error) {
	project, err := config.LoadProject(root)
	if err != nil {
		return nil, err
	}

	m, err := manifest.Load(root)
	if err != nil {
		if !errors.Is(err, manifest.ErrNotFound) {
			return nil, err
		}

		s.logger.WarnContext(ctx, "no package.json, dependency checks are skipped", "root", root)
	}

	plan, err := config.BuildPlan(root, project, m)
	if err != nil {
		return nil, err
	}

	store, err := s.openCache(root, settings)
	if err != nil {
		return nil, err
	}

	defer func() {
		closeErr := store.Close()
		if closeErr != nil {
			s.logger.WarnContext(ctx, "cache close failed", "error", closeErr)
		}
	}()

	tr := traverse.New(traverse.Options{
		Extractor:   s.extractor,
		Resolver:    resolve.New(nil),
		Cache:       store,
		Concurrency: settings.Scan.Concurrency,
		Logger:      s.logger,
		Tracer:      s.tracer,
	})

	out := &Outcome{Plan: plan}
	results := make([]*traverse.Result, 0, len(plan.Entries))
	entryFiles := make([]string, 0, len(plan.Entries))

	for _, entry := range plan.Entries {
		res, timing, traverseErr := s.traverseEntry(ctx, tr, store, plan, entry)
		out.Entries = append(out.Entries, timing)
		out.Retries += timing.Attempts - 1

		if traverseErr != nil {
			return nil, traverseErr
		}

		results = append(results, res)
		entryFiles = append(entryFiles, entry.File)
	}

	out.Result = traverse.Merge(results...)

	files, err := s.candidates(ctx, root, plan, project, settings)
	if err != nil {
		return nil, err
	}

	var deps map[string]struct{}
	if m != nil {
		deps = m.Runtime(settings.Scan.IncludeDev)
	}

	out.Report, err = report.Compute(report.Input{
		Root:              root,
		Result:            out.Result,
		Files:             files,
		Entries:           entryFiles,
		Dependencies:      deps,
		IgnoreUnimported:  project.IgnoreUnimported,
		IgnoreUnresolved:  project.IgnoreUnresolved,
		IgnoreUnused:      project.IgnoreUnused,
		StrictTypeImports: settings.Scan.StrictTypeImports,
	})
	if err != nil {
		return nil, err
	}

	out.Report.Summary.Retries = out.Retries
	out.Report.Summary.Revision = s.revision(ctx, root)

	err = store.Flush()
	if err != nil {
		s.logger.WarnContext(ctx, "cache flush failed", "error", err)
	}

	out.Cache = store.Stats()

	return out, nil
}

func (s *Scanner) openCache(root string, settings *config.Settings) (*cache.Cache, error) {
	opts := cache.Options{
		Mode:       cache.Mode(settings.Cache.Fingerprint),
		MaxEntries: settings.Cache.MaxEntries,
		Logger:     s.logger,
	}

	if settings.Cache.Enabled {
		opts.Dir = settings.CacheDir(root)
	}

	store, err := cache.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	if settings.Cache.Clear {
		err = store.Clear()
		if err != nil {
			return nil, errors.Join(fmt.Errorf("clear cache: %w", err), store.Close())
		}
	}

	return store, nil
}

// traverseEntry traverses one entry, purging the cache and retrying once
// when the cache turns out to be stale.
func (s *Scanner) traverseEntry(
	ctx context.Context,
	tr *traverse.Traverser,
	store *cache.Cache,
	plan *config.Plan,
	entry config.Entry,
) (*traverse.Result, EntryTiming, error) {
	start := time.Now()
	timing := EntryTiming{Entry: entry.Name()}
	cfg := plan.Global.WithOverride(entry.Override)

	ctx, span := s.tracer.Start(ctx, "scan.entry", trace.WithAttributes(attribute.String("entry.name", entry.Name())))
	defer span.End()

	for attempt := 1; ; attempt++ {
		timing.Attempts = attempt

		res, err := tr.Traverse(ctx, entry.File, cfg)
		if err == nil {
			timing.Files = len(res.Files)
			timing.Duration = time.Since(start)

			s.logger.DebugContext(ctx, "entry traversed",
				"entry", entry.Name(), "files", timing.Files, "attempts", attempt, "duration", timing.Duration)

			return res, timing, nil
		}

		var invalid *cache.InvalidCacheError
		if !errors.As(err, &invalid) || attempt == maxAttempts {
			timing.Duration = time.Since(start)
			fatal := newFatalError(entry.Name(), entry.File, err)

			span.RecordError(fatal)
			span.SetStatus(codes.Error, fatal.Error())

			return nil, timing, fatal
		}

		s.logger.WarnContext(ctx, "cache out of date, purging and retrying",
			"entry", entry.Name(), "file", invalid.Path, "missing", invalid.Missing)
		store.PurgeAll()
	}
}

// candidates enumerates the files checked for being imported.
func (s *Scanner) candidates(
	ctx context.Context,
	root string,
	plan *config.Plan,
	project *config.Project,
	settings *config.Settings,
) ([]string, error) {
	files, err := walker.Walk(ctx, walker.Options{
		Root:         root,
		Dirs:         project.ScannedDirs,
		Extensions:   plan.Global.Extensions,
		Ignore:       project.IgnoreGlobs(),
		SkipVendored: settings.Scan.SkipVendored,
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate files: %w", err)
	}

	if !settings.Scan.IgnoreUntracked {
		return files, nil
	}

	untracked, err := gitlib.Untracked(root)
	if err != nil {
		return nil, fmt.Errorf("list untracked files: %w", err)
	}

	kept := files[:0]

	for _, file := range files {
		if _, skip := untracked[file]; !skip {
			kept = append(kept, file)
		}
	}

	return kept, nil
}

// revision returns the abbreviated HEAD commit, or "" outside a repository.
func (s *Scanner) revision(ctx context.Context, root string) string {
	repo, err := gitlib.Discover(root)
	if err != nil {
		if !errors.Is(err, gitlib.ErrNotRepository) {
			s.logger.DebugContext(ctx, "git revision unavailable", "error", err)
		}

		return ""
	}
	defer repo.Free()

	head, err := repo.Head()
	if err != nil {
		s.logger.DebugContext(ctx, "git revision unavailable", "error", err)

		return ""
	}

	return head.Short()
}

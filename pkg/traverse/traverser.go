// Package traverse walks the import graph reachable from an entry file.
package traverse

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/Sumatoshi-tech/unimported/pkg/cache"
	"github.com/Sumatoshi-tech/unimported/pkg/resolve"
	"github.com/Sumatoshi-tech/unimported/pkg/specifier"
)

// ErrEntryNotFound is returned when the entry file does not exist.
var ErrEntryNotFound = errors.New("entry file not found")

var errLoadType = errors.New("load returned unexpected type")

const tracerName = "unimported/traverse"

// Options configures a Traverser.
type Options struct {
	Extractor *specifier.Extractor
	Resolver  *resolve.Resolver
	// Cache is required; use an in-memory cache to disable persistence.
	Cache *cache.Cache
	// Concurrency bounds files read, parsed and resolved at once.
	// Zero selects runtime.NumCPU().
	Concurrency int
	Logger      *slog.Logger
	// Tracer creates per-file spans. Nil falls back to the global provider.
	Tracer trace.Tracer
}

// Traverser discovers reachable files. One Traverser may serve many
// Traverse calls; visited state is per call.
type Traverser struct {
	extractor *specifier.Extractor
	resolver  *resolve.Resolver
	cache     *cache.Cache
	logger    *slog.Logger
	tracer    trace.Tracer
	sem       *semaphore.Weighted
	loads     singleflight.Group
}

// New creates a Traverser.
func New(opts Options) *Traverser {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	t := &Traverser{
		extractor: opts.Extractor,
		resolver:  opts.Resolver,
		cache:     opts.Cache,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
		sem:       semaphore.NewWeighted(int64(concurrency)),
	}

	if t.extractor == nil {
		t.extractor = specifier.NewExtractor()
	}

	if t.resolver == nil {
		t.resolver = resolve.New(nil)
	}

	if t.logger == nil {
		t.logger = slog.Default()
	}

	if t.tracer == nil {
		t.tracer = otel.Tracer(tracerName)
	}

	return t
}

type visitState uint8

const (
	unvisited visitState = iota
	inProgress
	done
)

// walk is the state of one Traverse call.
type walk struct {
	cfg    *resolve.Config
	digest string
	group  *errgroup.Group
	ctx    context.Context //nolint:containedctx // scoped to a single Traverse call

	mu     sync.Mutex
	states map[string]visitState
	result *Result
}

// Traverse returns every file reachable from entry under cfg, the external
// modules they use and the specifiers that did not resolve. Parse errors and
// *cache.InvalidCacheError abort the walk and are returned unchanged.
func (t *Traverser) Traverse(ctx context.Context, entry string, cfg *resolve.Config) (*Result, error) {
	entry, err := filepath.Abs(entry)
	if err != nil {
		return nil, fmt.Errorf("entry path: %w", err)
	}

	info, err := os.Stat(entry)
	if err != nil || !info.Mode().IsRegular() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entry)
		}

		return nil, fmt.Errorf("stat entry: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)

	w := &walk{
		cfg:    cfg,
		digest: cfg.Digest(),
		group:  group,
		ctx:    gctx,
		states: make(map[string]visitState),
		result: NewResult(),
	}

	t.enqueue(w, entry)

	err = group.Wait()
	if err != nil {
		return nil, err
	}

	w.result.Stats.Files = len(w.result.Files)

	return w.result, nil
}

// enqueue schedules path unless this walk has already claimed it.
func (t *Traverser) enqueue(w *walk, path string) {
	w.mu.Lock()
	if w.states[path] != unvisited {
		w.mu.Unlock()

		return
	}

	w.states[path] = inProgress
	w.mu.Unlock()

	w.group.Go(func() error {
		return t.visit(w, path)
	})
}

func (t *Traverser) visit(w *walk, path string) error {
	err := t.sem.Acquire(w.ctx, 1)
	if err != nil {
		return fmt.Errorf("acquire worker: %w", err)
	}

	ctx, span := t.tracer.Start(w.ctx, "traverse.file", trace.WithAttributes(attribute.String("file.path", path)))

	res, source, err := t.imports(ctx, w, path)

	span.End()
	t.sem.Release(1)

	if err != nil {
		return err
	}

	w.mu.Lock()

	record := &FileRecord{Path: path, Imports: make([]Import, 0, len(res.Imports))}
	for _, imp := range res.Imports {
		record.Imports = append(record.Imports, Import(imp))
	}

	w.result.Files[path] = record

	for _, name := range res.Modules {
		w.result.Modules[name] = struct{}{}
	}

	for _, spec := range res.Unresolved {
		w.result.addUnresolved(spec, path)
	}

	switch source {
	case sourceParsed:
		w.result.Stats.Parsed++
	case sourceCached:
		w.result.Stats.Cached++
	case sourceMemoized:
		w.result.Stats.Memoized++
	}

	w.states[path] = done
	w.mu.Unlock()

	for _, imp := range res.Imports {
		t.enqueue(w, imp.Path)
	}

	return nil
}

type dataSource uint8

const (
	sourceNone dataSource = iota
	sourceParsed
	sourceCached
	sourceMemoized
)

// imports returns the resolved imports of path. Parsing is skipped for
// unchanged files; a memoized resolution is reused only while re-resolving
// the specifiers reproduces it.
func (t *Traverser) imports(ctx context.Context, w *walk, path string) (cache.Resolution, dataSource, error) {
	if !t.extractor.Supports(path) {
		return cache.Resolution{}, sourceNone, nil
	}

	entry, hit, err := t.cache.Lookup(path)
	if err != nil {
		return cache.Resolution{}, sourceNone, err
	}

	var specs []specifier.Specifier

	source := sourceParsed

	if hit {
		source = sourceCached
		specs = entry.Specifiers

		if memo, ok := t.cache.Resolution(path, w.digest); ok {
			err = t.cache.Verify(path, memo)
			if err != nil {
				return cache.Resolution{}, sourceNone, err
			}

			fresh := t.resolveAll(path, specs, w.cfg)
			if fresh.Equal(memo) {
				return memo, sourceMemoized, nil
			}

			t.logger.Debug("resolution changed since last run", "file", path)
			t.cache.DropResolutions(path)
			t.cache.StoreResolution(path, w.digest, fresh)

			return fresh, source, nil
		}
	} else {
		specs, err = t.load(ctx, path)
		if err != nil {
			return cache.Resolution{}, sourceNone, err
		}
	}

	res := t.resolveAll(path, specs, w.cfg)
	t.cache.StoreResolution(path, w.digest, res)

	return res, source, nil
}

// load reads and parses path once, however many walks ask for it concurrently.
func (t *Traverser) load(ctx context.Context, path string) ([]specifier.Specifier, error) {
	v, err, _ := t.loads.Do(path, func() (any, error) {
		source, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read %s: %w", path, readErr)
		}

		specs, parseErr := t.extractor.Extract(ctx, path, source)
		if parseErr != nil {
			return nil, parseErr
		}

		storeErr := t.cache.Store(path, specs)
		if storeErr != nil {
			t.logger.Warn("cache store failed", "file", path, "error", storeErr)
		}

		return specs, nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // parse errors propagate unchanged
	}

	return loadedSpecs(v)
}

func loadedSpecs(v any) ([]specifier.Specifier, error) {
	specs, ok := v.([]specifier.Specifier)
	if !ok {
		return nil, fmt.Errorf("%w: %T", errLoadType, v)
	}

	return specs, nil
}

// resolveAll resolves specs in source order. Local imports are deduplicated
// by path; an import stays type-only only if every occurrence is.
func (t *Traverser) resolveAll(path string, specs []specifier.Specifier, cfg *resolve.Config) cache.Resolution {
	var res cache.Resolution

	for _, spec := range specs {
		out := t.resolver.Resolve(spec.Text, path, cfg)

		switch out.Kind {
		case resolve.Resolved:
			if out.Package != "" && !slices.Contains(res.Modules, out.Package) {
				res.Modules = append(res.Modules, out.Package)
			}

			idx := slices.IndexFunc(res.Imports, func(imp cache.Import) bool { return imp.Path == out.Path })
			if idx >= 0 {
				res.Imports[idx].TypeOnly = res.Imports[idx].TypeOnly && spec.TypeOnly()

				continue
			}

			res.Imports = append(res.Imports, cache.Import{Path: out.Path, Specifier: spec.Text, TypeOnly: spec.TypeOnly()})
		case resolve.ResolvedExternal:
			if !slices.Contains(res.Modules, out.Package) {
				res.Modules = append(res.Modules, out.Package)
			}
		case resolve.ResolvedBuiltin:
		case resolve.Unresolved:
			if !slices.Contains(res.Unresolved, spec.Text) {
				res.Unresolved = append(res.Unresolved, spec.Text)
			}
		}
	}

	return res
}

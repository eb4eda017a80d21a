// Package cache memoizes per-file specifier extraction and resolution across
// runs, keyed by absolute path and validated by file fingerprint.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/Sumatoshi-tech/unimported/pkg/persist"
	"github.com/Sumatoshi-tech/unimported/pkg/specifier"
)

// storeVersion changes whenever the persisted layout changes.
const storeVersion = 2

const (
	storeBasename = "unimported-cache"
	lockFileName  = "cache.lock"
	dirPerm       = 0o755
)

// DefaultMaxEntries bounds the number of files kept in the store.
const DefaultMaxEntries = 200_000

// InvalidCacheError reports that a memoized resolution points at a file
// that no longer exists. Entries referring to Missing have been removed by
// the time the error is returned.
type InvalidCacheError struct {
	Path    string
	Missing string
}

// Error implements error.
func (e *InvalidCacheError) Error() string {
	return fmt.Sprintf("cache entry for %s refers to missing file %s", e.Path, e.Missing)
}

// Import is one memoized local import of a file.
type Import struct {
	Path      string
	Specifier string
	TypeOnly  bool
}

// Resolution memoizes how a file's specifiers resolved under one config digest.
type Resolution struct {
	Imports    []Import
	Modules    []string
	Unresolved []string
}

// Equal reports whether r and o describe the same resolution. Nil and empty
// slices are equal.
func (r Resolution) Equal(o Resolution) bool {
	return slices.Equal(r.Imports, o.Imports) &&
		slices.Equal(r.Modules, o.Modules) &&
		slices.Equal(r.Unresolved, o.Unresolved)
}

// Entry is the cached payload of one file.
type Entry struct {
	Fingerprint Fingerprint
	Specifiers  []specifier.Specifier
	Resolutions map[string]Resolution
}

// Options configures Open.
type Options struct {
	// Dir is the store directory. Empty keeps the cache in memory only.
	Dir string
	// Mode selects how fingerprints are computed.
	Mode Mode
	// MaxEntries bounds the store; the least recently used entries are evicted first.
	// Zero selects DefaultMaxEntries.
	MaxEntries int
	// Logger receives store warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// Stats holds cache counters for one process.
type Stats struct {
	Hits          int64
	Misses        int64
	Stores        int64
	Invalidations int64
	Entries       int
	Persistent    bool
}

// HitRate returns hits / (hits + misses), or 0 with no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

type snapshot struct {
	Version int
	Mode    Mode
	// Order lists paths from most to least recently used.
	Order   []string
	Entries map[string]*Entry
}

// Cache is the fingerprint cache. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   *recency
	dirty   bool

	dir        string
	mode       Mode
	maxEntries int
	logger     *slog.Logger
	persister  *persist.Persister[snapshot]
	lock       *flock.Flock

	hits          atomic.Int64
	misses        atomic.Int64
	stores        atomic.Int64
	invalidations atomic.Int64
}

// Open creates a cache and loads its persisted store. An unreadable or
// outdated store is discarded with a warning. When another process holds
// the store lock the cache works in memory only.
func Open(opts Options) (*Cache, error) {
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}

	c := &Cache{
		entries:    make(map[string]*Entry),
		order:      newRecency(),
		mode:       mode,
		maxEntries: opts.MaxEntries,
		logger:     opts.Logger,
		persister:  persist.NewPersister[snapshot](storeBasename, persist.NewLZ4Codec(persist.NewGobCodec())),
	}

	if c.maxEntries <= 0 {
		c.maxEntries = DefaultMaxEntries
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	if opts.Dir == "" {
		return c, nil
	}

	err = os.MkdirAll(opts.Dir, dirPerm)
	if err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	lock := flock.New(filepath.Join(opts.Dir, lockFileName))

	locked, err := lock.TryLock()
	if err != nil || !locked {
		c.logger.Warn("cache store is in use by another process, running without persistence",
			"dir", opts.Dir, "error", err)

		return c, nil
	}

	c.dir = opts.Dir
	c.lock = lock
	c.load()

	return c, nil
}

func (c *Cache) load() {
	snap, err := c.persister.Load(c.dir)
	if errors.Is(err, persist.ErrNoState) {
		return
	}

	if err != nil {
		c.logger.Warn("cache store unreadable, starting empty", "dir", c.dir, "error", err)
		c.dirty = true

		return
	}

	if snap.Version != storeVersion || snap.Mode != c.mode {
		c.logger.Info("cache store outdated, starting empty",
			"version", snap.Version, "mode", snap.Mode)
		c.dirty = true

		return
	}

	if snap.Entries != nil {
		c.entries = snap.Entries
	}

	for _, path := range slices.Backward(snap.Order) {
		if _, ok := c.entries[path]; ok {
			c.order.touch(path)
		}
	}

	for path := range c.entries {
		if _, ok := c.order.nodes[path]; !ok {
			c.order.touch(path)
		}
	}
}

// Persistent reports whether the cache writes its store to disk.
func (c *Cache) Persistent() bool {
	return c.dir != ""
}

// Lookup returns the entry for path when its fingerprint still matches the
// file. A stale entry is dropped and reported as a miss.
func (c *Cache) Lookup(path string) (*Entry, bool, error) {
	fp, err := fingerprint(path, c.mode)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		c.misses.Add(1)

		return nil, false, nil
	}

	if entry.Fingerprint != fp {
		c.deleteLocked(path)
		c.misses.Add(1)

		return nil, false, nil
	}

	c.hits.Add(1)
	c.order.touch(path)

	return entry, true, nil
}

// Store records specifiers for path under its current fingerprint,
// replacing any previous entry and its memoized resolutions.
func (c *Cache) Store(path string, specs []specifier.Specifier) error {
	fp, err := fingerprint(path, c.mode)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[path] = &Entry{Fingerprint: fp, Specifiers: specs}
	c.order.touch(path)
	c.dirty = true
	c.stores.Add(1)

	for c.order.len() > c.maxEntries {
		oldest, ok := c.order.oldest()
		if !ok {
			break
		}

		c.deleteLocked(oldest)
	}

	return nil
}

// Resolution returns the memoized resolution of path under digest.
func (c *Cache) Resolution(path, digest string) (Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok || entry.Resolutions == nil {
		return Resolution{}, false
	}

	res, ok := entry.Resolutions[digest]

	return res, ok
}

// StoreResolution memoizes the resolution of path under digest. It is a
// no-op when path has no entry.
func (c *Cache) StoreResolution(path, digest string, res Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		return
	}

	if entry.Resolutions == nil {
		entry.Resolutions = make(map[string]Resolution)
	}

	entry.Resolutions[digest] = res
	c.dirty = true
}

// DropResolutions forgets every memoized resolution of path.
func (c *Cache) DropResolutions(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[path]; ok && entry.Resolutions != nil {
		entry.Resolutions = nil
		c.dirty = true
	}
}

// Verify checks that every import of res, memoized for path, still exists.
// On the first missing import it removes the entries of every file whose
// memoized imports point at the missing file, then returns an
// *InvalidCacheError.
func (c *Cache) Verify(path string, res Resolution) error {
	for _, imp := range res.Imports {
		info, err := os.Stat(imp.Path)
		if err == nil && info.Mode().IsRegular() {
			continue
		}

		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("verify %s: %w", imp.Path, err)
		}

		c.invalidateReferrers(imp.Path)

		return &InvalidCacheError{Path: path, Missing: imp.Path}
	}

	return nil
}

func (c *Cache) invalidateReferrers(missing string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleteLocked(missing)

	for path, entry := range c.entries {
		if refersTo(entry, missing) {
			c.deleteLocked(path)
			c.invalidations.Add(1)
		}
	}
}

func refersTo(entry *Entry, target string) bool {
	for _, res := range entry.Resolutions {
		for _, imp := range res.Imports {
			if imp.Path == target {
				return true
			}
		}
	}

	return false
}

// Remove drops the entry for path.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleteLocked(path)
}

// PurgeAll drops every entry.
func (c *Cache) PurgeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
	c.order.clear()
	c.dirty = true
}

func (c *Cache) deleteLocked(path string) {
	if _, ok := c.entries[path]; !ok {
		return
	}

	delete(c.entries, path)
	c.order.remove(path)
	c.dirty = true
}

// Flush writes the store when it changed since the last flush.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dir == "" || !c.dirty {
		return nil
	}

	snap := &snapshot{
		Version: storeVersion,
		Mode:    c.mode,
		Order:   make([]string, 0, c.order.len()),
		Entries: c.entries,
	}

	for node := c.order.head; node != nil; node = node.next {
		snap.Order = append(snap.Order, node.path)
	}

	err := c.persister.Save(c.dir, snap)
	if err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}

	c.dirty = false

	return nil
}

// Clear removes the persisted store and every in-memory entry.
func (c *Cache) Clear() error {
	c.PurgeAll()

	if c.dir == "" {
		return nil
	}

	return c.persister.Remove(c.dir)
}

// Close flushes the store and releases the store lock.
func (c *Cache) Close() error {
	flushErr := c.Flush()

	if c.lock != nil {
		unlockErr := c.lock.Unlock()
		if unlockErr != nil && flushErr == nil {
			return fmt.Errorf("unlock cache: %w", unlockErr)
		}
	}

	return flushErr
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Stores:        c.stores.Load(),
		Invalidations: c.invalidations.Load(),
		Entries:       len(c.entries),
		Persistent:    c.dir != "",
	}
}

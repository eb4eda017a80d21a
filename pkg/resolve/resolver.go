// Package resolve maps raw import specifiers to files, external packages or nothing.
package resolve

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/unimported/pkg/manifest"
)

// Kind tags a resolution outcome.
type Kind uint8

// Resolution outcomes. The zero value is Unresolved.
const (
	Unresolved Kind = iota
	Resolved
	ResolvedExternal
	ResolvedBuiltin
)

const (
	nodeModules = "node_modules"
	indexName   = "index"
	scopePrefix = "@"
	scopedParts = 2
)

// Result is the outcome of resolving one specifier.
type Result struct {
	Kind Kind
	// Path is the absolute file path when Kind is Resolved.
	Path string
	// Package is the package name when Kind is ResolvedExternal or
	// ResolvedBuiltin, and for a declared dependency satisfied by a sibling.
	Package string
	// Specifier is the raw text when Kind is Unresolved.
	Specifier string
}

// String renders the result for logs.
func (r Result) String() string {
	switch r.Kind {
	case Resolved:
		return r.Path
	case ResolvedExternal:
		return "external:" + r.Package
	case ResolvedBuiltin:
		return "builtin:" + r.Package
	default:
		return fmt.Sprintf("unresolved:%q", r.Specifier)
	}
}

// FS is the filesystem view the resolver reads through.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
}

type osFS struct{}

func (osFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) } //nolint:wrapcheck // thin adapter

func (osFS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) } //nolint:wrapcheck // thin adapter

// Resolver resolves specifiers against a Config. It holds no per-call state
// and is safe for concurrent use.
type Resolver struct {
	fs FS
}

// New creates a Resolver reading through fsys. A nil fsys reads the host filesystem.
func New(fsys FS) *Resolver {
	if fsys == nil {
		fsys = osFS{}
	}

	return &Resolver{fs: fsys}
}

// Resolve maps spec, found in the file importer, to a Result. It never
// returns Resolved for a path that does not exist.
func (r *Resolver) Resolve(spec, importer string, cfg *Config) Result {
	unresolved := Result{Kind: Unresolved, Specifier: spec}

	if spec == "" {
		return unresolved
	}

	if key, targets, ok := matchAlias(spec, cfg.Aliases); ok {
		rest := spec[len(key):]

		for _, target := range targets {
			base := normaliseAliasPath(target) + rest
			if !filepath.IsAbs(base) {
				base = filepath.Join(cfg.RootDir, base)
			}

			if path, found := r.resolveFile(base, cfg.Extensions); found {
				return Result{Kind: Resolved, Path: path}
			}
		}

		return unresolved
	}

	switch {
	case strings.HasPrefix(spec, "/"):
		return r.local(filepath.Join(cfg.RootDir, spec), cfg, unresolved)
	case isRelative(spec):
		return r.local(filepath.Join(filepath.Dir(importer), spec), cfg, unresolved)
	default:
		return r.bare(spec, importer, cfg, unresolved)
	}
}

func (r *Resolver) local(base string, cfg *Config, miss Result) Result {
	if path, found := r.resolveFile(base, cfg.Extensions); found {
		return Result{Kind: Resolved, Path: path}
	}

	return miss
}

func (r *Resolver) bare(spec, importer string, cfg *Config, miss Result) Result {
	name := PackageName(spec)

	if strings.HasPrefix(spec, nodeScheme) {
		return Result{Kind: ResolvedBuiltin, Package: strings.TrimPrefix(spec, nodeScheme)}
	}

	if _, declared := cfg.Dependencies[name]; declared {
		if path, found := r.sibling(spec, cfg); found {
			return Result{Kind: Resolved, Path: path, Package: name}
		}

		return Result{Kind: ResolvedExternal, Package: name}
	}

	if _, ok := builtins[name]; ok {
		return Result{Kind: ResolvedBuiltin, Package: name}
	}

	if path, found := r.moduleLookup(spec, importer, cfg); found {
		// Installed but undeclared packages are unresolved.
		if inNodeModules(path) {
			return miss
		}

		return Result{Kind: Resolved, Path: path}
	}

	if path, found := r.sibling(spec, cfg); found {
		return Result{Kind: Resolved, Path: path}
	}

	return miss
}

// moduleLookup searches every module directory from the importer's directory up to the filesystem root.
func (r *Resolver) moduleLookup(spec, importer string, cfg *Config) (string, bool) {
	for _, moduleDir := range cfg.ModuleDirectory {
		if filepath.IsAbs(moduleDir) {
			if path, found := r.resolveFile(filepath.Join(moduleDir, spec), cfg.Extensions); found {
				return path, true
			}

			continue
		}

		for dir := filepath.Dir(importer); ; {
			if path, found := r.resolveFile(filepath.Join(dir, moduleDir, spec), cfg.Extensions); found {
				return path, true
			}

			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}

			dir = parent
		}
	}

	return "", false
}

// sibling resolves spec as a package directory next to the project root,
// the layout of a monorepo workspace.
func (r *Resolver) sibling(spec string, cfg *Config) (string, bool) {
	if cfg.RootDir == "" {
		return "", false
	}

	parent := filepath.Dir(cfg.RootDir)
	if parent == cfg.RootDir {
		return "", false
	}

	return r.resolveFile(filepath.Join(parent, spec), cfg.Extensions)
}

// resolveFile applies file resolution to base: the path itself, then each
// extension, then the directory's package.json main, then its index file.
func (r *Resolver) resolveFile(base string, extensions []string) (string, bool) {
	info, err := r.fs.Stat(base)
	if err == nil && info.Mode().IsRegular() {
		return base, true
	}

	for _, ext := range extensions {
		if r.isFile(base + ext) {
			return base + ext, true
		}
	}

	if err != nil || !info.IsDir() {
		return "", false
	}

	data, readErr := r.fs.ReadFile(filepath.Join(base, manifest.FileName))
	if readErr == nil {
		if main := manifest.MainField(data); main != "" {
			mainPath := filepath.Join(base, main)
			if mainPath != base {
				if path, found := r.resolveFile(mainPath, extensions); found {
					return path, true
				}
			}
		}
	}

	index := filepath.Join(base, indexName)
	for _, ext := range extensions {
		if r.isFile(index + ext) {
			return index + ext, true
		}
	}

	return "", false
}

func (r *Resolver) isFile(path string) bool {
	info, err := r.fs.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

// matchAlias returns the longest alias key matching spec on a segment boundary.
func matchAlias(spec string, aliases map[string][]string) (key string, targets []string, ok bool) {
	var bestRaw string

	for raw, candidates := range aliases {
		norm := normaliseAliasPath(raw)
		if norm == "" {
			continue
		}

		if spec != norm && !strings.HasPrefix(spec, norm+"/") {
			continue
		}

		// Keys that normalise to the same prefix are ordered by their raw text.
		if !ok || len(norm) > len(key) || (len(norm) == len(key) && raw < bestRaw) {
			key, targets, bestRaw, ok = norm, candidates, raw, true
		}
	}

	return key, targets, ok
}

// normaliseAliasPath drops a trailing "/*" or "/" from an alias key or target.
func normaliseAliasPath(p string) string {
	p = strings.TrimSuffix(p, "*")
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}

	return p
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// PackageName returns the package a bare specifier refers to: its first
// segment, or the first two for a scoped package.
func PackageName(spec string) string {
	spec = strings.TrimPrefix(spec, nodeScheme)
	parts := strings.SplitN(spec, "/", scopedParts+1)

	if strings.HasPrefix(spec, scopePrefix) && len(parts) >= scopedParts {
		return parts[0] + "/" + parts[1]
	}

	return parts[0]
}

func inNodeModules(path string) bool {
	return slices.Contains(strings.Split(filepath.ToSlash(path), "/"), nodeModules)
}

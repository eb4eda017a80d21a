package traverse

import (
	"maps"
	"slices"
)

// Import is one local dependency edge of a file.
type Import struct {
	Path      string
	Specifier string
	// TypeOnly is set when every reference to Path in the file is type-only.
	TypeOnly bool
}

// FileRecord is a reachable file and its local imports in first-discovery order.
type FileRecord struct {
	Path    string
	Imports []Import
}

// Stats counts where the data of each visited file came from.
type Stats struct {
	Files    int
	Parsed   int
	Cached   int
	Memoized int
}

// Result is everything reachable from one or more entry points.
type Result struct {
	Files map[string]*FileRecord
	// Modules are external package names.
	Modules map[string]struct{}
	// Unresolved maps raw specifiers to the files containing them.
	Unresolved map[string][]string
	Stats      Stats
}

// NewResult returns an empty result.
func NewResult() *Result {
	return &Result{
		Files:      make(map[string]*FileRecord),
		Modules:    make(map[string]struct{}),
		Unresolved: make(map[string][]string),
	}
}

// Paths returns the reachable file paths, sorted.
func (r *Result) Paths() []string {
	return slices.Sorted(maps.Keys(r.Files))
}

func (r *Result) addUnresolved(spec, importer string) {
	importers := r.Unresolved[spec]

	idx, found := slices.BinarySearch(importers, importer)
	if found {
		return
	}

	r.Unresolved[spec] = slices.Insert(importers, idx, importer)
}

// Merge folds results into a new one. Modules and unresolved specifiers are
// unioned; files with the same path have their imports unioned in first-seen
// order. The inputs are not modified.
func Merge(results ...*Result) *Result {
	out := NewResult()

	for _, res := range results {
		if res == nil {
			continue
		}

		for name := range res.Modules {
			out.Modules[name] = struct{}{}
		}

		for spec, importers := range res.Unresolved {
			if _, ok := out.Unresolved[spec]; !ok {
				out.Unresolved[spec] = []string{}
			}

			for _, importer := range importers {
				out.addUnresolved(spec, importer)
			}
		}

		for path, rec := range res.Files {
			merged, ok := out.Files[path]
			if !ok {
				merged = &FileRecord{Path: path}
				out.Files[path] = merged
			}

			merged.Imports = unionImports(merged.Imports, rec.Imports)
		}

		out.Stats.Parsed += res.Stats.Parsed
		out.Stats.Cached += res.Stats.Cached
		out.Stats.Memoized += res.Stats.Memoized
	}

	out.Stats.Files = len(out.Files)

	return out
}

func unionImports(dst, src []Import) []Import {
	for _, imp := range src {
		idx := slices.IndexFunc(dst, func(existing Import) bool { return existing.Path == imp.Path })
		if idx < 0 {
			dst = append(dst, imp)

			continue
		}

		dst[idx].TypeOnly = dst[idx].TypeOnly && imp.TypeOnly
	}

	return dst
}

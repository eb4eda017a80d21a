// Package report turns a merged traversal result into findings.
package report

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/mattn/go-zglob"

	"github.com/Sumatoshi-tech/unimported/pkg/traverse"
)

// Unresolved is a specifier that resolved nowhere and the files importing it.
type Unresolved struct {
	Specifier string   `json:"specifier" yaml:"specifier"`
	Importers []string `json:"importers" yaml:"importers"`
}

// Summary describes the run that produced a report.
type Summary struct {
	Root      string        `json:"root" yaml:"root"`
	Revision  string        `json:"revision,omitempty" yaml:"revision,omitempty"`
	Entries   []string      `json:"entries" yaml:"entries"`
	Scanned   int           `json:"scanned" yaml:"scanned"`
	Reachable int           `json:"reachable" yaml:"reachable"`
	Parsed    int           `json:"parsed" yaml:"parsed"`
	Cached    int           `json:"cached" yaml:"cached"`
	Memoized  int           `json:"memoized" yaml:"memoized"`
	Retries   int           `json:"retries" yaml:"retries"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// Report holds the findings of one scan. Paths are relative to the project root.
type Report struct {
	UnimportedFiles    []string     `json:"unimportedFiles" yaml:"unimportedFiles"`
	UnresolvedImports  []Unresolved `json:"unresolvedImports" yaml:"unresolvedImports"`
	UnusedDependencies []string     `json:"unusedDependencies" yaml:"unusedDependencies"`
	Summary            Summary      `json:"summary" yaml:"summary"`
}

// Empty reports whether nothing was found.
func (r *Report) Empty() bool {
	return len(r.UnimportedFiles) == 0 && len(r.UnresolvedImports) == 0 && len(r.UnusedDependencies) == 0
}

// Input is everything Compute needs.
type Input struct {
	Root   string
	Result *traverse.Result
	// Files are the enumerated candidate files, absolute.
	Files []string
	// Entries are the absolute entry files.
	Entries []string
	// Dependencies are the declared packages checked for use.
	Dependencies map[string]struct{}
	// IgnoreUnimported holds globs matched against root-relative paths.
	IgnoreUnimported []string
	IgnoreUnresolved []string
	IgnoreUnused     []string
	// StrictTypeImports treats files reachable only through type-only
	// imports as unimported.
	StrictTypeImports bool
}

// Compute derives the findings. The result is sorted.
func Compute(in Input) (*Report, error) {
	res := in.Result
	if res == nil {
		res = traverse.NewResult()
	}

	reachable := reachableFiles(res, in.Entries, in.StrictTypeImports)

	unimported := []string{}

	for _, file := range in.Files {
		if _, ok := reachable[file]; ok {
			continue
		}

		rel := relative(in.Root, file)

		ignored, err := matchAny(in.IgnoreUnimported, rel)
		if err != nil {
			return nil, err
		}

		if !ignored {
			unimported = append(unimported, rel)
		}
	}

	slices.Sort(unimported)

	unresolved := []Unresolved{}

	for _, spec := range slices.Sorted(maps.Keys(res.Unresolved)) {
		if slices.Contains(in.IgnoreUnresolved, spec) {
			continue
		}

		importers := make([]string, 0, len(res.Unresolved[spec]))
		for _, importer := range res.Unresolved[spec] {
			importers = append(importers, relative(in.Root, importer))
		}

		slices.Sort(importers)
		unresolved = append(unresolved, Unresolved{Specifier: spec, Importers: importers})
	}

	unused := []string{}

	for name := range in.Dependencies {
		if _, used := res.Modules[name]; used || slices.Contains(in.IgnoreUnused, name) {
			continue
		}

		unused = append(unused, name)
	}

	slices.Sort(unused)

	entries := make([]string, 0, len(in.Entries))
	for _, entry := range in.Entries {
		entries = append(entries, relative(in.Root, entry))
	}

	return &Report{
		UnimportedFiles:    unimported,
		UnresolvedImports:  unresolved,
		UnusedDependencies: unused,
		Summary: Summary{
			Root:      in.Root,
			Entries:   entries,
			Scanned:   len(in.Files),
			Reachable: len(reachable),
			Parsed:    res.Stats.Parsed,
			Cached:    res.Stats.Cached,
			Memoized:  res.Stats.Memoized,
		},
	}, nil
}

// reachableFiles returns the traversed files, or in strict mode only those
// reachable from an entry through value imports.
func reachableFiles(res *traverse.Result, entries []string, strict bool) map[string]struct{} {
	out := make(map[string]struct{}, len(res.Files))

	if !strict {
		for path := range res.Files {
			out[path] = struct{}{}
		}

		return out
	}

	queue := make([]string, 0, len(entries))

	for _, entry := range entries {
		if _, ok := res.Files[entry]; ok {
			out[entry] = struct{}{}
			queue = append(queue, entry)
		}
	}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		for _, imp := range res.Files[path].Imports {
			if imp.TypeOnly {
				continue
			}

			if _, seen := out[imp.Path]; seen {
				continue
			}

			if _, ok := res.Files[imp.Path]; !ok {
				continue
			}

			out[imp.Path] = struct{}{}
			queue = append(queue, imp.Path)
		}
	}

	return out
}

func matchAny(patterns []string, rel string) (bool, error) {
	for _, pattern := range patterns {
		ok, err := zglob.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("ignore pattern %q: %w", pattern, err)
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

func relative(root, path string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}

	return filepath.ToSlash(rel)
}

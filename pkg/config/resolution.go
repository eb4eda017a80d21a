package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/unimported/pkg/manifest"
	"github.com/Sumatoshi-tech/unimported/pkg/resolve"
)

// ErrNoEntry is returned when no entry point is configured or discoverable.
var ErrNoEntry = errors.New("no entry point found")

// defaultEntryStems are tried, with every extension, when nothing names an entry.
var defaultEntryStems = []string{"index", "src/index", "src/main", "main"}

// Entry is one traversal root with its per-entry resolution override.
type Entry struct {
	File     string
	Label    string
	Override resolve.Override
}

// Name returns the label, or the file when no label is set.
func (e Entry) Name() string {
	if e.Label != "" {
		return e.Label
	}

	return e.File
}

// Plan is the resolved scan setup of one project.
type Plan struct {
	Root    string
	Global  *resolve.Config
	Entries []Entry
}

// BuildPlan combines the project file, tsconfig paths and the manifest into
// the global resolution config and the entry list. m may be nil.
func BuildPlan(root string, project *Project, m *manifest.Manifest) (*Plan, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}

	global := &resolve.Config{
		Extensions:      normaliseExtensions(project.Extensions),
		Aliases:         project.Aliases,
		ModuleDirectory: project.ModuleDirectory,
		RootDir:         absUnder(root, project.RootDir),
		Dependencies:    map[string]struct{}{},
	}

	if len(global.Extensions) == 0 {
		global.Extensions = DefaultExtensions
	}

	if m != nil {
		global.Dependencies = m.Declared()
	}

	compiler, err := loadCompilerPaths(root)
	if err != nil {
		return nil, err
	}

	if len(global.Aliases) == 0 && len(compiler.Aliases) > 0 {
		global.Aliases = compiler.Aliases
	}

	if len(global.ModuleDirectory) == 0 {
		global.ModuleDirectory = DefaultModuleDirectory

		if compiler.BaseURL != "" {
			global.ModuleDirectory = append([]string{absUnder(root, compiler.BaseURL)}, DefaultModuleDirectory...)
		}
	}

	entries := make([]Entry, 0, len(project.Entry))

	for _, ec := range project.Entry {
		entries = append(entries, Entry{
			File:  absUnder(root, ec.File),
			Label: ec.Label,
			Override: resolve.Override{
				Extensions:      normaliseExtensions(ec.Extensions),
				Aliases:         ec.Aliases,
				ModuleDirectory: ec.ModuleDirectory,
				RootDir:         absOrEmpty(root, ec.RootDir),
			},
		})
	}

	if len(entries) == 0 {
		file, found := discoverEntry(root, m, global.Extensions)
		if !found {
			return nil, fmt.Errorf("%w in %s", ErrNoEntry, root)
		}

		entries = append(entries, Entry{File: file})
	}

	return &Plan{Root: root, Global: global, Entries: entries}, nil
}

// discoverEntry picks package.json source, then main, then the first
// existing conventional index file.
func discoverEntry(root string, m *manifest.Manifest, extensions []string) (string, bool) {
	var candidates []string

	if m != nil {
		for _, field := range []string{m.Source, m.Main} {
			if field != "" {
				candidates = append(candidates, absUnder(root, field))
			}
		}
	}

	for _, candidate := range candidates {
		if isRegular(candidate) {
			return candidate, true
		}
	}

	for _, stem := range defaultEntryStems {
		base := filepath.Join(root, filepath.FromSlash(stem))
		for _, ext := range extensions {
			if isRegular(base + ext) {
				return base + ext, true
			}
		}
	}

	return "", false
}

func isRegular(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

func normaliseExtensions(exts []string) []string {
	if exts == nil {
		return nil
	}

	out := make([]string, 0, len(exts))

	for _, ext := range exts {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		out = append(out, ext)
	}

	return out
}

func absUnder(root, p string) string {
	if p == "" {
		return root
	}

	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(root, filepath.FromSlash(p))
}

func absOrEmpty(root, p string) string {
	if p == "" {
		return ""
	}

	return absUnder(root, p)
}

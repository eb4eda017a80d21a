// Package walker enumerates the candidate source files of a project.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattn/go-zglob"
	"github.com/src-d/enry/v2"
)

// ErrBadPattern is returned for an ignore glob that cannot be compiled.
var ErrBadPattern = errors.New("bad ignore pattern")

const recursiveSuffix = "/**"

// Options configures a walk.
type Options struct {
	// Root is the project root; ignore globs match paths relative to it.
	Root string
	// Dirs restricts the walk to these directories below Root. Empty means Root.
	Dirs []string
	// Extensions lists the accepted file extensions including the dot.
	Extensions []string
	// Ignore holds glob patterns; "**" and "{a,b}" are supported.
	Ignore []string
	// SkipVendored drops paths that look like vendored or generated code.
	SkipVendored bool
}

type walk struct {
	root       string
	extensions map[string]struct{}
	ignore     []string
	prune      []string
	vendored   bool
	seen       map[string]struct{}
}

// Walk returns the absolute paths of all matching files, sorted.
func Walk(ctx context.Context, opts Options) ([]string, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("walk root: %w", err)
	}

	w := &walk{
		root:       root,
		extensions: make(map[string]struct{}, len(opts.Extensions)),
		ignore:     opts.Ignore,
		vendored:   opts.SkipVendored,
		seen:       make(map[string]struct{}),
	}

	for _, ext := range opts.Extensions {
		w.extensions[ext] = struct{}{}
	}

	for _, pattern := range opts.Ignore {
		_, matchErr := zglob.Match(pattern, "probe")
		if matchErr != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrBadPattern, pattern, matchErr)
		}

		if dir, ok := strings.CutSuffix(pattern, recursiveSuffix); ok {
			w.prune = append(w.prune, dir)
		}
	}

	dirs := opts.Dirs
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	for _, dir := range dirs {
		start := dir
		if !filepath.IsAbs(start) {
			start = filepath.Join(root, filepath.FromSlash(dir))
		}

		err = filepath.WalkDir(start, func(path string, entry os.DirEntry, walkErr error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			return w.visit(path, entry, walkErr)
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", start, err)
		}
	}

	files := make([]string, 0, len(w.seen))
	for path := range w.seen {
		files = append(files, path)
	}

	slices.Sort(files)

	return files, nil
}

func (w *walk) visit(path string, entry os.DirEntry, walkErr error) error {
	if walkErr != nil {
		if errors.Is(walkErr, fs.ErrPermission) || errors.Is(walkErr, fs.ErrNotExist) {
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		return walkErr
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return fmt.Errorf("relative path of %s: %w", path, err)
	}

	rel = filepath.ToSlash(rel)

	if entry.IsDir() {
		if rel != "." && w.skipDir(entry.Name(), rel) {
			return filepath.SkipDir
		}

		return nil
	}

	if !entry.Type().IsRegular() {
		return nil
	}

	if _, ok := w.extensions[filepath.Ext(path)]; !ok {
		return nil
	}

	if w.ignored(rel) || (w.vendored && enry.IsVendor(rel)) {
		return nil
	}

	w.seen[path] = struct{}{}

	return nil
}

func (w *walk) skipDir(name, rel string) bool {
	if name == ".git" {
		return true
	}

	if w.vendored && enry.IsVendor(rel+"/") {
		return true
	}

	for _, pattern := range w.prune {
		if ok, _ := zglob.Match(pattern, rel); ok {
			return true
		}
	}

	return false
}

func (w *walk) ignored(rel string) bool {
	for _, pattern := range w.ignore {
		if ok, _ := zglob.Match(pattern, rel); ok {
			return true
		}
	}

	return false
}

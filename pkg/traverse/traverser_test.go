package traverse_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/unimported/pkg/cache"
	"github.com/Sumatoshi-tech/unimported/pkg/resolve"
	"github.com/Sumatoshi-tech/unimported/pkg/specifier"
	"github.com/Sumatoshi-tech/unimported/pkg/traverse"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

func newTraverser(t *testing.T) (*traverse.Traverser, *cache.Cache) {
	t.Helper()

	c, err := cache.Open(cache.Options{})
	require.NoError(t, err)

	return traverse.New(traverse.Options{Cache: c, Concurrency: 4}), c
}

func config(root string, deps ...string) *resolve.Config {
	declared := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		declared[d] = struct{}{}
	}

	return &resolve.Config{
		Extensions:      []string{".js", ".jsx", ".ts", ".tsx"},
		ModuleDirectory: []string{"node_modules"},
		RootDir:         root,
		Dependencies:    declared,
	}
}

func TestTraverse_IndexFooRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.js": "import foo from './foo';\nconsole.log(foo);\n",
		"foo.js":   "export default 1;\n",
		"bar.js":   "export default 2;\n",
	})

	tr, _ := newTraverser(t)

	res, err := tr.Traverse(context.Background(), filepath.Join(root, "index.js"), config(root))
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "foo.js"), filepath.Join(root, "index.js")}, res.Paths())
	assert.Equal(t, []traverse.Import{{Path: filepath.Join(root, "foo.js"), Specifier: "./foo"}},
		res.Files[filepath.Join(root, "index.js")].Imports)
	assert.Empty(t, res.Files[filepath.Join(root, "foo.js")].Imports)
	assert.Empty(t, res.Unresolved)
	assert.Equal(t, 2, res.Stats.Files)
	assert.Equal(t, 2, res.Stats.Parsed)
}

func TestTraverse_CyclesVisitedOnce(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.js": "import './b';\nimport './c';\n",
		"b.js": "import './a';\nimport './c';\n",
		"c.js": "require('./a');\n",
	})

	tr, c := newTraverser(t)

	res, err := tr.Traverse(context.Background(), filepath.Join(root, "a.js"), config(root))
	require.NoError(t, err)

	assert.Len(t, res.Files, 3)
	assert.Equal(t, int64(3), c.Stats().Stores)
}

func TestTraverse_DeduplicatesImports(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.ts": "import type { A } from './types';\n" +
			"import { b } from './b';\n" +
			"const again = require('./b');\n" +
			"import { value } from './types';\n" +
			"import type { Only } from './only';\n",
		"types.ts": "export type A = string; export const value = 1;\n",
		"b.ts":     "export const b = 1;\n",
		"only.ts":  "export type Only = number;\n",
	})

	tr, _ := newTraverser(t)

	res, err := tr.Traverse(context.Background(), filepath.Join(root, "index.ts"), config(root))
	require.NoError(t, err)

	assert.Equal(t, []traverse.Import{
		{Path: filepath.Join(root, "types.ts"), Specifier: "./types", TypeOnly: false},
		{Path: filepath.Join(root, "b.ts"), Specifier: "./b"},
		{Path: filepath.Join(root, "only.ts"), Specifier: "./only", TypeOnly: true},
	}, res.Files[filepath.Join(root, "index.ts")].Imports)
}

func TestTraverse_ModulesUnresolvedAndAssets(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.js": "import dep from '@test/dependency';\n" +
			"import fs from 'fs';\n" +
			"import './style.css';\n" +
			"import missing from './missing';\n" +
			"import ghost from 'ghost-package';\n",
		"style.css": "body { color: red; }\n",
	})

	tr, _ := newTraverser(t)

	res, err := tr.Traverse(context.Background(), filepath.Join(root, "index.js"), config(root, "@test/dependency"))
	require.NoError(t, err)

	assert.Equal(t, map[string]struct{}{"@test/dependency": {}}, res.Modules)
	assert.Equal(t, map[string][]string{
		"./missing":     {filepath.Join(root, "index.js")},
		"ghost-package": {filepath.Join(root, "index.js")},
	}, res.Unresolved)

	css := res.Files[filepath.Join(root, "style.css")]
	require.NotNil(t, css)
	assert.Empty(t, css.Imports)

	for path := range res.Files {
		assert.NotContains(t, path, "@test/dependency")
	}
}

func TestTraverse_WarmCacheIsIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.js": "import './a';\nimport 'react';\nimport './nope';\n",
		"a.js":     "export * from './b';\n",
		"b.js":     "",
	})

	tr, _ := newTraverser(t)
	cfg := config(root, "react")
	entry := filepath.Join(root, "index.js")

	cold, err := tr.Traverse(context.Background(), entry, cfg)
	require.NoError(t, err)

	warm, err := tr.Traverse(context.Background(), entry, cfg)
	require.NoError(t, err)

	assert.Equal(t, cold.Files, warm.Files)
	assert.Equal(t, cold.Modules, warm.Modules)
	assert.Equal(t, cold.Unresolved, warm.Unresolved)
	assert.Equal(t, 3, cold.Stats.Parsed)
	assert.Equal(t, 0, warm.Stats.Parsed)
	assert.Equal(t, 3, warm.Stats.Memoized)
}

func TestTraverse_DeletedDependencyInvalidatesCache(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.js": "import './foo';\n",
		"foo.js":   "",
	})

	tr, c := newTraverser(t)
	cfg := config(root)
	entry := filepath.Join(root, "index.js")

	_, err := tr.Traverse(context.Background(), entry, cfg)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "foo.js")))

	_, err = tr.Traverse(context.Background(), entry, cfg)

	var invalid *cache.InvalidCacheError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, filepath.Join(root, "foo.js"), invalid.Missing)

	c.PurgeAll()

	res, err := tr.Traverse(context.Background(), entry, cfg)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"./foo": {entry}}, res.Unresolved)
	assert.Len(t, res.Files, 1)
}

func TestTraverse_NewFileSatisfiesUnresolved(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"index.js": "import './later';\n"})

	tr, _ := newTraverser(t)
	cfg := config(root)
	entry := filepath.Join(root, "index.js")

	res, err := tr.Traverse(context.Background(), entry, cfg)
	require.NoError(t, err)
	assert.Contains(t, res.Unresolved, "./later")

	writeTree(t, root, map[string]string{"later.js": ""})

	res, err = tr.Traverse(context.Background(), entry, cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Unresolved)
	assert.Contains(t, res.Files, filepath.Join(root, "later.js"))
}

func TestTraverse_NewFileTakesPriorityOverMemo(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.js":       "import u from './utils';\n",
		"utils/index.js": "",
	})

	tr, _ := newTraverser(t)
	cfg := config(root)
	entry := filepath.Join(root, "index.js")

	cold, err := tr.Traverse(context.Background(), entry, cfg)
	require.NoError(t, err)
	assert.Contains(t, cold.Files, filepath.Join(root, "utils", "index.js"))

	writeTree(t, root, map[string]string{"utils.js": ""})

	warm, err := tr.Traverse(context.Background(), entry, cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "index.js"), filepath.Join(root, "utils.js")}, warm.Paths())
	assert.Equal(t, 1, warm.Stats.Parsed)
	assert.Equal(t, 1, warm.Stats.Cached)

	again, err := tr.Traverse(context.Background(), entry, cfg)
	require.NoError(t, err)
	assert.Equal(t, warm.Paths(), again.Paths())
	assert.Equal(t, 2, again.Stats.Memoized)
}

func TestTraverse_EntryOverrideConfigsAreIndependent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"client/index.js":  "import '@app/config';\n",
		"client/config.js": "",
		"server/config.js": "",
	})

	tr, _ := newTraverser(t)
	global := config(root)
	global.Aliases = map[string][]string{"@app": {"./client"}}
	override := global.WithOverride(resolve.Override{Aliases: map[string][]string{"@app": {"./server"}}})
	entry := filepath.Join(root, "client", "index.js")

	first, err := tr.Traverse(context.Background(), entry, global)
	require.NoError(t, err)
	assert.Contains(t, first.Files, filepath.Join(root, "client", "config.js"))

	second, err := tr.Traverse(context.Background(), entry, override)
	require.NoError(t, err)
	assert.Contains(t, second.Files, filepath.Join(root, "server", "config.js"))
	assert.NotContains(t, second.Files, filepath.Join(root, "client", "config.js"))
}

func TestTraverse_EntryNotFound(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	tr, _ := newTraverser(t)

	_, err := tr.Traverse(context.Background(), filepath.Join(root, "nope.js"), config(root))
	require.ErrorIs(t, err, traverse.ErrEntryNotFound)
}

func TestTraverse_ParseErrorPropagates(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.js":  "import './broken';\n",
		"broken.js": "export const = ;\n",
	})

	tr, _ := newTraverser(t)

	_, err := tr.Traverse(context.Background(), filepath.Join(root, "index.js"), config(root))

	var parseErr *specifier.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, filepath.Join(root, "broken.js"), parseErr.Path)
}

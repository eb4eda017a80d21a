package walker_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/unimported/pkg/walker"
)

func writeTree(t *testing.T, files ...string) string {
	t.Helper()

	root := t.TempDir()

	for _, rel := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, nil, 0o600))
	}

	return root
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()

	out := make([]string, 0, len(paths))

	for _, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)

		out = append(out, filepath.ToSlash(r))
	}

	return out
}

func TestWalk(t *testing.T) {
	t.Parallel()

	root := writeTree(t,
		"src/index.js",
		"src/b.ts",
		"src/a.tsx",
		"src/styles.css",
		"src/a.test.ts",
		"src/__tests__/x.js",
		"src/types.d.ts",
		"node_modules/react/index.js",
		".git/hooks/pre-commit.js",
	)

	files, err := walker.Walk(context.Background(), walker.Options{
		Root:       root,
		Extensions: []string{".js", ".ts", ".tsx"},
		Ignore: []string{
			"**/node_modules/**",
			"**/*.{test,spec}.{js,ts}",
			"**/__tests__/**",
			"**/*.d.ts",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"src/a.tsx", "src/b.ts", "src/index.js"}, rel(t, root, files))
}

func TestWalk_Dirs(t *testing.T) {
	t.Parallel()

	root := writeTree(t, "src/index.js", "lib/util.js", "scripts/build.js")

	files, err := walker.Walk(context.Background(), walker.Options{
		Root:       root,
		Dirs:       []string{"src", "lib", "src"},
		Extensions: []string{".js"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"lib/util.js", "src/index.js"}, rel(t, root, files))
}

func TestWalk_SkipVendored(t *testing.T) {
	t.Parallel()

	root := writeTree(t, "src/index.js", "vendor/lib.js", "src/jquery.min.js")

	opts := walker.Options{Root: root, Extensions: []string{".js"}}

	all, err := walker.Walk(context.Background(), opts)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	opts.SkipVendored = true

	files, err := walker.Walk(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/index.js"}, rel(t, root, files))
}

func TestWalk_MissingDirIgnored(t *testing.T) {
	t.Parallel()

	root := writeTree(t, "index.js")

	files, err := walker.Walk(context.Background(), walker.Options{
		Root:       root,
		Dirs:       []string{".", "does-not-exist"},
		Extensions: []string{".js"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"index.js"}, rel(t, root, files))
}

func TestWalk_Cancelled(t *testing.T) {
	t.Parallel()

	root := writeTree(t, "index.js")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := walker.Walk(ctx, walker.Options{Root: root, Extensions: []string{".js"}})
	require.ErrorIs(t, err, context.Canceled)
}

package resolve_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/unimported/pkg/resolve"
)

var defaultExts = []string{".js", ".jsx", ".ts", ".tsx"}

// writeTree creates files (relative path -> content) under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

func newConfig(root string) *resolve.Config {
	return &resolve.Config{
		Extensions:      defaultExts,
		ModuleDirectory: []string{"node_modules"},
		RootDir:         root,
		Dependencies:    map[string]struct{}{},
	}
}

func TestResolve_Relative(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/index.js":       "",
		"src/foo.ts":         "",
		"src/foo.js":         "",
		"src/util/index.tsx": "",
		"src/data.json":      "",
		"lib/package.json":   `{"main": "./dist/entry"}`,
		"lib/dist/entry.js":  "",
		"lib/index.js":       "",
	})

	r := resolve.New(nil)
	cfg := newConfig(root)
	importer := filepath.Join(root, "src", "index.js")

	tests := []struct {
		spec string
		want string
	}{
		{"./foo", "src/foo.js"},
		{"./foo.ts", "src/foo.ts"},
		{"./util", "src/util/index.tsx"},
		{"./data.json", "src/data.json"},
		{"../lib", "lib/dist/entry.js"},
		{".", "src/index.js"},
		{"/src/foo", "src/foo.js"},
	}

	for _, tt := range tests {
		got := r.Resolve(tt.spec, importer, cfg)
		require.Equal(t, resolve.Resolved, got.Kind, tt.spec)
		assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), got.Path, tt.spec)
	}
}

func TestResolve_ExtensionOrder(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.js": "", "b.ts": "", "b.js": ""})

	cfg := newConfig(root)
	cfg.Extensions = []string{".ts", ".js"}

	got := resolve.New(nil).Resolve("./b", filepath.Join(root, "a.js"), cfg)
	assert.Equal(t, filepath.Join(root, "b.ts"), got.Path)
}

func TestResolve_MissingIsUnresolved(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.js": ""})

	got := resolve.New(nil).Resolve("./nope", filepath.Join(root, "a.js"), newConfig(root))
	assert.Equal(t, resolve.Unresolved, got.Kind)
	assert.Equal(t, "./nope", got.Specifier)
	assert.Empty(t, got.Path)
}

func TestResolve_Alias(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/index.js":              "",
		"src/components/Button.tsx": "",
		"src/root.js":               "",
		"special/components/x.js":   "",
		"fallback/only.js":          "",
	})

	cfg := newConfig(root)
	cfg.Aliases = map[string][]string{
		"@root":            {"./src/root.js"},
		"@/*":              {"src/*"},
		"@/components/":    {"special/components/"},
		"#":                {"missing", "fallback"},
		"@rootextra/thing": {"nowhere"},
	}

	r := resolve.New(nil)
	importer := filepath.Join(root, "src", "index.js")

	got := r.Resolve("@root", importer, cfg)
	assert.Equal(t, filepath.Join(root, "src", "root.js"), got.Path)

	// Longest key wins.
	got = r.Resolve("@/components/x", importer, cfg)
	assert.Equal(t, filepath.Join(root, "special", "components", "x.js"), got.Path)

	// The longest key is final even when none of its candidates exist.
	got = r.Resolve("@/components/Button", importer, cfg)
	assert.Equal(t, resolve.Unresolved, got.Kind)

	// Candidates are tried in order.
	got = r.Resolve("#/only", importer, cfg)
	assert.Equal(t, filepath.Join(root, "fallback", "only.js"), got.Path)

	// Segment boundaries are respected.
	got = r.Resolve("@rootx", importer, cfg)
	assert.Equal(t, resolve.Unresolved, got.Kind)
}

func TestResolve_AliasMissDoesNotFallThrough(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.js":             "",
		"node_modules/ui/x.js": "",
	})

	cfg := newConfig(root)
	cfg.Aliases = map[string][]string{"ui": {"missing"}}
	cfg.Dependencies = map[string]struct{}{"ui": {}}

	r := resolve.New(nil)
	importer := filepath.Join(root, "index.js")

	assert.Equal(t, resolve.Result{Kind: resolve.Unresolved, Specifier: "ui/x"}, r.Resolve("ui/x", importer, cfg))

	delete(cfg.Aliases, "ui")
	assert.Equal(t, resolve.Result{Kind: resolve.ResolvedExternal, Package: "ui"}, r.Resolve("ui/x", importer, cfg))
}

func TestResolve_EntryOverride(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"client/index.js":     "",
		"client/config.js":    "",
		"server/index.js":     "",
		"server/config.js":    "",
		"shared/constants.js": "",
	})

	global := newConfig(root)
	global.Aliases = map[string][]string{"@app": {"./client"}, "@shared": {"./shared"}}

	serverCfg := global.WithOverride(resolve.Override{
		Aliases: map[string][]string{"@app": {"./server"}},
	})

	r := resolve.New(nil)

	got := r.Resolve("@app/config", filepath.Join(root, "client", "index.js"), global)
	assert.Equal(t, filepath.Join(root, "client", "config.js"), got.Path)

	got = r.Resolve("@app/config", filepath.Join(root, "server", "index.js"), serverCfg)
	assert.Equal(t, filepath.Join(root, "server", "config.js"), got.Path)

	// Override replaces, never merges.
	got = r.Resolve("@shared/constants", filepath.Join(root, "server", "index.js"), serverCfg)
	assert.Equal(t, resolve.Unresolved, got.Kind)

	assert.NotEqual(t, global.Digest(), serverCfg.Digest())
	assert.Len(t, global.Aliases, 2)
}

func TestResolve_DeclaredDependencyIsExternal(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"index.js": ""})

	cfg := newConfig(root)
	cfg.Dependencies = map[string]struct{}{"@test/dependency": {}, "lodash": {}}

	r := resolve.New(nil)
	importer := filepath.Join(root, "index.js")

	got := r.Resolve("@test/dependency", importer, cfg)
	assert.Equal(t, resolve.Result{Kind: resolve.ResolvedExternal, Package: "@test/dependency"}, got)

	got = r.Resolve("lodash/fp/get", importer, cfg)
	assert.Equal(t, resolve.Result{Kind: resolve.ResolvedExternal, Package: "lodash"}, got)
}

func TestResolve_Builtins(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfg := newConfig(root)
	r := resolve.New(nil)
	importer := filepath.Join(root, "index.js")

	assert.Equal(t, resolve.ResolvedBuiltin, r.Resolve("fs", importer, cfg).Kind)
	assert.Equal(t, resolve.ResolvedBuiltin, r.Resolve("node:path", importer, cfg).Kind)
	assert.Equal(t, "fs", r.Resolve("fs/promises", importer, cfg).Package)
}

func TestResolve_NodeModulesUndeclared(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/deep/index.js":                  "",
		"node_modules/left-pad/index.js":     "",
		"node_modules/left-pad/package.json": `{"name":"left-pad"}`,
	})

	importer := filepath.Join(root, "src", "deep", "index.js")
	cfg := newConfig(root)

	got := resolve.New(nil).Resolve("left-pad", importer, cfg)
	assert.Equal(t, resolve.Result{Kind: resolve.Unresolved, Specifier: "left-pad"}, got)

	cfg.Dependencies = map[string]struct{}{"left-pad": {}}

	got = resolve.New(nil).Resolve("left-pad", importer, cfg)
	assert.Equal(t, resolve.Result{Kind: resolve.ResolvedExternal, Package: "left-pad"}, got)
}

func TestResolve_ModuleDirectoryLocal(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/index.js":             "",
		"src/components/Header.js": "",
	})

	cfg := newConfig(root)
	cfg.ModuleDirectory = []string{"node_modules", "src"}

	got := resolve.New(nil).Resolve("components/Header", filepath.Join(root, "src", "index.js"), cfg)
	require.Equal(t, resolve.Resolved, got.Kind)
	assert.Equal(t, filepath.Join(root, "src", "components", "Header.js"), got.Path)
}

func TestResolve_MonorepoSibling(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	writeTree(t, workspace, map[string]string{
		"A/index.js": "",
		"B/foo.js":   "",
	})

	cfg := newConfig(filepath.Join(workspace, "A"))

	got := resolve.New(nil).Resolve("B/foo", filepath.Join(workspace, "A", "index.js"), cfg)
	require.Equal(t, resolve.Resolved, got.Kind)
	assert.Equal(t, filepath.Join(workspace, "B", "foo.js"), got.Path)

	assert.Empty(t, got.Package)

	got = resolve.New(nil).Resolve("C/foo", filepath.Join(workspace, "A", "index.js"), cfg)
	assert.Equal(t, resolve.Unresolved, got.Kind)
}

func TestResolve_DeclaredSiblingKeepsPackage(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	writeTree(t, workspace, map[string]string{
		"app/index.js":    "",
		"shared/index.js": "",
	})

	cfg := newConfig(filepath.Join(workspace, "app"))
	cfg.Dependencies = map[string]struct{}{"shared": {}}

	got := resolve.New(nil).Resolve("shared", filepath.Join(workspace, "app", "index.js"), cfg)
	require.Equal(t, resolve.Resolved, got.Kind)
	assert.Equal(t, filepath.Join(workspace, "shared", "index.js"), got.Path)
	assert.Equal(t, "shared", got.Package)
}

func TestPackageName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "react", resolve.PackageName("react"))
	assert.Equal(t, "react-dom", resolve.PackageName("react-dom/client"))
	assert.Equal(t, "@scope/pkg", resolve.PackageName("@scope/pkg/deep/file"))
	assert.Equal(t, "fs", resolve.PackageName("node:fs"))
}

func TestWithOverride_ZeroKeepsGlobal(t *testing.T) {
	t.Parallel()

	global := newConfig("/project")
	cfg := global.WithOverride(resolve.Override{})

	assert.True(t, resolve.Override{}.IsZero())
	assert.Equal(t, global, cfg)
	assert.NotSame(t, global, cfg)
	assert.Equal(t, global.Digest(), cfg.Digest())
}

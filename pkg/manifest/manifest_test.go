package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/unimported/pkg/manifest"
)

const sample = `{
  "name": "app",
  "main": "lib/index.js",
  "source": "src/index.ts",
  "dependencies": {"react": "^18.0.0", "@test/dependency": "1.0.0"},
  "peerDependencies": {"react-dom": "^18.0.0"},
  "devDependencies": {"jest": "^29.0.0", "@types/node": "^20.0.0"}
}`

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(sample), 0o600))

	m, err := manifest.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "app", m.Name)
	assert.Equal(t, "lib/index.js", m.Main)
	assert.Equal(t, "src/index.ts", m.Source)
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := manifest.Load(t.TempDir())
	require.ErrorIs(t, err, manifest.ErrNotFound)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	_, err := manifest.Parse([]byte("{"))
	require.Error(t, err)
}

func TestDeclaredAndRuntime(t *testing.T) {
	t.Parallel()

	m, err := manifest.Parse([]byte(sample))
	require.NoError(t, err)

	declared := m.Declared()
	assert.Len(t, declared, 5)
	assert.Contains(t, declared, "jest")
	assert.Contains(t, declared, "@types/node")

	runtime := m.Runtime(false)
	assert.Equal(t, map[string]struct{}{
		"react": {}, "@test/dependency": {}, "react-dom": {},
	}, runtime)

	withDev := m.Runtime(true)
	assert.Contains(t, withDev, "jest")
	assert.NotContains(t, withDev, "@types/node")
}

func TestMainField(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "lib/index.js", manifest.MainField([]byte(sample)))
	assert.Empty(t, manifest.MainField([]byte(`{"name":"x"}`)))
	assert.Empty(t, manifest.MainField([]byte("not json")))
}

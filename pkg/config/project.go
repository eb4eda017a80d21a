package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ProjectFileName is the per-project configuration file looked up in the project root.
const ProjectFileName = ".unimportedrc.json"

//go:embed unimportedrc.schema.json
var projectSchema []byte

// ErrInvalidProject is returned when the project file does not match its schema.
var ErrInvalidProject = errors.New("invalid project configuration")

// Default project values.
var (
	DefaultExtensions = []string{
		".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".mts", ".cts", ".vue", ".svelte",
	}
	DefaultModuleDirectory = []string{"node_modules"}
	DefaultIgnorePatterns  = []string{
		"**/node_modules/**",
		"**/*.{test,spec,tests,stories}.{js,jsx,ts,tsx,mjs,cjs}",
		"**/{test,tests,__tests__,__mocks__,stories,.storybook}/**",
		"**/*.d.ts",
	}
)

// Aliases maps a specifier prefix to replacement candidates. In JSON a
// single candidate may be written as a plain string.
type Aliases map[string][]string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Aliases) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("aliases: %w", err)
	}

	out := make(Aliases, len(raw))

	for key, value := range raw {
		var single string
		if json.Unmarshal(value, &single) == nil {
			out[key] = []string{single}

			continue
		}

		var many []string

		err = json.Unmarshal(value, &many)
		if err != nil {
			return fmt.Errorf("alias %q: %w", key, err)
		}

		out[key] = many
	}

	*a = out

	return nil
}

// EntryConfig is one entry point, optionally with its own resolution settings.
type EntryConfig struct {
	File            string   `json:"file"`
	Label           string   `json:"label,omitempty"`
	Extensions      []string `json:"extensions,omitempty"`
	Aliases         Aliases  `json:"aliases,omitempty"`
	ModuleDirectory []string `json:"moduleDirectory,omitempty"`
	RootDir         string   `json:"rootDir,omitempty"`
}

// UnmarshalJSON accepts either a bare path or an object.
func (e *EntryConfig) UnmarshalJSON(data []byte) error {
	var file string
	if json.Unmarshal(data, &file) == nil {
		*e = EntryConfig{File: file}

		return nil
	}

	type plain EntryConfig

	var obj plain

	err := json.Unmarshal(data, &obj)
	if err != nil {
		return fmt.Errorf("entry: %w", err)
	}

	*e = EntryConfig(obj)

	return nil
}

// Project is the content of .unimportedrc.json.
type Project struct {
	Entry            []EntryConfig `json:"entry,omitempty"`
	Extensions       []string      `json:"extensions,omitempty"`
	Aliases          Aliases       `json:"aliases,omitempty"`
	ModuleDirectory  []string      `json:"moduleDirectory,omitempty"`
	RootDir          string        `json:"rootDir,omitempty"`
	IgnorePatterns   []string      `json:"ignorePatterns,omitempty"`
	IgnoreUnresolved []string      `json:"ignoreUnresolved,omitempty"`
	IgnoreUnimported []string      `json:"ignoreUnimported,omitempty"`
	IgnoreUnused     []string      `json:"ignoreUnused,omitempty"`
	ScannedDirs      []string      `json:"scannedDirs,omitempty"`
}

// LoadProject reads root/.unimportedrc.json. A missing file yields an empty Project.
func LoadProject(root string) (*Project, error) {
	path := filepath.Join(root, ProjectFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Project{}, nil
		}

		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return ParseProject(path, data)
}

// ParseProject validates data against the project schema and decodes it.
func ParseProject(path string, data []byte) (*Project, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(projectSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidProject, path, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.Field()+": "+verr.Description())
		}

		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidProject, path, strings.Join(msgs, "; "))
	}

	var project Project

	err = json.Unmarshal(data, &project)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return &project, nil
}

// IgnoreGlobs returns the configured ignore patterns, or the defaults.
func (p *Project) IgnoreGlobs() []string {
	if len(p.IgnorePatterns) > 0 {
		return p.IgnorePatterns
	}

	return DefaultIgnorePatterns
}

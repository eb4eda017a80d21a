// Package manifest reads package.json files.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// FileName is the manifest file name looked up in every package directory.
const FileName = "package.json"

const typesScope = "@types/"

// ErrNotFound is returned when a directory has no package.json.
var ErrNotFound = errors.New("package.json not found")

// Manifest is the subset of package.json the scanner cares about.
type Manifest struct {
	Name                 string            `json:"name"`
	Main                 string            `json:"main"`
	Source               string            `json:"source"`
	Dependencies         map[string]string `json:"dependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
}

// Load reads dir/package.json.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}

		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return m, nil
}

// Parse decodes package.json content.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest

	err := json.Unmarshal(data, &m)
	if err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return &m, nil
}

// MainField returns the "main" entry of raw package.json content, or "" when
// it is absent or the content is not JSON.
func MainField(data []byte) string {
	if !gjson.ValidBytes(data) {
		return ""
	}

	return strings.TrimSpace(gjson.GetBytes(data, "main").String())
}

// Declared returns every dependency name, dev dependencies included.
// Bare specifiers naming one of these are treated as external packages.
func (m *Manifest) Declared() map[string]struct{} {
	out := make(map[string]struct{})

	for _, group := range []map[string]string{
		m.Dependencies, m.PeerDependencies, m.OptionalDependencies, m.DevDependencies,
	} {
		for name := range group {
			out[name] = struct{}{}
		}
	}

	return out
}

// Runtime returns the dependencies checked for being unused. Type packages
// are never reported; dev dependencies only when includeDev is set.
func (m *Manifest) Runtime(includeDev bool) map[string]struct{} {
	groups := []map[string]string{m.Dependencies, m.PeerDependencies, m.OptionalDependencies}
	if includeDev {
		groups = append(groups, m.DevDependencies)
	}

	out := make(map[string]struct{})

	for _, group := range groups {
		for name := range group {
			if strings.HasPrefix(name, typesScope) {
				continue
			}

			out[name] = struct{}{}
		}
	}

	return out
}

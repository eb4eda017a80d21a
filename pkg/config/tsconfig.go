package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
)

// compilerConfigFiles are checked in order; the first one present wins.
var compilerConfigFiles = []string{"tsconfig.json", "jsconfig.json"}

// compilerPaths is the module resolution part of a tsconfig/jsconfig file.
type compilerPaths struct {
	// BaseURL is relative to the project root; empty when unset.
	BaseURL string
	// Aliases are compilerOptions.paths with targets made relative to the project root.
	Aliases Aliases
}

// loadCompilerPaths reads compilerOptions.baseUrl and compilerOptions.paths.
// Comments and trailing commas are accepted. The extends chain is not followed.
func loadCompilerPaths(root string) (compilerPaths, error) {
	for _, name := range compilerConfigFiles {
		path := filepath.Join(root, name)

		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return compilerPaths{}, fmt.Errorf("read %s: %w", path, err)
		}

		doc := jsonc.ToJSON(data)
		if !gjson.ValidBytes(doc) {
			return compilerPaths{}, fmt.Errorf("%w: %s is not valid JSON", ErrInvalidProject, path)
		}

		var out compilerPaths

		baseURL := gjson.GetBytes(doc, "compilerOptions.baseUrl").String()
		if baseURL != "" {
			out.BaseURL = filepath.Clean(baseURL)
		}

		paths := gjson.GetBytes(doc, "compilerOptions.paths")
		if paths.IsObject() {
			out.Aliases = make(Aliases)

			paths.ForEach(func(key, value gjson.Result) bool {
				for _, target := range value.Array() {
					out.Aliases[key.String()] = append(out.Aliases[key.String()],
						filepath.Join(out.BaseURL, target.String()))
				}

				return true
			})
		}

		return out, nil
	}

	return compilerPaths{}, nil
}

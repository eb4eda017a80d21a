package resolve

import (
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Config drives resolution for one traversal. It is treated as immutable
// once a traversal starts.
type Config struct {
	// Extensions are appended to extension-less paths, in order.
	Extensions []string
	// Aliases map a specifier prefix to replacement path candidates, in order.
	Aliases map[string][]string
	// ModuleDirectory names directories searched for bare specifiers.
	ModuleDirectory []string
	// RootDir is the absolute project root.
	RootDir string
	// Dependencies are the declared package names.
	Dependencies map[string]struct{}
}

// Override is a per-entry replacement for a subset of Config fields.
// A nil slice or map, or an empty RootDir, leaves the global value in place.
type Override struct {
	Extensions      []string
	Aliases         map[string][]string
	ModuleDirectory []string
	RootDir         string
	Dependencies    map[string]struct{}
}

// IsZero reports whether the override sets nothing.
func (o Override) IsZero() bool {
	return o.Extensions == nil && o.Aliases == nil && o.ModuleDirectory == nil &&
		o.RootDir == "" && o.Dependencies == nil
}

// WithOverride returns a copy of c with every field set in o replacing the
// corresponding field. Fields are replaced wholesale, never merged.
func (c *Config) WithOverride(o Override) *Config {
	out := *c

	if o.Extensions != nil {
		out.Extensions = o.Extensions
	}

	if o.Aliases != nil {
		out.Aliases = o.Aliases
	}

	if o.ModuleDirectory != nil {
		out.ModuleDirectory = o.ModuleDirectory
	}

	if o.RootDir != "" {
		out.RootDir = o.RootDir
	}

	if o.Dependencies != nil {
		out.Dependencies = o.Dependencies
	}

	return &out
}

// Digest returns a stable hash of the config content. Two configs with the
// same digest resolve every specifier identically.
func (c *Config) Digest() string {
	h := xxhash.New()

	write := func(parts ...string) {
		for _, p := range parts {
			_, _ = h.WriteString(p)
			_, _ = h.WriteString("\x00")
		}
	}

	write("ext")
	write(c.Extensions...)

	write("alias")

	for _, key := range sortedKeys(c.Aliases) {
		write(key, strconv.Itoa(len(c.Aliases[key])))
		write(c.Aliases[key]...)
	}

	write("moddir")
	write(c.ModuleDirectory...)
	write("root", c.RootDir)

	deps := make([]string, 0, len(c.Dependencies))
	for name := range c.Dependencies {
		deps = append(deps, name)
	}

	slices.Sort(deps)
	write("deps")
	write(deps...)

	return strconv.FormatUint(h.Sum64(), 16)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}

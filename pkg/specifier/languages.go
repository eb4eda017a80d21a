package specifier

import (
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/svelte"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"
	"github.com/alexaandru/go-sitter-forest/vue"
)

// Dialect is the syntax flavour a file is parsed with.
type Dialect string

// Supported dialects.
const (
	DialectJavaScript Dialect = "javascript"
	DialectTypeScript Dialect = "typescript"
	DialectTSX        Dialect = "tsx"
	DialectVue        Dialect = "vue"
	DialectSvelte     Dialect = "svelte"
)

// languageFuncs maps dialects to their tree-sitter GetLanguage functions.
var languageFuncs = map[Dialect]func() unsafe.Pointer{
	DialectJavaScript: javascript.GetLanguage,
	DialectTypeScript: typescript.GetLanguage,
	DialectTSX:        tsx.GetLanguage,
	DialectVue:        vue.GetLanguage,
	DialectSvelte:     svelte.GetLanguage,
}

var dialectByExt = map[string]Dialect{
	".js":     DialectJavaScript,
	".jsx":    DialectJavaScript,
	".mjs":    DialectJavaScript,
	".cjs":    DialectJavaScript,
	".ts":     DialectTypeScript,
	".mts":    DialectTypeScript,
	".cts":    DialectTypeScript,
	".tsx":    DialectTSX,
	".vue":    DialectVue,
	".svelte": DialectSvelte,
}

var languageCache sync.Map

// DialectFor returns the dialect used for path, chosen by file extension.
func DialectFor(path string) (Dialect, bool) {
	d, ok := dialectByExt[strings.ToLower(filepath.Ext(path))]

	return d, ok
}

// language returns the tree-sitter Language for the dialect, or nil if not supported.
func language(d Dialect) *sitter.Language {
	if cached, ok := languageCache.Load(d); ok {
		lang, castOK := cached.(*sitter.Language)
		if castOK {
			return lang
		}
	}

	fn, ok := languageFuncs[d]
	if !ok {
		return nil
	}

	lang := sitter.NewLanguage(fn())
	languageCache.Store(d, lang)

	return lang
}

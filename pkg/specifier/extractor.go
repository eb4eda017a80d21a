package specifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Sentinel errors for extraction.
var (
	// ErrUnsupported is returned for files whose extension has no dialect.
	ErrUnsupported = errors.New("unsupported file type")

	errLanguageNotAvailable = errors.New("tree-sitter language not available")
	errNoRootNode           = errors.New("no root node")
	errPoolType             = errors.New("pool returned unexpected type")
)

// Tree-sitter node kinds the walker reacts to.
const (
	nodeImportStatement = "import_statement"
	nodeExportStatement = "export_statement"
	nodeCallExpression  = "call_expression"
	nodeImportRequire   = "import_require_clause"
	nodeString          = "string"
	nodeTemplateString  = "template_string"
	nodeSubstitution    = "template_substitution"
	nodeComment         = "comment"
	nodeImportKeyword   = "import"
	nodeIdentifier      = "identifier"
	keywordType         = "type"
	requireIdentifier   = "require"
	fieldSource         = "source"
	fieldFunction       = "function"
	fieldArguments      = "arguments"
)

// Extractor turns source text into raw specifiers. It is safe for concurrent use;
// tree-sitter parsers are pooled per dialect.
type Extractor struct {
	pools sync.Map // Dialect -> *sync.Pool.
}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supports reports whether path has a parseable dialect.
func (e *Extractor) Supports(path string) bool {
	_, ok := DialectFor(path)

	return ok
}

// Extract returns every import, export-from, dynamic import and require
// specifier in source, in source order. Specifiers built from non-literal
// expressions are skipped.
func (e *Extractor) Extract(ctx context.Context, path string, source []byte) ([]Specifier, error) {
	dialect, ok := DialectFor(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}

	if dialect == DialectVue || dialect == DialectSvelte {
		return e.extractComponent(ctx, path, dialect, source)
	}

	return e.extractScript(ctx, path, dialect, source, blockOffset{})
}

func (e *Extractor) pool(dialect Dialect) (*sync.Pool, error) {
	if cached, ok := e.pools.Load(dialect); ok {
		pool, castOK := cached.(*sync.Pool)
		if castOK {
			return pool, nil
		}
	}

	lang := language(dialect)
	if lang == nil {
		return nil, fmt.Errorf("%w: %s", errLanguageNotAvailable, dialect)
	}

	pool := &sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(lang)

			return tsParser
		},
	}

	actual, _ := e.pools.LoadOrStore(dialect, pool)

	stored, ok := actual.(*sync.Pool)
	if !ok {
		return nil, errPoolType
	}

	return stored, nil
}

// parse runs fn over the syntax tree of source. The tree is released when fn returns.
func (e *Extractor) parse(ctx context.Context, dialect Dialect, source []byte, fn func(root sitter.Node) error) error {
	pool, err := e.pool(dialect)
	if err != nil {
		return err
	}

	tsParser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return errPoolType
	}

	defer pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, source)
	if err != nil {
		return fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return errNoRootNode
	}

	return fn(root)
}

// blockOffset locates an embedded script block inside its host file.
type blockOffset struct {
	row    int
	column int
}

func (o blockOffset) at(n sitter.Node) Position {
	start := n.StartPoint()
	row := int(start.Row)    //nolint:gosec // tree-sitter coordinates fit in int
	col := int(start.Column) //nolint:gosec // tree-sitter coordinates fit in int

	if row == 0 {
		col += o.column
	}

	return Position{Line: row + o.row + 1, Column: col + 1}
}

func (e *Extractor) extractScript(
	ctx context.Context, path string, dialect Dialect, source []byte, offset blockOffset,
) ([]Specifier, error) {
	w := &walker{path: path, source: source, offset: offset}

	err := e.parse(ctx, dialect, source, func(root sitter.Node) error {
		w.visit(root)

		if w.parseErr == nil && root.HasError() {
			w.fail(root)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	if w.parseErr != nil {
		return nil, w.parseErr
	}

	return w.out, nil
}

// walker collects specifiers during a single pre-order pass.
type walker struct {
	path     string
	source   []byte
	offset   blockOffset
	out      []Specifier
	parseErr *ParseError
}

func (w *walker) visit(n sitter.Node) {
	if w.parseErr != nil {
		return
	}

	// Recovery either wraps bad input in ERROR or inserts a zero-width MISSING node.
	if n.IsError() || n.IsMissing() {
		w.fail(n)

		return
	}

	switch n.Type() {
	case nodeImportStatement:
		w.importStatement(n)
	case nodeExportStatement:
		w.exportStatement(n)
	case nodeCallExpression:
		w.callExpression(n)
	case nodeString, nodeTemplateString, nodeComment:
		return
	}

	for i := range n.ChildCount() {
		w.visit(n.Child(i))
	}
}

func (w *walker) fail(n sitter.Node) {
	pos := w.offset.at(n)
	w.parseErr = &ParseError{Path: w.path, Line: pos.Line, Column: pos.Column}
}

func (w *walker) importStatement(n sitter.Node) {
	source := n.ChildByFieldName(fieldSource)
	if !source.IsNull() {
		kind := StaticImport
		if hasKeywordChild(n, keywordType) {
			kind = TypeOnlyImport
		}

		w.emit(source, kind)

		return
	}

	// import x = require('y')
	for i := range n.NamedChildCount() {
		child := n.NamedChild(i)
		if child.Type() != nodeImportRequire {
			continue
		}

		if src := child.ChildByFieldName(fieldSource); !src.IsNull() {
			w.emit(src, Require)
		}
	}
}

func (w *walker) exportStatement(n sitter.Node) {
	source := n.ChildByFieldName(fieldSource)
	if source.IsNull() {
		return
	}

	kind := ExportFrom
	if hasKeywordChild(n, keywordType) {
		kind = TypeOnlyImport
	}

	w.emit(source, kind)
}

func (w *walker) callExpression(n sitter.Node) {
	fn := n.ChildByFieldName(fieldFunction)
	if fn.IsNull() {
		return
	}

	var kind Kind

	switch {
	case fn.Type() == nodeImportKeyword:
		kind = DynamicImport
	case fn.Type() == nodeIdentifier && w.text(fn) == requireIdentifier:
		kind = Require
	default:
		return
	}

	args := n.ChildByFieldName(fieldArguments)
	if args.IsNull() {
		return
	}

	for i := range args.NamedChildCount() {
		arg := args.NamedChild(i)
		if arg.Type() == nodeComment {
			continue
		}

		w.emit(arg, kind)

		return
	}
}

// emit records node as a specifier when its argument form is extractable.
func (w *walker) emit(n sitter.Node, kind Kind) {
	arg := w.classify(n)
	if !arg.Extractable() {
		return
	}

	w.out = append(w.out, Specifier{
		Text: arg.Text,
		Kind: kind,
		Pos:  w.offset.at(n),
	})
}

func (w *walker) classify(n sitter.Node) Argument {
	switch n.Type() {
	case nodeString:
		return Argument{Form: FormStringLiteral, Text: unquote(w.text(n))}
	case nodeTemplateString:
		for i := range n.NamedChildCount() {
			if n.NamedChild(i).Type() == nodeSubstitution {
				return Argument{Form: FormExpression}
			}
		}

		return Argument{Form: FormPlainTemplate, Text: unquote(w.text(n))}
	default:
		return Argument{Form: FormExpression}
	}
}

func (w *walker) text(n sitter.Node) string {
	return nodeText(n, w.source)
}

func hasKeywordChild(n sitter.Node, keyword string) bool {
	for i := range n.ChildCount() {
		child := n.Child(i)
		if !child.IsNamed() && child.Type() == keyword {
			return true
		}
	}

	return false
}

// unquote strips the surrounding quote or backtick characters of a literal.
func unquote(raw string) string {
	const quotePair = 2

	if len(raw) < quotePair {
		return ""
	}

	return raw[1 : len(raw)-1]
}

// Package specifier extracts raw module specifiers from JavaScript, TypeScript
// and single-file-component sources without touching the filesystem.
package specifier

import (
	"fmt"
)

// Kind classifies how a specifier was referenced in source.
type Kind uint8

// Specifier kinds.
const (
	StaticImport Kind = iota
	DynamicImport
	Require
	ExportFrom
	TypeOnlyImport
)

var kindNames = [...]string{
	StaticImport:   "import",
	DynamicImport:  "dynamic-import",
	Require:        "require",
	ExportFrom:     "export-from",
	TypeOnlyImport: "type-import",
}

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("kind(%d)", k)
}

// Position is a 1-based line/column location in the original file.
type Position struct {
	Line   int
	Column int
}

// Specifier is one occurrence of an import/export/require target in a file.
type Specifier struct {
	Text string
	Kind Kind
	Pos  Position
}

// TypeOnly reports whether the specifier only contributes types.
func (s Specifier) TypeOnly() bool {
	return s.Kind == TypeOnlyImport
}

// ArgumentForm tags the syntactic shape of an import/require argument.
type ArgumentForm uint8

// Argument forms. Only the two literal forms carry text.
const (
	FormExpression ArgumentForm = iota
	FormStringLiteral
	FormPlainTemplate
)

// Argument is the closed variant over specifier argument shapes.
type Argument struct {
	Form ArgumentForm
	Text string
}

// Extractable reports whether the argument carries a statically known specifier.
func (a Argument) Extractable() bool {
	return a.Form == FormStringLiteral || a.Form == FormPlainTemplate
}

// ParseError reports source that is not valid syntax for its dialect.
type ParseError struct {
	Path   string
	Line   int
	Column int
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s at %d:%d", e.Path, e.Line, e.Column)
}

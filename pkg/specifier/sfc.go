package specifier

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Single-file-component node kinds.
const (
	nodeScriptElement  = "script_element"
	nodeStartTag       = "start_tag"
	nodeRawText        = "raw_text"
	nodeAttribute      = "attribute"
	nodeAttributeName  = "attribute_name"
	nodeAttributeValue = "attribute_value"
	nodeQuotedValue    = "quoted_attribute_value"
	attrLang           = "lang"
)

// scriptBlock is one <script> element of a component file.
type scriptBlock struct {
	dialect Dialect
	start   uint
	end     uint
	offset  blockOffset
}

// extractComponent parses the host grammar, then every script block with its own dialect.
func (e *Extractor) extractComponent(ctx context.Context, path string, host Dialect, source []byte) ([]Specifier, error) {
	var blocks []scriptBlock

	err := e.parse(ctx, host, source, func(root sitter.Node) error {
		blocks = collectScripts(root, source)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	var out []Specifier

	for _, block := range blocks {
		specs, blockErr := e.extractScript(ctx, path, block.dialect, source[block.start:block.end], block.offset)
		if blockErr != nil {
			return nil, blockErr
		}

		out = append(out, specs...)
	}

	return out, nil
}

func collectScripts(n sitter.Node, source []byte) []scriptBlock {
	if n.Type() == nodeScriptElement {
		block, ok := scriptOf(n, source)
		if !ok {
			return nil
		}

		return []scriptBlock{block}
	}

	var blocks []scriptBlock

	for i := range n.NamedChildCount() {
		blocks = append(blocks, collectScripts(n.NamedChild(i), source)...)
	}

	return blocks
}

func scriptOf(element sitter.Node, source []byte) (scriptBlock, bool) {
	block := scriptBlock{dialect: DialectJavaScript}
	found := false

	for i := range element.NamedChildCount() {
		child := element.NamedChild(i)

		switch child.Type() {
		case nodeStartTag:
			block.dialect = scriptDialect(child, source)
		case nodeRawText:
			start := child.StartPoint()
			block.start = child.StartByte()
			block.end = child.EndByte()
			block.offset = blockOffset{
				row:    int(start.Row),    //nolint:gosec // tree-sitter coordinates fit in int
				column: int(start.Column), //nolint:gosec // tree-sitter coordinates fit in int
			}
			found = true
		}
	}

	if !found || int(block.end) > len(source) {
		return scriptBlock{}, false
	}

	return block, true
}

// scriptDialect reads the lang attribute of a <script> start tag.
func scriptDialect(tag sitter.Node, source []byte) Dialect {
	for i := range tag.NamedChildCount() {
		attr := tag.NamedChild(i)
		if attr.Type() != nodeAttribute {
			continue
		}

		var name, value string

		for j := range attr.NamedChildCount() {
			part := attr.NamedChild(j)

			switch part.Type() {
			case nodeAttributeName:
				name = nodeText(part, source)
			case nodeAttributeValue:
				value = nodeText(part, source)
			case nodeQuotedValue:
				value = strings.Trim(nodeText(part, source), `"'`)
			}
		}

		if !strings.EqualFold(name, attrLang) {
			continue
		}

		switch strings.ToLower(value) {
		case "ts", "typescript":
			return DialectTypeScript
		case "tsx":
			return DialectTSX
		}
	}

	return DialectJavaScript
}

func nodeText(n sitter.Node, source []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(source) || start > end {
		return ""
	}

	return string(source[start:end])
}

package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Headings are emitted
// as their own lines so numbered headings reach the classifier intact.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	out := newDocument(filename, ".md", ".markdown")
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch node := c.(type) {
			case *ast.Heading:
				out.Append(string(node.Text(src)), 0)
			case *ast.List, *ast.ListItem, *ast.Blockquote:
				walk(node)
			case *extast.Table:
				appendTable(out, node, src)
			default:
				for _, line := range strings.Split(extractText(node, src), "\n") {
					out.Append(line, 0)
				}
			}
		}
	}
	walk(doc)
	return out, nil
}

func appendTable(out *document.Document, table *extast.Table, src []byte) {
	var headers []string
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, extractText(cell, src))
		}
		if _, ok := row.(*extast.TableHeader); ok {
			headers = cells
			continue
		}
		out.Append(tableRow(headers, cells), 0)
	}
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		if lines.Len() > 0 && n.FirstChild() == nil {
			return strings.TrimSpace(buf.String())
		}
		buf.Reset()
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}

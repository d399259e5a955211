package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Block elements become lines; table rows are
// linearized with the table prefix.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := newDocument(filename, ".html", ".htm")
	if title := findTitle(root); title != "" {
		doc.Title = title
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			doc.Append(n.Data, 0)
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "footer", "header", "noscript":
				return
			case "h1", "h2", "h3", "h4", "h5", "h6", "p", "li", "blockquote", "pre", "dt", "dd":
				for _, line := range strings.Split(textContent(n), "\n") {
					doc.Append(line, 0)
				}
				return
			case "table":
				appendHTMLTable(doc, n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findElement(root, "body"); body != nil {
		walk(body)
	} else {
		walk(root)
	}
	return doc, nil
}

func appendHTMLTable(doc *document.Document, table *html.Node) {
	var headers []string
	var rows func(*html.Node)
	rows = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if c.Data != "tr" {
				rows(c)
				continue
			}
			var cells []string
			allTH := true
			for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
				if cell.Type != html.ElementNode || (cell.Data != "td" && cell.Data != "th") {
					continue
				}
				if cell.Data == "td" {
					allTH = false
				}
				cells = append(cells, strings.Join(strings.Fields(textContent(cell)), " "))
			}
			if len(cells) == 0 {
				continue
			}
			if allTH && headers == nil {
				headers = cells
				continue
			}
			doc.Append(tableRow(headers, cells), 0)
		}
	}
	rows(table)
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			buf.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if t := findElement(n, "title"); t != nil {
		return textContent(t)
	}
	return ""
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

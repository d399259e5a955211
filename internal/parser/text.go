package parser

import (
	"bufio"
	"io"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
)

// TextParser handles plain text files. Every non-blank line becomes a source line.
// A form feed starts a new page.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := newDocument(filename, ".txt")
	page := 1
	for scanner.Scan() {
		line := scanner.Text()
		for len(line) > 0 && line[0] == '\f' {
			page++
			line = line[1:]
		}
		doc.Append(line, page)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

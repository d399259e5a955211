package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
)

// CSVParser handles CSV files. Each data row becomes one table line of
// "Header: cell" pairs.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := newDocument(filename, ".csv")
	if len(records) == 0 {
		return doc, nil
	}

	// First row is headers.
	headers := records[0]
	for _, row := range records[1:] {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		doc.Append(tableRow(headers, row), 0)
	}
	return doc, nil
}

// tableRow linearizes one row, pairing cells with headers where available.
func tableRow(headers, row []string) string {
	var text strings.Builder
	text.WriteString(TablePrefix)
	for j, cell := range row {
		cell = strings.TrimSpace(cell)
		if j < len(headers) && headers[j] != "" {
			text.WriteString(strings.TrimSpace(headers[j]) + ": " + cell)
		} else {
			text.WriteString(cell)
		}
		if j < len(row)-1 {
			text.WriteString(", ")
		}
	}
	return text.String()
}

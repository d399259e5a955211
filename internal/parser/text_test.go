package parser

import (
	"strings"
	"testing"
)

func TestTextParser_LinePerSourceLine(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", doc.Title)
	}
	want := []string{
		"First paragraph line one.",
		"First paragraph line two.",
		"Second paragraph.",
		"Third paragraph.",
	}
	if len(doc.Lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(doc.Lines))
	}
	for i, w := range want {
		if doc.Lines[i].Text != w {
			t.Errorf("line[%d]: expected %q, got %q", i, w, doc.Lines[i].Text)
		}
		if doc.Lines[i].Sequence != i {
			t.Errorf("line[%d]: expected sequence %d, got %d", i, i, doc.Lines[i].Sequence)
		}
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "empty" {
		t.Errorf("expected title %q, got %q", "empty", doc.Title)
	}
	if len(doc.Lines) != 0 {
		t.Errorf("expected 0 lines for empty input, got %d", len(doc.Lines))
	}
}

func TestTextParser_DropsTinyAndBlankLines(t *testing.T) {
	input := "Para one.\n   \nx\n\n\nPara two."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "gaps.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(doc.Lines))
	}
}

func TestTextParser_FormFeedAdvancesPage(t *testing.T) {
	input := "Page one text.\n\fPage two text."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "paged.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(doc.Lines))
	}
	if doc.Lines[0].PageIndex != 1 || doc.Lines[1].PageIndex != 2 {
		t.Errorf("expected pages 1 and 2, got %d and %d", doc.Lines[0].PageIndex, doc.Lines[1].PageIndex)
	}
}

package document

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// SourceLine is one extracted line or block of a document, in reading order.
type SourceLine struct {
	Text       string
	DocumentID string
	PageIndex  int // 1-based; 0 when the source has no pages
	Sequence   int
}

// Document is the output of a parser: ordered lines plus file metadata.
type Document struct {
	ID       string
	Title    string
	Filename string
	Lines    []SourceLine
}

// Append adds a line, assigning its sequence number and document id.
// Blocks shorter than two characters after trimming are dropped.
func (d *Document) Append(text string, page int) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < 2 {
		return
	}
	d.Lines = append(d.Lines, SourceLine{
		Text:       text,
		DocumentID: d.ID,
		PageIndex:  page,
		Sequence:   len(d.Lines),
	})
}

// SetID stamps id on the document and every line.
func (d *Document) SetID(id string) {
	d.ID = id
	for i := range d.Lines {
		d.Lines[i].DocumentID = id
	}
}

// Text joins all lines with newlines.
func (d *Document) Text() string {
	var sb strings.Builder
	for i, l := range d.Lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(l.Text)
	}
	return sb.String()
}

// Chunk is a bounded, context-prefixed fragment of one document.
type Chunk struct {
	ID             string   `json:"id"`
	DocumentID     string   `json:"document_id"`
	Index          int      `json:"index"`
	Text           string   `json:"text"`
	RawText        string   `json:"raw_text"`
	Subject        string   `json:"subject,omitempty"`
	HeaderPath     []string `json:"header_path,omitempty"`
	CharCount      int      `json:"char_count"`
	PageStart      int      `json:"page_start"`
	PageEnd        int      `json:"page_end"`
	BoundaryForced bool     `json:"boundary_forced,omitempty"`
}

// Info is the stored metadata for an ingested document.
type Info struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Filename    string `json:"filename"`
	ContentHash string `json:"content_hash"`
	ChunkCount  int    `json:"chunk_count"`
	CreatedAt   string `json:"created_at"`
}

var chunkNamespace = uuid.MustParse("6f1c2a4e-8d3b-5e7f-9a0c-1b2d3e4f5a6b")

// ChunkID derives a stable chunk identity from the document id, the chunk's
// position and its text. Re-chunking the same document yields the same ids.
func ChunkID(documentID string, index int, text string) string {
	key := documentID + "\x00" + strconv.Itoa(index) + "\x00" + text
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// DocumentID returns the short content-derived id used when the caller supplies none.
func DocumentID(data []byte) string {
	return ContentHashHex(data)[:16]
}

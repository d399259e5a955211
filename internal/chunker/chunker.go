package chunker

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
)

// Config controls chunking behavior. Sizes are measured in characters (runes).
type Config struct {
	MinChunkChars   int
	MaxChunkChars   int
	SubjectKeywords []string
	EmphaticHeaders bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinChunkChars:   200,
		MaxChunkChars:   1200,
		SubjectKeywords: []string{"SUBJECT"},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinChunkChars <= 0 {
		c.MinChunkChars = d.MinChunkChars
	}
	if c.MaxChunkChars <= 0 {
		c.MaxChunkChars = d.MaxChunkChars
	}
	if c.MaxChunkChars < c.MinChunkChars {
		c.MaxChunkChars = c.MinChunkChars
	}
	if len(c.SubjectKeywords) == 0 {
		c.SubjectKeywords = d.SubjectKeywords
	}
	return c
}

// Chunker turns a document's source lines into context-prefixed chunks.
// A Chunker holds no per-document state and may be shared across goroutines.
type Chunker struct {
	cfg        Config
	classifier *Classifier
	log        *slog.Logger
}

// New creates a Chunker. A nil logger discards output.
func New(cfg Config, log *slog.Logger) *Chunker {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Chunker{
		cfg:        cfg,
		classifier: NewClassifier(cfg.SubjectKeywords, cfg.EmphaticHeaders),
		log:        log,
	}
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config { return c.cfg }

// Classifier returns the line classifier used by this chunker.
func (c *Chunker) Classifier() *Classifier { return c.classifier }

// Chunk splits one document.
func (c *Chunker) Chunk(doc *document.Document) []document.Chunk {
	return c.ChunkLines(doc.ID, doc.Lines)
}

// ChunkLines runs the chunking state machine over lines of a single document.
func (c *Chunker) ChunkLines(documentID string, lines []document.SourceLine) []document.Chunk {
	acc := &accumulator{
		cfg:   c.cfg,
		log:   c.log.With("document_id", documentID),
		docID: documentID,
	}
	for _, line := range lines {
		acc.consume(c.classifier.Classify(line.Text), line)
	}
	acc.flush(false)
	return acc.chunks
}

// ChunkContext is the subject and header lineage that prefixes emitted chunks.
type ChunkContext struct {
	Subject    string
	HasSubject bool
	HeaderPath []string
}

// Prefix renders the context line placed before a chunk's raw text.
// It is empty when no subject has been seen.
func (cc ChunkContext) Prefix() string {
	if !cc.HasSubject {
		return ""
	}
	prefix := "Subject: " + cc.Subject
	if len(cc.HeaderPath) > 0 {
		prefix += " - " + strings.Join(cc.HeaderPath, " > ")
	}
	return prefix + "\n"
}

type segment struct {
	text string
	page int
}

// accumulator is the per-document chunking state. One instance per document.
type accumulator struct {
	cfg   Config
	log   *slog.Logger
	docID string

	ctx      ChunkContext
	buf      []segment
	bufChars int

	chunks []document.Chunk
}

func (a *accumulator) consume(kind LineKind, line document.SourceLine) {
	switch k := kind.(type) {
	case SubjectMarker:
		a.flush(false)
		a.ctx.Subject = k.Subject
		a.ctx.HasSubject = true
		a.ctx.HeaderPath = nil
	case Header:
		if a.bufChars >= a.cfg.MinChunkChars {
			a.flush(false)
		}
		depth := k.Level - 1
		if depth < len(a.ctx.HeaderPath) {
			a.ctx.HeaderPath = a.ctx.HeaderPath[:depth]
		}
		a.ctx.HeaderPath = append(a.ctx.HeaderPath, k.Label)
		a.append(line)
	case Body:
		a.append(line)
	}
}

func (a *accumulator) append(line document.SourceLine) {
	text := strings.TrimSpace(line.Text)
	if text == "" {
		return
	}
	if len(a.buf) > 0 {
		a.bufChars++ // joining newline
	}
	a.buf = append(a.buf, segment{text: text, page: line.PageIndex})
	a.bufChars += utf8.RuneCountInString(text)

	for a.bufChars >= a.cfg.MaxChunkChars {
		if !a.splitOversized() {
			return
		}
	}
}

// splitOversized cuts the buffer once it has reached the maximum size.
// It reports false when no cut was made and more text is needed.
func (a *accumulator) splitOversized() bool {
	raw := a.rawText()
	minC, maxC := a.cfg.MinChunkChars, a.cfg.MaxChunkChars

	forced := false
	cut := lastBoundary(raw, minC, maxC, isSentenceEnd)
	if cut < 0 {
		cut = firstSentenceEndAfter(raw, maxC)
		forced = cut >= 0
	}
	if cut < 0 {
		if a.bufChars < 2*maxC {
			return false
		}
		forced = true
		if cut = lastBoundary(raw, minC, maxC, isLineBreak); cut < 0 {
			if cut = lastBoundary(raw, minC, maxC, isSpace); cut < 0 {
				cut = byteOffset(raw, maxC)
			}
		}
	}

	head, tail := a.splitAt(cut)
	a.buf = head
	a.flush(forced)
	a.buf = tail
	a.bufChars = utf8.RuneCountInString(a.rawText())
	return true
}

// splitAt divides the buffer at a byte offset into the joined raw text.
func (a *accumulator) splitAt(cut int) (head, tail []segment) {
	offset := 0
	for i, s := range a.buf {
		end := offset + len(s.text)
		if cut <= end {
			head = append(head, a.buf[:i]...)
			if h := strings.TrimSpace(s.text[:cut-offset]); h != "" {
				head = append(head, segment{text: h, page: s.page})
			}
			if t := strings.TrimSpace(s.text[cut-offset:]); t != "" {
				tail = append(tail, segment{text: t, page: s.page})
			}
			tail = append(tail, a.buf[i+1:]...)
			return head, tail
		}
		offset = end + 1
	}
	return a.buf, nil
}

func (a *accumulator) rawText() string {
	parts := make([]string, len(a.buf))
	for i, s := range a.buf {
		parts[i] = s.text
	}
	return strings.Join(parts, "\n")
}

// flush emits the buffer as a chunk under the active context.
func (a *accumulator) flush(forced bool) {
	raw := a.rawText()
	if raw == "" {
		a.buf, a.bufChars = nil, 0
		return
	}

	pageStart, pageEnd := 0, 0
	for _, s := range a.buf {
		if s.page <= 0 {
			continue
		}
		if pageStart == 0 || s.page < pageStart {
			pageStart = s.page
		}
		if s.page > pageEnd {
			pageEnd = s.page
		}
	}

	index := len(a.chunks)
	text := a.ctx.Prefix() + raw
	charCount := utf8.RuneCountInString(raw)
	forced = forced || charCount > a.cfg.MaxChunkChars
	chunk := document.Chunk{
		ID:             document.ChunkID(a.docID, index, text),
		DocumentID:     a.docID,
		Index:          index,
		Text:           text,
		RawText:        raw,
		Subject:        a.ctx.Subject,
		HeaderPath:     append([]string(nil), a.ctx.HeaderPath...),
		CharCount:      charCount,
		PageStart:      pageStart,
		PageEnd:        pageEnd,
		BoundaryForced: forced,
	}
	if forced {
		a.log.Warn("chunk boundary forced",
			"chunk_index", index,
			"chars", chunk.CharCount,
			"max_chars", a.cfg.MaxChunkChars,
		)
	}
	a.chunks = append(a.chunks, chunk)
	a.buf, a.bufChars = nil, 0
}

func isSentenceEnd(prev, next rune) bool {
	return (prev == '.' || prev == '!' || prev == '?') && unicode.IsSpace(next)
}

func isLineBreak(_, next rune) bool { return next == '\n' }

func isSpace(_, next rune) bool { return unicode.IsSpace(next) }

// lastBoundary returns the byte offset of the last boundary whose rune
// position lies in [minC, maxC], or -1. A boundary sits between two runes.
func lastBoundary(s string, minC, maxC int, match func(prev, next rune) bool) int {
	best := -1
	n := 0
	var prev rune
	for i, r := range s {
		if n > maxC {
			break
		}
		if n >= minC && n > 0 && match(prev, r) {
			best = i
		}
		prev = r
		n++
	}
	return best
}

// firstSentenceEndAfter returns the byte offset of the first sentence end
// past rune position maxC, or -1.
func firstSentenceEndAfter(s string, maxC int) int {
	n := 0
	var prev rune
	for i, r := range s {
		if n > maxC && isSentenceEnd(prev, r) {
			return i
		}
		prev = r
		n++
	}
	return -1
}

func byteOffset(s string, runes int) int {
	n := 0
	for i := range s {
		if n == runes {
			return i
		}
		n++
	}
	return len(s)
}

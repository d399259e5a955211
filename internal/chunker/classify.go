package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

// LineKind is the structural role of one source line. The concrete kinds are
// Header, SubjectMarker and Body; no other type implements it.
type LineKind interface {
	lineKind()
}

// Header is a numbered or bracketed section heading.
type Header struct {
	Level int    // number of numeric segments, "2.3.4" is level 3
	Label string // the trimmed heading line
}

// SubjectMarker switches the active subject context.
type SubjectMarker struct {
	Subject string
}

// Body is ordinary content.
type Body struct{}

func (Header) lineKind()        {}
func (SubjectMarker) lineKind() {}
func (Body) lineKind()          {}

var (
	// "1 Title", "1. Title", "2.3 Title", "2.3.4. Title"
	dottedHeaderRe = regexp.MustCompile(`^(\d{1,3}(?:\.\d{1,3})*)(\.?)\s+(\S.*)$`)
	// "[3]" or "[3] Title"
	bracketHeaderRe = regexp.MustCompile(`^\[(\d{1,3})\](?:\s+\S.*)?$`)
	yearRe          = regexp.MustCompile(`\b\d{4}\b`)
	pageLineRe      = regexp.MustCompile(`(?i)^page\s+\d+`)
)

// Classifier assigns a LineKind to a line of text. It is safe for concurrent use.
type Classifier struct {
	subjectRe *regexp.Regexp
	emphatic  bool
}

// NewClassifier builds a classifier recognizing the given subject keywords.
// With emphatic set, short all-uppercase lines are treated as level-1 headers.
func NewClassifier(keywords []string, emphatic bool) *Classifier {
	if len(keywords) == 0 {
		keywords = []string{"SUBJECT"}
	}
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(strings.TrimSpace(k))
	}
	pattern := `(?i)^(?:\[?\d{1,3}(?:\.\d{1,3})*\]?\.?\s+)?(?:` + strings.Join(quoted, "|") + `)(?:\s*:|\s+[-–])\s*(\S.*)$`
	return &Classifier{
		subjectRe: regexp.MustCompile(pattern),
		emphatic:  emphatic,
	}
}

// Classify returns the kind of line. A line that is both a subject marker and
// a numbered header is a SubjectMarker.
func (c *Classifier) Classify(line string) LineKind {
	line = strings.TrimSpace(line)
	if line == "" {
		return Body{}
	}

	if m := c.subjectRe.FindStringSubmatch(line); m != nil {
		return SubjectMarker{Subject: strings.TrimSpace(m[1])}
	}

	if m := bracketHeaderRe.FindStringSubmatch(line); m != nil {
		return Header{Level: 1, Label: line}
	}

	if m := dottedHeaderRe.FindStringSubmatch(line); m != nil {
		segments := strings.Count(m[1], ".") + 1
		// A lone number needs a trailing dot or a capitalized title,
		// otherwise "3 items were shipped" would open a section.
		if segments > 1 || m[2] == "." || startsUpper(m[3]) {
			return Header{Level: segments, Label: line}
		}
	}

	if c.emphatic && isEmphatic(line) {
		return Header{Level: 1, Label: line}
	}
	return Body{}
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

// isEmphatic reports short shouted lines such as "TERMS AND CONDITIONS".
func isEmphatic(line string) bool {
	if len([]rune(line)) >= 60 {
		return false
	}
	if yearRe.MatchString(line) || pageLineRe.MatchString(line) {
		return false
	}
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 3
}

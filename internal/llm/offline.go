package llm

import (
	"context"
	"fmt"
	"strings"
)

// Offline is a Generator that needs no model. Expand returns no variants, so
// retrieval runs on the original query only; Generate quotes the first source.
type Offline struct{}

var _ Generator = Offline{}

func (Offline) Expand(context.Context, string, int) (string, error) { return "", nil }

func (Offline) Generate(_ context.Context, _ string, sources []string) (string, error) {
	if len(sources) == 0 {
		return UnknownAnswer, nil
	}
	text := sources[0]
	if i := strings.IndexByte(text, '\n'); i >= 0 && strings.HasPrefix(text, "Subject: ") {
		text = text[i+1:]
	}
	return fmt.Sprintf("%s [Source 1]", strings.TrimSpace(text)), nil
}

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/llm"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/metrics"
)

// DefaultVariantCount is the number of query variants requested.
const DefaultVariantCount = 3

// Expander rewrites a query into k lexically diverse variants.
type Expander struct {
	gen     llm.Generator
	k       int
	timeout time.Duration
	cache   *cache.Cache
	log     *slog.Logger
}

// NewExpander creates an Expander. A cacheTTL of zero disables caching.
func NewExpander(gen llm.Generator, k int, timeout, cacheTTL time.Duration, log *slog.Logger) *Expander {
	if k <= 0 {
		k = DefaultVariantCount
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	e := &Expander{gen: gen, k: k, timeout: timeout, log: log}
	if cacheTTL > 0 {
		e.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return e
}

// K returns the configured variant count.
func (e *Expander) K() int { return e.k }

// Expand returns up to k variants. Malformed generator output falls back to
// the original query alone; a timeout or call failure is returned.
func (e *Expander) Expand(ctx context.Context, query string) ([]string, error) {
	key := fmt.Sprintf("%d\x00%s", e.k, query)
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			return append([]string(nil), v.([]string)...), nil
		}
	}

	raw, err := callExternal(ctx, metrics.OpExpand, e.timeout, func(ctx context.Context) (string, error) {
		return e.gen.Expand(ctx, query, e.k)
	})
	if err != nil {
		return nil, err
	}

	variants, err := ParseVariants(raw, query, e.k)
	if errors.Is(err, ErrMalformedResponse) {
		e.log.Info("query expansion fell back to original query", "error", err)
		return []string{query}, nil
	}
	if e.cache != nil {
		e.cache.Set(key, variants, cache.DefaultExpiration)
	}
	return append([]string(nil), variants...), nil
}

var listMarkerRe = regexp.MustCompile(`^(?:[-*•]+\s*|\(?\d{1,2}[.)\]:]\s+|[a-zA-Z][.)]\s+)`)

// ParseVariants extracts variants from generator output, one per line.
// List markers, surrounding quotes and blank or duplicate lines are dropped,
// the first k survive, and the original query pads a short list.
func ParseVariants(raw, original string, k int) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		v := cleanVariant(line)
		if v == "" || strings.HasSuffix(v, ":") {
			continue
		}
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
		if len(out) == k {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no usable variants in %q", ErrMalformedResponse, truncate(raw, 80))
	}
	if len(out) < k && !seen[strings.ToLower(strings.TrimSpace(original))] {
		out = append(out, strings.TrimSpace(original))
	}
	return out, nil
}

func cleanVariant(line string) string {
	v := strings.TrimSpace(line)
	v = listMarkerRe.ReplaceAllString(v, "")
	v = strings.Trim(v, "\"'`“”‘’ \t")
	return strings.TrimSpace(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

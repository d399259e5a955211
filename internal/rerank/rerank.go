// Package rerank scores (query, passage) pairs with a cross-encoder.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/metrics"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/retry"
)

// DefaultBatchSize is the number of passages sent per request.
const DefaultBatchSize = 64

// Scorer returns one relevance score per text, in input order. Higher is better.
type Scorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Config configures the HTTP cross-encoder client.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	BatchSize         int
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client calls a /rerank endpoint. It accepts both the Jina/Cohere response
// shape ({"results":[{"index","relevance_score"}]}) and the text-embeddings-inference
// shape ([{"index","score"}]).
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
	httpClient *http.Client
	limiter    *rate.Limiter
	calls      *metrics.Calls
}

var _ Scorer = (*Client)(nil)

func NewClient(cfg Config, calls *metrics.Calls) *Client {
	if cfg.Model == "" {
		cfg.Model = "BAAI/bge-reranker-base"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		calls:   calls,
	}
}

type request struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Texts     []string `json:"texts"`
	TopN      int      `json:"top_n"`
}

type result struct {
	Index          int      `json:"index"`
	RelevanceScore *float64 `json:"relevance_score"`
	Score          *float64 `json:"score"`
}

// Score scores texts against query, one request per batch.
func (c *Client) Score(ctx context.Context, query string, texts []string) (scores []float64, err error) {
	if len(texts) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { c.calls.Observe(metrics.OpRerank, start, err) }()

	scores = make([]float64, 0, len(texts))
	for lo := 0; lo < len(texts); lo += c.batchSize {
		hi := min(lo+c.batchSize, len(texts))
		batch, err := c.scoreBatch(ctx, query, texts[lo:hi])
		if err != nil {
			return nil, err
		}
		scores = append(scores, batch...)
	}
	return scores, nil
}

func (c *Client) scoreBatch(ctx context.Context, query string, texts []string) ([]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	body, err := json.Marshal(request{Model: c.model, Query: query, Documents: texts, Texts: texts, TopN: len(texts)})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}
	if err := retry.CheckStatus("rerank", resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return decodeScores(respBody, len(texts))
}

// ErrMalformed is returned when the response cannot be mapped back to the inputs.
var ErrMalformed = errors.New("malformed rerank response")

func decodeScores(body []byte, n int) ([]float64, error) {
	var results []result
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else {
		var wrapped struct {
			Results []result `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		results = wrapped.Results
	}
	if len(results) != n {
		return nil, fmt.Errorf("%w: expected %d results, got %d", ErrMalformed, n, len(results))
	}

	scores := make([]float64, n)
	seen := make([]bool, n)
	for _, r := range results {
		if r.Index < 0 || r.Index >= n || seen[r.Index] {
			return nil, fmt.Errorf("%w: bad index %d", ErrMalformed, r.Index)
		}
		switch {
		case r.RelevanceScore != nil:
			scores[r.Index] = *r.RelevanceScore
		case r.Score != nil:
			scores[r.Index] = *r.Score
		default:
			return nil, fmt.Errorf("%w: result %d has no score", ErrMalformed, r.Index)
		}
		seen[r.Index] = true
	}
	return scores, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

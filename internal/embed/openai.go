package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/metrics"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/retry"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures the OpenAI-compatible embeddings client.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// OpenAI calls an OpenAI-compatible /embeddings endpoint.
type OpenAI struct {
	client openai.Client
	model  string
	dim    atomic.Int64
	calls  *metrics.Calls
}

func NewOpenAI(cfg OpenAIConfig, calls *metrics.Calls) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	e := &OpenAI{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		calls:  calls,
	}
	e.dim.Store(int64(cfg.Dimensions))
	return e
}

func (e *OpenAI) Name() string { return "openai:" + e.model }

// Dimension returns the configured size, or 0 until the first response when unset.
func (e *OpenAI) Dimension() int { return int(e.dim.Load()) }

func (e *OpenAI) Embed(ctx context.Context, texts []string) (out [][]float32, err error) {
	if len(texts) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { e.calls.Observe(metrics.OpEmbed, start, err) }()

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	}
	if dim := e.dim.Load(); dim > 0 {
		params.Dimensions = openai.Int(dim)
	}
	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: expected %d vectors, got %d", len(texts), len(resp.Data))
	}

	out = make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	e.dim.CompareAndSwap(0, int64(len(out[0])))
	return out, nil
}

// classify turns rate-limit and server errors into retryable errors.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return fmt.Errorf("embeddings: %w", &retry.RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()})
		}
	}
	return fmt.Errorf("embeddings: %w", err)
}

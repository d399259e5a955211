// Package llm is the chat-completion adapter used for query expansion and
// grounded answer generation.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/metrics"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/retry"
)

// Generator produces query variants and grounded answers.
type Generator interface {
	// Expand returns the raw model output listing up to k rephrasings of query.
	Expand(ctx context.Context, query string, k int) (string, error)
	// Generate answers query from sources, which are cited as [Source i] in order.
	Generate(ctx context.Context, query string, sources []string) (string, error)
}

// Config configures the OpenAI-compatible chat client (OpenAI, Groq, vLLM...).
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	ExpandModel       string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client calls an OpenAI-compatible chat completions API.
type Client struct {
	client      openai.Client
	model       string
	expandModel string
	limiter     *rate.Limiter
	calls       *metrics.Calls
}

var _ Generator = (*Client)(nil)

func NewClient(cfg Config, calls *metrics.Calls) *Client {
	if cfg.Model == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}
	if cfg.ExpandModel == "" {
		cfg.ExpandModel = cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		expandModel: cfg.ExpandModel,
		limiter:     rate.NewLimiter(limit, 1),
		calls:       calls,
	}
}

func (c *Client) Expand(ctx context.Context, query string, k int) (out string, err error) {
	start := time.Now()
	defer func() { c.calls.Observe(metrics.OpExpand, start, err) }()

	return c.complete(ctx, c.expandModel, buildExpandPrompt(k), query, 0.3)
}

func (c *Client) Generate(ctx context.Context, query string, sources []string) (out string, err error) {
	start := time.Now()
	defer func() { c.calls.Observe(metrics.OpGenerate, start, err) }()

	return c.complete(ctx, c.model, buildAnswerPrompt(sources), query, 0)
}

func (c *Client) complete(ctx context.Context, model, system, user string, temperature float64) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return fmt.Errorf("chat completion: %w", &retry.RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()})
		}
	}
	return fmt.Errorf("chat completion: %w", err)
}

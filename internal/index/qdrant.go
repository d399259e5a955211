package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/metrics"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/retry"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
)

// Qdrant talks to the Qdrant REST API. The collection holds a named dense
// vector (cosine) and a named sparse vector with server-side IDF weighting.
type Qdrant struct {
	baseURL    string
	apiKey     string
	collection string
	httpClient *http.Client
	calls      *metrics.Calls
}

func NewQdrant(baseURL, apiKey, collection string, calls *metrics.Calls) *Qdrant {
	return &Qdrant{
		baseURL:    baseURL,
		apiKey:     apiKey,
		collection: collection,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		calls: calls,
	}
}

type qdrantSparse struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  map[string]any `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type prefetch struct {
	Query any    `json:"query"`
	Using string `json:"using"`
	Limit int    `json:"limit"`
}

type queryRequest struct {
	Prefetch    []prefetch     `json:"prefetch"`
	Query       map[string]any `json:"query"`
	Limit       int            `json:"limit"`
	WithPayload bool           `json:"with_payload"`
}

// EnsureCollection creates the collection and its document_id payload index if missing.
func (q *Qdrant) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("ensure collection: invalid dimension")
	}
	var exists struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodGet, q.collectionPath("/exists"), nil, &exists); err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists.Result.Exists {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{"size": dimension, "distance": "Cosine"},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{"modifier": "idf"},
		},
	}
	if err := q.do(ctx, http.MethodPut, q.collectionPath(""), body, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	idx := map[string]any{"field_name": "document_id", "field_schema": "keyword"}
	if err := q.do(ctx, http.MethodPut, q.collectionPath("/index?wait=true"), idx, nil); err != nil {
		return fmt.Errorf("create payload index: %w", err)
	}
	return nil
}

// Upsert writes points and waits for them to be indexed.
func (q *Qdrant) Upsert(ctx context.Context, points []Point) (err error) {
	if len(points) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { q.calls.Observe(metrics.OpUpsert, start, err) }()

	out := make([]qdrantPoint, len(points))
	for i, p := range points {
		out[i] = qdrantPoint{
			ID: p.ChunkID,
			Vector: map[string]any{
				denseVectorName:  p.Dense,
				sparseVectorName: qdrantSparse{Indices: nonNil(p.Sparse.Indices), Values: nonNilF(p.Sparse.Values)},
			},
			Payload: map[string]any{
				"document_id": p.DocumentID,
				"chunk_index": p.ChunkIndex,
			},
		}
	}
	if err := q.do(ctx, http.MethodPut, q.collectionPath("/points?wait=true"), map[string]any{"points": out}, nil); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// Query runs a dense and a sparse prefetch and fuses them with RRF.
func (q *Qdrant) Query(ctx context.Context, hq HybridQuery) (hits []Hit, err error) {
	start := time.Now()
	defer func() { q.calls.Observe(metrics.OpSearch, start, err) }()

	limit := hq.Limit
	if limit <= 0 {
		limit = 25
	}
	req := queryRequest{
		Query:       map[string]any{"fusion": "rrf"},
		Limit:       limit,
		WithPayload: false,
	}
	if len(hq.Dense) > 0 {
		req.Prefetch = append(req.Prefetch, prefetch{Query: hq.Dense, Using: denseVectorName, Limit: limit})
	}
	if hq.Sparse.Len() > 0 {
		req.Prefetch = append(req.Prefetch, prefetch{
			Query: qdrantSparse{Indices: hq.Sparse.Indices, Values: hq.Sparse.Values},
			Using: sparseVectorName,
			Limit: limit,
		})
	}
	if len(req.Prefetch) == 0 {
		return nil, nil
	}

	var resp struct {
		Result struct {
			Points []struct {
				ID    any     `json:"id"`
				Score float64 `json:"score"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.collectionPath("/points/query"), req, &resp); err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	hits = make([]Hit, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		hits = append(hits, Hit{ChunkID: fmt.Sprint(p.ID), Score: p.Score})
	}
	return hits, nil
}

// DeleteDocument removes every point whose payload document_id matches.
func (q *Qdrant) DeleteDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []any{
				map[string]any{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	if err := q.do(ctx, http.MethodPost, q.collectionPath("/points/delete?wait=true"), body, nil); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return nil
}

func (q *Qdrant) collectionPath(suffix string) string {
	return "/collections/" + url.PathEscape(q.collection) + suffix
}

func (q *Qdrant) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		httpReq.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := retry.CheckStatus("qdrant", resp.StatusCode, respBody); err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Close releases idle connections.
func (q *Qdrant) Close() {
	q.httpClient.CloseIdleConnections()
}

func nonNil(s []uint32) []uint32 {
	if s == nil {
		return []uint32{}
	}
	return s
}

func nonNilF(s []float32) []float32 {
	if s == nil {
		return []float32{}
	}
	return s
}

package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*Index)(nil)

// pointNamespace derives stable point ids from chunk ids; Qdrant only accepts
// UUIDs or unsigned integers
var pointNamespace = uuid.MustParse("6f1c7a52-3c1e-4c8e-9a57-8d2f0e4b9a11")

// Config contains connection details for a Qdrant collection
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Index implements driven.VectorIndex over the Qdrant REST API with cosine distance
type Index struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// NewIndex creates a Qdrant-backed VectorIndex
func NewIndex(cfg Config) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "drive_chunks"
	}
	return &Index{
		url:        strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection for dims-sized vectors unless it already exists
func (x *Index) Init(ctx context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("invalid dimension %d: %w", dims, domain.ErrInvalidInput)
	}
	status, err := x.send(ctx, http.MethodGet, x.collectionURL(""), nil, nil)
	if err == nil && status == http.StatusOK {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{"size": dims, "distance": "Cosine"},
	}
	if _, err := x.send(ctx, http.MethodPut, x.collectionURL(""), body, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

type condition map[string]any

func match(key string, value any) condition {
	return condition{"key": key, "match": map[string]any{"value": value}}
}

// accessFilter translates filter into a Qdrant filter object. ok is false for DenyAll.
func accessFilter(filter domain.AccessFilter) (map[string]any, bool) {
	switch filter.Kind {
	case domain.FilterNonPIOnly:
		return map[string]any{"must": []condition{match("is_pi", false)}}, true
	case domain.FilterNonPIOrOwned:
		if filter.OwnerUID == "" {
			return map[string]any{"must": []condition{match("is_pi", false)}}, true
		}
		return map[string]any{"should": []any{
			match("is_pi", false),
			map[string]any{"must": []condition{match("is_pi", true), match("owner_uid", filter.OwnerUID)}},
		}}, true
	default:
		return nil, false
	}
}

func byDocument(docID string) map[string]any {
	return map[string]any{"must": []condition{match("source_doc_id", docID)}}
}

type payload struct {
	ChunkID      string   `json:"chunk_id"`
	SourceDocID  string   `json:"source_doc_id"`
	DocumentName string   `json:"document_name"`
	Page         int      `json:"page"`
	Position     int      `json:"position"`
	Text         string   `json:"text"`
	IsPI         bool     `json:"is_pi"`
	OwnerUID     *string  `json:"owner_uid"`
	RolesAllowed []string `json:"roles_allowed"`
}

// Search queries the collection with the access filter applied server side
func (x *Index) Search(ctx context.Context, embedding []float32, filter domain.AccessFilter, limit int) ([]*domain.ScoredChunk, error) {
	f, ok := accessFilter(filter)
	if !ok || limit <= 0 {
		return nil, nil
	}

	req := map[string]any{
		"vector":       embedding,
		"limit":        limit,
		"with_payload": true,
		"filter":       f,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	if _, err := x.send(ctx, http.MethodPost, x.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]*domain.ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		p := r.Payload
		results = append(results, &domain.ScoredChunk{
			Chunk: &domain.IndexedChunk{
				ChunkID:      p.ChunkID,
				SourceDocID:  p.SourceDocID,
				DocumentName: p.DocumentName,
				Page:         p.Page,
				Position:     p.Position,
				Text:         p.Text,
				Access:       domain.AccessMetadata{IsPI: p.IsPI, OwnerUID: p.OwnerUID, RolesAllowed: p.RolesAllowed},
			},
			Score: r.Score,
		})
	}
	return results, nil
}

// Upsert writes all chunks in one request
func (x *Index) Upsert(ctx context.Context, chunks []*domain.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		points = append(points, map[string]any{
			"id":     uuid.NewSHA1(pointNamespace, []byte(c.ChunkID)).String(),
			"vector": c.Embedding,
			"payload": payload{
				ChunkID:      c.ChunkID,
				SourceDocID:  c.SourceDocID,
				DocumentName: c.DocumentName,
				Page:         c.Page,
				Position:     c.Position,
				Text:         c.Text,
				IsPI:         c.Access.IsPI,
				OwnerUID:     c.Access.OwnerUID,
				RolesAllowed: c.Access.RolesAllowed,
			},
		})
	}
	if _, err := x.send(ctx, http.MethodPut, x.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// DeleteByDocument removes every point of a source document
func (x *Index) DeleteByDocument(ctx context.Context, docID string) error {
	body := map[string]any{"filter": byDocument(docID)}
	if _, err := x.send(ctx, http.MethodPost, x.collectionURL("/points/delete?wait=true"), body, nil); err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

// CountByDocument returns the exact number of points of a source document
func (x *Index) CountByDocument(ctx context.Context, docID string) (int, error) {
	body := map[string]any{"filter": byDocument(docID), "exact": true}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if _, err := x.send(ctx, http.MethodPost, x.collectionURL("/points/count"), body, &resp); err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return resp.Result.Count, nil
}

// HealthCheck verifies the Qdrant node answers
func (x *Index) HealthCheck(ctx context.Context) error {
	_, err := x.send(ctx, http.MethodGet, x.url+"/healthz", nil, nil)
	return err
}

func (x *Index) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", x.url, x.collection, suffix)
}

// send issues a JSON request and decodes the response into out when given
func (x *Index) send(ctx context.Context, method, target string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s - %s", method, target, resp.Status, string(msg))
	}
	if out != nil {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}

package vespa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-drive/internal/core/domain"
	"github.com/custodia-labs/sercha-drive/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*Index)(nil)

const (
	namespace = "sercha"
	docType   = "drive_chunk"
	cluster   = "sercha"
)

// Index implements driven.VectorIndex over the Vespa document and query APIs
type Index struct {
	baseURL    string
	httpClient *http.Client
	targetHits int
}

// Config holds Vespa connection configuration
type Config struct {
	// BaseURL is the container endpoint (e.g., http://localhost:8080)
	BaseURL string

	// Timeout for HTTP requests
	Timeout time.Duration

	// TargetHits is the nearestNeighbor candidate count; at least the query limit
	TargetHits int
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Timeout:    30 * time.Second,
		TargetHits: 100,
	}
}

// NewIndex creates a new Vespa-backed VectorIndex
func NewIndex(cfg Config) *Index {
	return &Index{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		targetHits: cfg.TargetHits,
	}
}

type chunkFields struct {
	ChunkID      string   `json:"chunk_id"`
	SourceDocID  string   `json:"source_doc_id"`
	DocumentName string   `json:"document_name"`
	Page         int      `json:"page"`
	Position     int      `json:"position"`
	Text         string   `json:"text"`
	IsPI         bool     `json:"is_pi"`
	OwnerUID     string   `json:"owner_uid,omitempty"`
	RolesAllowed []string `json:"roles_allowed"`
	Embedding    *tensor  `json:"embedding,omitempty"`
}

type tensor struct {
	Values []float32 `json:"values"`
}

type searchResponse struct {
	Root struct {
		Fields struct {
			TotalCount int64 `json:"totalCount"`
		} `json:"fields"`
		Children []struct {
			Relevance float64     `json:"relevance"`
			Fields    chunkFields `json:"fields"`
		} `json:"children"`
	} `json:"root"`
}

// quote renders s as a YQL string literal
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// accessYQL translates filter into a YQL predicate. ok is false for DenyAll.
func accessYQL(filter domain.AccessFilter) (string, bool) {
	switch filter.Kind {
	case domain.FilterNonPIOnly:
		return "is_pi = false", true
	case domain.FilterNonPIOrOwned:
		if filter.OwnerUID == "" {
			return "is_pi = false", true
		}
		return fmt.Sprintf("(is_pi = false or (is_pi = true and owner_uid contains %s))", quote(filter.OwnerUID)), true
	default:
		return "", false
	}
}

// Search runs a filtered nearestNeighbor query
func (x *Index) Search(ctx context.Context, embedding []float32, filter domain.AccessFilter, limit int) ([]*domain.ScoredChunk, error) {
	clause, ok := accessYQL(filter)
	if !ok || limit <= 0 {
		return nil, nil
	}

	yql := fmt.Sprintf("select * from %s where ({targetHits:%d}nearestNeighbor(embedding, embedding)) and %s",
		docType, max(x.targetHits, limit), clause)
	searchReq := map[string]any{
		"yql":                    yql,
		"hits":                   limit,
		"ranking.profile":        "semantic",
		"input.query(embedding)": embedding,
	}

	var resp searchResponse
	if err := x.query(ctx, searchReq, &resp); err != nil {
		return nil, err
	}

	results := make([]*domain.ScoredChunk, 0, len(resp.Root.Children))
	for _, hit := range resp.Root.Children {
		f := hit.Fields
		access := domain.AccessMetadata{IsPI: f.IsPI, RolesAllowed: f.RolesAllowed}
		if f.OwnerUID != "" {
			owner := f.OwnerUID
			access.OwnerUID = &owner
		}
		results = append(results, &domain.ScoredChunk{
			Chunk: &domain.IndexedChunk{
				ChunkID:      f.ChunkID,
				SourceDocID:  f.SourceDocID,
				DocumentName: f.DocumentName,
				Page:         f.Page,
				Position:     f.Position,
				Text:         f.Text,
				Access:       access,
			},
			Score: hit.Relevance,
		})
	}
	return results, nil
}

// Upsert feeds chunks one document at a time
func (x *Index) Upsert(ctx context.Context, chunks []*domain.IndexedChunk) error {
	for _, c := range chunks {
		fields := chunkFields{
			ChunkID:      c.ChunkID,
			SourceDocID:  c.SourceDocID,
			DocumentName: c.DocumentName,
			Page:         c.Page,
			Position:     c.Position,
			Text:         c.Text,
			IsPI:         c.Access.IsPI,
			OwnerUID:     c.Access.Owner(),
			RolesAllowed: c.Access.RolesAllowed,
		}
		if len(c.Embedding) > 0 {
			fields.Embedding = &tensor{Values: c.Embedding}
		}
		body, err := json.Marshal(map[string]any{"fields": fields})
		if err != nil {
			return err
		}

		docURL := fmt.Sprintf("%s/document/v1/%s/%s/docid/%s", x.baseURL, namespace, docType, url.PathEscape(c.ChunkID))
		if err := x.do(ctx, http.MethodPost, docURL, body, false); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ChunkID, err)
		}
	}
	return nil
}

// DeleteByDocument removes every chunk of a document through a selection delete
func (x *Index) DeleteByDocument(ctx context.Context, docID string) error {
	selection := fmt.Sprintf("%s.source_doc_id==%s", docType, quote(docID))
	deleteURL := fmt.Sprintf("%s/document/v1/%s/%s/docid/?selection=%s&cluster=%s",
		x.baseURL, namespace, docType, url.QueryEscape(selection), cluster)
	if err := x.do(ctx, http.MethodDelete, deleteURL, nil, true); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", docID, err)
	}
	return nil
}

// CountByDocument returns the totalCount of a zero-hit query on the document
func (x *Index) CountByDocument(ctx context.Context, docID string) (int, error) {
	searchReq := map[string]any{
		"yql":  fmt.Sprintf("select * from %s where source_doc_id contains %s", docType, quote(docID)),
		"hits": 0,
	}
	var resp searchResponse
	if err := x.query(ctx, searchReq, &resp); err != nil {
		return 0, err
	}
	return int(resp.Root.Fields.TotalCount), nil
}

// HealthCheck verifies the container is up
func (x *Index) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.baseURL+"/state/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := x.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vespa health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vespa unhealthy: %s", resp.Status)
	}
	return nil
}

func (x *Index) query(ctx context.Context, searchReq map[string]any, out *searchResponse) error {
	body, err := json.Marshal(searchReq)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+"/search/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vespa query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vespa query failed: %s - %s", resp.Status, string(respBody))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (x *Index) do(ctx context.Context, method, target string, body []byte, allowNotFound bool) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if allowNotFound && resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vespa %s failed: %s - %s", method, resp.Status, string(respBody))
	}
	return nil
}

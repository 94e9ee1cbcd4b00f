// Package qdrant implements the dense half of the Store contract against a
// Qdrant collection addressed over its REST API (no SDK), using the same
// plain HTTP-client style as the llm adapters.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
)

// Client is a dense-search-only Store adapter. Lexical search and metadata
// live in the postgres adapter; internal/infrastructure/store/composite.go
// fans Store calls across both.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// vectorName maps a language label to the named dense vector Qdrant stores
// it under. Each document carries one named vector per language column.
func vectorName(language string) string {
	switch language {
	case "korean":
		return "dense_korean"
	case "english":
		return "dense_english"
	default:
		return "dense_" + language
	}
}

// EnsureCollection creates the collection with both named dense vectors if it
// does not already exist. Called once at bootstrap.
func (c *Client) EnsureCollection(ctx context.Context, koreanSize, englishSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"dense_korean":  map[string]any{"size": koreanSize, "distance": "Cosine"},
			"dense_english": map[string]any{"size": englishSize, "distance": "Cosine"},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		c.markEnsured()
		return nil
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("qdrant ensure collection status: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	c.markEnsured()
	return nil
}

func (c *Client) markEnsured() {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
}

// DenseSearch implements ports.Store.DenseSearch.
func (c *Client) DenseSearch(ctx context.Context, language string, embedding []float32, filter domain.Filter, limit int) ([]ports.RankedDocument, error) {
	reqBody := map[string]any{
		"vector":       map[string]any{"name": vectorName(language), "vector": embedding},
		"limit":        limit,
		"with_payload": true,
	}
	if qf := buildQdrantFilter(filter); qf != nil {
		reqBody["filter"] = qf
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal dense search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create dense search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &HTTPTransportError{Operation: "dense_search", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &HTTPStatusError{Operation: "dense_search", StatusCode: resp.StatusCode, Status: resp.Status, Body: string(raw)}
	}

	var searchResp struct {
		Result []struct {
			// Point ids may be integers or UUID strings; the document id
			// lives in the payload, so the point id is never decoded.
			ID      json.RawMessage `json:"id"`
			Score   float64         `json:"score"`
			Payload map[string]any  `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode dense search response: %w", err)
	}

	out := make([]ports.RankedDocument, 0, len(searchResp.Result))
	for i, r := range searchResp.Result {
		doc := documentFromPayload(r.Payload)
		doc.Similarity = r.Score
		out = append(out, ports.RankedDocument{Document: doc, Rank: i + 1})
	}
	return out, nil
}

func documentFromPayload(payload map[string]any) domain.Document {
	doc := domain.Document{
		ID:      getStringPayload(payload, "doc_id"),
		Content: getStringPayload(payload, "text"),
		Metadata: domain.Metadata{
			Source:        getStringPayload(payload, "source"),
			Page:          getIntPayload(payload, "page"),
			Category:      domain.Category(getStringPayload(payload, "category")),
			Caption:       getStringPayload(payload, "caption"),
			HumanFeedback: getStringPayload(payload, "human_feedback"),
			ImagePath:     getStringPayload(payload, "image_path"),
		},
	}
	if raw, ok := payload["entity"]; ok && raw != nil {
		if m, ok := raw.(map[string]any); ok {
			entity := &domain.Entity{
				Type:    getStringPayload(m, "type"),
				Title:   getStringPayload(m, "title"),
				Details: getStringPayload(m, "details"),
			}
			if kws, ok := m["keywords"].([]any); ok {
				for _, kw := range kws {
					if s, ok := kw.(string); ok {
						entity.Keywords = append(entity.Keywords, s)
					}
				}
			}
			doc.Metadata.Entity = entity
		}
	}
	return doc
}

func buildQdrantFilter(filter domain.Filter) map[string]any {
	var must []map[string]any

	if len(filter.Sources) > 0 {
		must = append(must, map[string]any{"key": "source", "match": map[string]any{"any": filter.Sources}})
	}
	if len(filter.Pages) > 0 {
		must = append(must, map[string]any{"key": "page", "match": map[string]any{"any": filter.Pages}})
	}
	if len(filter.Categories) > 0 {
		values := make([]string, 0, len(filter.Categories))
		for _, c := range filter.Categories {
			values = append(values, string(c))
		}
		must = append(must, map[string]any{"key": "category", "match": map[string]any{"any": values}})
	}
	if filter.CaptionContains != "" {
		must = append(must, map[string]any{"key": "caption", "match": map[string]any{"text": filter.CaptionContains}})
	}
	if filter.Entity != nil {
		if filter.Entity.Type != "" {
			must = append(must, map[string]any{"key": "entity.type", "match": map[string]any{"value": filter.Entity.Type}})
		}
		if filter.Entity.Title != "" {
			must = append(must, map[string]any{"key": "entity.title", "match": map[string]any{"text": filter.Entity.Title}})
		}
		if len(filter.Entity.Keywords) > 0 {
			// Single match-any condition: an array payload matches when any
			// of its elements equals any of the filter's keywords.
			must = append(must, map[string]any{"key": "entity.keywords", "match": map[string]any{"any": filter.Entity.Keywords}})
		}
	}

	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

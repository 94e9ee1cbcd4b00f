// Package web implements ports.WebTool against the Tavily search API, with a
// daily request quota and a short-lived result cache so the same sparse
// query does not re-hit the quota within a turn retry.
package web

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

	"github.com/patrickmn/go-cache"

	"github.com/kk7453603/ragcore/internal/core/domain"
)

// Client implements ports.WebTool. Quota exhaustion and upstream failure are
// both swallowed into an empty result, per the interface's contract: the
// orchestrator's web_fallback node treats "no web results" identically
// whether that's because the quota ran out or Tavily was unreachable.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	cache *cache.Cache

	mu           sync.Mutex
	dailyQuota   int
	quotaDate    string
	quotaUsed    int
}

func New(baseURL, apiKey string, dailyQuota int, cacheTTL time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	if dailyQuota <= 0 {
		dailyQuota = 100
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		cache:      cache.New(cacheTTL, 2*cacheTTL),
		dailyQuota: dailyQuota,
	}
}

// Search implements ports.WebTool.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]domain.Document, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	cacheKey := fmt.Sprintf("%d:%s", maxResults, query)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cloneDocuments(cached.([]domain.Document)), nil
	}

	if !c.takeQuota() {
		return nil, nil
	}

	docs, err := c.search(ctx, query, maxResults)
	if err != nil {
		return nil, nil
	}

	c.cache.SetDefault(cacheKey, docs)
	return cloneDocuments(docs), nil
}

func (c *Client) takeQuota() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := time.Now().UTC().Format("2006-01-02")
	if c.quotaDate != today {
		c.quotaDate = today
		c.quotaUsed = 0
	}
	if c.quotaUsed >= c.dailyQuota {
		return false
	}
	c.quotaUsed++
	return true
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

func (c *Client) search(ctx context.Context, query string, maxResults int) ([]domain.Document, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	reqBody, err := json.Marshal(tavilyRequest{
		APIKey:      c.apiKey,
		Query:       query,
		SearchDepth: "basic",
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("tavily search status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	docs := make([]domain.Document, 0, len(parsed.Results))
	for i, r := range parsed.Results {
		content := r.Content
		if r.Title != "" {
			content = fmt.Sprintf("**%s**\n\n%s", r.Title, content)
		}
		docs = append(docs, domain.Document{
			ID:      fmt.Sprintf("web:%x:%d", hashQuery(query), i),
			Content: content,
			Metadata: domain.Metadata{
				Source:   r.URL,
				Category: "web",
			},
		})
	}
	return docs, nil
}

func cloneDocuments(docs []domain.Document) []domain.Document {
	out := make([]domain.Document, len(docs))
	copy(out, docs)
	return out
}

func hashQuery(query string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(query); i++ {
		h ^= uint32(query[i])
		h *= 16777619
	}
	return h
}

// Package ollama implements ports.Model and ports.Embedder against a local
// Ollama server's /api/generate and /api/embed endpoints.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Generate implements ports.Model.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float64, deadline time.Time) (string, error) {
	ctx, cancel := contextWithDeadline(ctx, deadline)
	defer cancel()

	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": temperature,
		},
	}
	text, err := c.generate(ctx, reqBody)
	return text, wrapTemporaryIfNeeded("generate", err)
}

// GenerateStructured implements ports.Model: Ollama's "format" field pinned
// to the caller's JSON schema constrains the model to schema-conforming
// output; the adapter otherwise leaves parse validation to
// ports.GenerateStructured.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema json.RawMessage, temperature float64, deadline time.Time) (json.RawMessage, error) {
	ctx, cancel := contextWithDeadline(ctx, deadline)
	defer cancel()

	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": json.RawMessage(schema),
		"options": map[string]any{
			"temperature": temperature,
		},
	}
	text, err := c.generate(ctx, reqBody)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("generate_structured", err)
	}
	return json.RawMessage(extractJSONObject(text)), nil
}

// Embed implements ports.Embedder. Ollama's embedding models are not
// language-specific; the language argument is accepted for interface
// symmetry with the keyword/lexical path and otherwise unused here.
func (c *Client) Embed(ctx context.Context, language string, text string) ([]float32, error) {
	request := map[string]any{
		"model": c.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding result")
	}
	return response.Embeddings[0], nil
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func contextWithDeadline(ctx context.Context, deadline time.Time) (context.Context, context.CancelFunc) {
	if deadline.IsZero() {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline)
}

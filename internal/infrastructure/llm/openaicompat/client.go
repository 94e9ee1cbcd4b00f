// Package openaicompat implements ports.Model and ports.Embedder against any
// OpenAI-compatible provider's /chat/completions and /embeddings endpoints.
package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http2"
)

type Client struct {
	baseURL    string
	apiKey     string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, apiKey, genModel, embedModel string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
	}
	// Hosted providers negotiate h2 over TLS; keeping many concurrent
	// structured calls on one connection avoids per-call handshakes.
	if err := http2.ConfigureTransport(transport); err != nil {
		transport = &http.Transport{}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second, Transport: transport},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate implements ports.Model.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float64, deadline time.Time) (string, error) {
	ctx, cancel := contextWithDeadline(ctx, deadline)
	defer cancel()

	reqBody := map[string]any{
		"model":       c.genModel,
		"messages":    []chatMessage{{Role: "user", Content: prompt}},
		"temperature": temperature,
	}
	text, err := c.chat(ctx, reqBody, "generate")
	return text, wrapTemporaryIfNeeded("generate", err)
}

// GenerateStructured implements ports.Model: the provider's json_schema
// response format constrains output to the caller's schema; providers that
// ignore it still tend to emit a JSON object, which the brace extraction
// below recovers before ports.GenerateStructured validates it.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, schema json.RawMessage, temperature float64, deadline time.Time) (json.RawMessage, error) {
	ctx, cancel := contextWithDeadline(ctx, deadline)
	defer cancel()

	reqBody := map[string]any{
		"model":       c.genModel,
		"messages":    []chatMessage{{Role: "user", Content: prompt}},
		"temperature": temperature,
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "result",
				"schema": json.RawMessage(schema),
			},
		},
	}
	text, err := c.chat(ctx, reqBody, "generate_structured")
	if err != nil {
		return nil, wrapTemporaryIfNeeded("generate_structured", err)
	}
	return json.RawMessage(extractJSONObject(text)), nil
}

// Embed implements ports.Embedder. The embedding model is not
// language-specific; the language argument selects the vector column
// downstream and is unused here.
func (c *Client) Embed(ctx context.Context, language string, text string) ([]float32, error) {
	request := map[string]any{
		"model": c.embedModel,
		"input": []string{text},
	}

	var response struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/embeddings", request, &response, "embed"); err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("openai-compat embed: empty embedding result")
	}
	return response.Data[0].Embedding, nil
}

func (c *Client) chat(ctx context.Context, reqBody map[string]any, operation string) (string, error) {
	var response chatResponse
	if err := c.postJSON(ctx, "/chat/completions", reqBody, &response, operation); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai-compat %s: empty choices", operation)
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
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

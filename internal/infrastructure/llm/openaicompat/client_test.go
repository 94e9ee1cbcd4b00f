package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateSendsBearerAndReadsFirstChoice(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  hi there  "}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "sk-test", "gpt-4o-mini", "text-embedding-3-small")
	text, err := client.Generate(context.Background(), "say hi", 0.7, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if text != "hi there" {
		t.Fatalf("expected trimmed content, got %q", text)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Fatalf("expected generation model in request, got %v", gotBody["model"])
	}
}

func TestGenerateStructuredBindsSchemaAndExtractsObject(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Sure: {\"answer\":42} hope that helps"}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "", "gpt-4o-mini", "")
	schema := json.RawMessage(`{"type":"object","properties":{"answer":{"type":"integer"}}}`)
	raw, err := client.GenerateStructured(context.Background(), "q", schema, 0, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if format, ok := gotBody["response_format"].(map[string]any); !ok || format["type"] != "json_schema" {
		t.Fatalf("expected json_schema response format, got %v", gotBody["response_format"])
	}
	var out struct {
		Answer int `json:"answer"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("expected recoverable JSON object, got %q: %v", string(raw), err)
	}
	if out.Answer != 42 {
		t.Fatalf("expected extracted object, got %q", string(raw))
	}
}

func TestEmbedReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,0.25]}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "", "", "text-embedding-3-small")
	vec, err := client.Embed(context.Background(), "english", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Fatalf("unexpected embedding: %v", vec)
	}
}

func TestChatErrorIncludesStatusBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad schema"}}`))
	}))
	defer server.Close()

	client := New(server.URL, "", "gpt-4o-mini", "")
	_, err := client.Generate(context.Background(), "q", 0, time.Now().Add(time.Minute))
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", statusErr.StatusCode)
	}
}

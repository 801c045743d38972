package translate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"dubmaster/internal/config"
	"dubmaster/internal/translate"
)

func clientConfig(baseURL string) config.Translator {
	return config.Translator{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		Model:          "test-model",
		TimeoutSeconds: 5,
		BatchSize:      50,
	}
}

func completionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func TestTranslateBatchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer auth, got %q", got)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody(`{"translations": ["uno", "dos"]}`)))
	}))
	defer server.Close()

	client := translate.NewClient(clientConfig(server.URL))
	got, err := client.TranslateBatch(context.Background(), []string{"one", "two"}, "en", "es")
	if err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}
	if len(got) != 2 || got[0] != "uno" || got[1] != "dos" {
		t.Fatalf("unexpected translations: %v", got)
	}
}

func TestTranslateBatchStripsCodeFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fenced := "```json\n{\"translations\": [\"hola\"]}\n```"
		w.Write([]byte(completionBody(fenced)))
	}))
	defer server.Close()

	client := translate.NewClient(clientConfig(server.URL))
	got, err := client.TranslateBatch(context.Background(), []string{"hello"}, "en", "es")
	if err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}
	if got[0] != "hola" {
		t.Fatalf("unexpected translation: %v", got)
	}
}

func TestTranslateBatchRetriesOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(completionBody(`{"translations": ["ok"]}`)))
	}))
	defer server.Close()

	client := translate.NewClient(clientConfig(server.URL),
		translate.WithSleeper(func(time.Duration) {}))
	got, err := client.TranslateBatch(context.Background(), []string{"x"}, "en", "hi")
	if err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}
	if got[0] != "ok" {
		t.Fatalf("unexpected translation: %v", got)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestTranslateBatchDoesNotRetryClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := translate.NewClient(clientConfig(server.URL),
		translate.WithSleeper(func(time.Duration) {}))
	if _, err := client.TranslateBatch(context.Background(), []string{"x"}, "en", "hi"); err == nil {
		t.Fatal("expected error for unauthorized response")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestTranslateBatchRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionBody(`{"translations": ["only one"]}`)))
	}))
	defer server.Close()

	client := translate.NewClient(clientConfig(server.URL))
	if _, err := client.TranslateBatch(context.Background(), []string{"a", "b"}, "en", "hi"); err == nil {
		t.Fatal("expected error when translation count mismatches")
	}
}

func TestTranslateBatchRequiresAPIKey(t *testing.T) {
	cfg := clientConfig("http://127.0.0.1:0")
	cfg.APIKey = ""
	client := translate.NewClient(cfg)
	if _, err := client.TranslateBatch(context.Background(), []string{"a"}, "en", "hi"); err == nil {
		t.Fatal("expected error without api key")
	}
}

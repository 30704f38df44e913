package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func completionServer(t *testing.T, content func(call int) (int, any)) (*httptest.Server, *int) {
	t.Helper()
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		status, payload := content(calls)
		if status != http.StatusOK {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(status)
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func messagePayload(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{"finish_reason": "stop", "message": map[string]any{"content": content}},
		},
	}
}

func TestCompleteJSONSendsModelAndHeaders(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if r.Header.Get("X-Title") != "linksort" {
			t.Errorf("missing X-Title header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(messagePayload(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Title: "linksort"})
	content, err := client.CompleteJSON(context.Background(), "vendor/model-a", "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("unexpected content %q", content)
	}
	if got.Model != "vendor/model-a" || got.ResponseFormat["type"] != "json_object" || got.Temperature != 0 {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "user" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
}

func TestCompleteJSONRequiresInputs(t *testing.T) {
	client := NewClient(Config{APIKey: "key"})
	if _, err := client.CompleteJSON(context.Background(), "", "s", "u"); err == nil {
		t.Fatal("expected error without model")
	}
	noKey := NewClient(Config{})
	if _, err := noKey.CompleteJSON(context.Background(), "m", "s", "u"); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server, _ := completionServer(t, func(int) (int, any) {
		return http.StatusOK, messagePayload("```json\n{\"ok\":true}\n```")
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	if err := client.HealthCheck(context.Background(), "demo"); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailureIsNotRetried(t *testing.T) {
	server, calls := completionServer(t, func(int) (int, any) {
		return http.StatusUnauthorized, map[string]string{"error": "unauthorized"}
	})
	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL}, WithSleeper(func(time.Duration) {}))
	err := client.HealthCheck(context.Background(), "demo")
	if err == nil {
		t.Fatal("expected health check to fail")
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if IsTransient(err) {
		t.Fatal("401 should not be transient")
	}
	if *calls != 1 {
		t.Fatalf("expected a single call, got %d", *calls)
	}
}

func TestCompleteJSONToolCallArguments(t *testing.T) {
	server, _ := completionServer(t, func(int) (int, any) {
		return http.StatusOK, map[string]any{
			"choices": []any{map[string]any{
				"message": map[string]any{
					"content": "",
					"tool_calls": []any{map[string]any{
						"function": map[string]any{"arguments": `{"results":[]}`},
					}},
				},
			}},
		}
	})
	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	content, err := client.CompleteJSON(context.Background(), "m", "s", "u")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if content != `{"results":[]}` {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestCompleteJSONDeltaAndLegacyText(t *testing.T) {
	for name, payload := range map[string]any{
		"delta":  map[string]any{"choices": []any{map[string]any{"delta": map[string]any{"content": `{"a":1}`}}}},
		"legacy": map[string]any{"choices": []any{map[string]any{"text": `{"a":1}`}}},
	} {
		t.Run(name, func(t *testing.T) {
			server, _ := completionServer(t, func(int) (int, any) { return http.StatusOK, payload })
			client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
			content, err := client.CompleteJSON(context.Background(), "m", "s", "u")
			if err != nil {
				t.Fatalf("CompleteJSON returned error: %v", err)
			}
			if content != `{"a":1}` {
				t.Fatalf("unexpected content %q", content)
			}
		})
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	server, calls := completionServer(t, func(call int) (int, any) {
		if call == 1 {
			return http.StatusTooManyRequests, map[string]string{"error": "rate limited"}
		}
		return http.StatusOK, messagePayload(`{"ok":true}`)
	})

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	if _, err := client.CompleteJSON(context.Background(), "m", "s", "u"); err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if *calls != 2 {
		t.Fatalf("expected 2 calls, got %d", *calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientEmptyContentExhaustsRetries(t *testing.T) {
	server, calls := completionServer(t, func(int) (int, any) {
		return http.StatusOK, messagePayload("")
	})
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithRetryBackoff(0, 0),
		WithRetryMaxAttempts(3),
	)
	_, err := client.CompleteJSON(context.Background(), "m", "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	var emptyErr *EmptyContentError
	if !errors.As(err, &emptyErr) || emptyErr.FinishReason != "stop" {
		t.Fatalf("expected empty content error, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("unexpected error %v", err)
	}
	if *calls != 3 {
		t.Fatalf("expected 3 calls, got %d", *calls)
	}
}

func TestDecodeLLMJSONHandlesProse(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	if err := DecodeLLMJSON("Sure! Here you go: {\"name\":\"x\"} hope that helps", &out); err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if out.Name != "x" {
		t.Fatalf("unexpected name %q", out.Name)
	}
	if err := DecodeLLMJSON("   ", &out); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("3"); !ok || d != 3*time.Second {
		t.Fatalf("unexpected %v %v", d, ok)
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Fatal("negative should be rejected")
	}
	if _, ok := parseRetryAfter("soon"); ok {
		t.Fatal("garbage should be rejected")
	}
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteSendsPromptAndParsesChoice(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"model":"gpt-test","choices":[{"message":{"role":"assistant","content":"  Dear counsel.  "}}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/v1/", APIKey: "sk-test", Model: "gpt-test"})
	completion, err := client.Complete(context.Background(), "Draft a demand letter")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completion.Text != "Dear counsel." || completion.PromptTokens != 12 || completion.Model != "gpt-test" {
		t.Fatalf("unexpected completion %+v", completion)
	}
	if got.Model != "gpt-test" || len(got.Messages) != 2 || got.Messages[1].Content != "Draft a demand letter" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "api error message", status: http.StatusTooManyRequests, body: `{"error":{"message":"rate limited"}}`, wantErr: "status 429: rate limited"},
		{name: "non json error", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantErr: "status 502"},
		{name: "empty choices", status: http.StatusOK, body: `{"choices":[]}`, wantErr: "no content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(Config{BaseURL: server.URL, APIKey: "k"}).Complete(context.Background(), "p")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCompleteNotConfigured(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "https://api.example.com"}).Complete(context.Background(), "p"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

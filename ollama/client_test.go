package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateSuccess(t *testing.T) {
	var gotModel, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}
		gotModel, gotPrompt = req.Model, req.Prompt
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "  It's sunny \n", "done": true})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Model: "llama2"}
	text, err := c.Generate(context.Background(), "what's the weather")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "It's sunny" {
		t.Errorf("text = %q, want trimmed completion", text)
	}
	if gotModel != "llama2" || gotPrompt != "what's the weather" {
		t.Errorf("request = (%q, %q)", gotModel, gotPrompt)
	}
}

func TestGenerateServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Model: "llama2"}
	_, err := c.Generate(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != KindUnavailable {
		t.Errorf("kind = %v, want unavailable", KindOf(err))
	}
	if !IsRetryable(err) {
		t.Error("unavailable errors should be retryable")
	}
}

func TestGenerateBadRequestIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown model", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Model: "nope"}
	_, err := c.Generate(context.Background(), "hi")
	if KindOf(err) != KindRejected {
		t.Errorf("kind = %v, want rejected", KindOf(err))
	}
	if IsRetryable(err) {
		t.Error("rejected errors must not be retryable")
	}
}

func TestGenerateEmptyCompletionIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "   ", "done": true})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Model: "llama2"}
	_, err := c.Generate(context.Background(), "hi")
	if KindOf(err) != KindRejected {
		t.Errorf("kind = %v, want rejected", KindOf(err))
	}
}

func TestGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Model: "llama2"}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Generate(ctx, "hi")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if KindOf(err) != KindTimeout {
		t.Errorf("kind = %v, want timeout", KindOf(err))
	}
	if IsRetryable(err) {
		t.Error("timeouts must not be retryable")
	}
}

func TestConnectionRefusedIsUnavailable(t *testing.T) {
	c := &Client{BaseURL: "http://127.0.0.1:1", Model: "llama2"}
	_, err := c.Generate(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	var oe *Error
	if !errors.As(err, &oe) {
		t.Fatalf("expected *ollama.Error, got %T", err)
	}
	if oe.Kind != KindUnavailable {
		t.Errorf("kind = %v, want unavailable", oe.Kind)
	}
}

// Package ollama contains a minimal client for the Ollama completion API,
// covering the single /api/generate call the bot depends on.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Client calls an Ollama server. BaseURL and Model come from configuration;
// HTTPClient is injectable for tests and defaults to http.DefaultClient.
type Client struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends the prompt and returns the completion text. The caller owns
// the timeout: pass a context with a deadline. A deadline hit is returned as a
// timeout-kind error, connection problems as unavailable, and bad requests or
// empty completions as rejected.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.BaseURL == "" {
		return "", &Error{Kind: KindUnavailable, Err: fmt.Errorf("ollama base url empty")}
	}
	body, err := json.Marshal(generateRequest{Model: c.Model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", &Error{Kind: KindRejected, Err: fmt.Errorf("encode request: %w", err)}
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindRejected, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", &Error{Kind: KindTimeout, Err: err}
		}
		return "", &Error{Kind: KindUnavailable, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := KindRejected
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = KindUnavailable
		}
		return "", &Error{Kind: kind, Err: fmt.Errorf("ollama generate failed: %s: %s", resp.Status, string(b))}
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		if ctx.Err() != nil {
			return "", &Error{Kind: KindTimeout, Err: err}
		}
		return "", &Error{Kind: KindRejected, Err: fmt.Errorf("decode response: %w", err)}
	}
	text := strings.TrimSpace(gr.Response)
	if text == "" {
		return "", &Error{Kind: KindRejected, Err: fmt.Errorf("empty completion")}
	}
	return text, nil
}

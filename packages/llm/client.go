// Package llm
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	retries    int
	retryDelay time.Duration
	httpClient *http.Client
}

type Config struct {
	Endpoint   string
	Model      string
	APIKey     string
	Retries    int
	RetryDelay time.Duration
}

func New(cfg Config) *Client {
	retries := cfg.Retries
	if retries < 1 {
		retries = 1
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		retries:    retries,
		retryDelay: cfg.RetryDelay,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Configured reports whether the client can make calls; callers treat an
// unconfigured client as "feature disabled", not an error.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.endpoint != "" && c.model != ""
}

// Complete sends one system+user exchange and returns the assistant text.
// Transport and 5xx/429 errors are retried with linear backoff; everything
// else is terminal.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("llm client misconfigured")
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt-1) * c.retryDelay):
			}
		}

		text, retryable, err := c.complete(ctx, systemPrompt, userPrompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}
	return "", fmt.Errorf("llm call failed after %d attempts: %w", c.retries, lastErr)
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, bool, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("marshal llm payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		return "", retryable, fmt.Errorf("llm error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", false, fmt.Errorf("decode llm response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("llm response had no choices")
	}
	return parsed.Choices[0].Message.Content, false, nil
}

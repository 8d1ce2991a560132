package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// OpenAICompatClient talks to any /chat/completions endpoint that follows the
// OpenAI wire format.
type OpenAICompatClient struct {
	BaseURL  string
	Model    string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
	Client   *http.Client

	cacheMu    sync.Mutex
	cacheStore map[string]cacheEntry
}

type cacheEntry struct {
	value string
	exp   time.Time
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (r RateLimitError) Error() string {
	if r.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", r.RetryAfter)
	}
	return "rate limited"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

func (a *OpenAICompatClient) CompleteChat(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (string, error) {
	if strings.TrimSpace(a.BaseURL) == "" {
		return "", fmt.Errorf("LLM_BASE_URL is not set")
	}
	if strings.TrimSpace(a.Model) == "" {
		return "", fmt.Errorf("LLM_MODEL is not set")
	}

	key := string(opts.Purpose) + "\x00" + systemPrompt + "\x00" + userPrompt
	if v, ok := a.cacheGet(key); ok {
		return v, nil
	}

	payload := chatRequest{
		Model:       a.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if systemPrompt != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: userPrompt})

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	url := strings.TrimRight(a.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(a.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+a.APIKey)
	}

	resp, err := a.httpClient(ctx).Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("completion request timed out: %w", err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", fmt.Errorf("completion request timed out: %w", err)
		}
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if resp.StatusCode == http.StatusTooManyRequests {
			if d := extractRetryAfter(resp, errBody); d > 0 {
				return "", RateLimitError{RetryAfter: d}
			}
			return "", RateLimitError{}
		}
		return "", fmt.Errorf("completion http error: %s: %v", resp.Status, errBody)
	}

	var res struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	answer := res.Choices[0].Message.Content
	a.cacheSet(key, answer)
	return answer, nil
}

func (a *OpenAICompatClient) httpClient(ctx context.Context) *http.Client {
	if a.Client != nil {
		return a.Client
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			timeout = remaining
		}
	}
	return &http.Client{Timeout: timeout}
}

func (a *OpenAICompatClient) cacheGet(key string) (string, bool) {
	if a.CacheTTL <= 0 {
		return "", false
	}
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if e, ok := a.cacheStore[key]; ok {
		if time.Now().Before(e.exp) {
			return e.value, true
		}
		delete(a.cacheStore, key)
	}
	return "", false
}

func (a *OpenAICompatClient) cacheSet(key, value string) {
	if a.CacheTTL <= 0 {
		return
	}
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if a.cacheStore == nil {
		a.cacheStore = map[string]cacheEntry{}
	}
	a.cacheStore[key] = cacheEntry{
		value: value,
		exp:   time.Now().Add(a.CacheTTL),
	}
}

func extractRetryAfter(resp *http.Response, errBody map[string]any) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if dur, err := time.ParseDuration(s + "s"); err == nil {
			return dur
		}
	}
	errObj, ok := errBody["error"].(map[string]any)
	if !ok {
		return 0
	}
	details, ok := errObj["details"].([]any)
	if !ok {
		return 0
	}
	for _, d := range details {
		m, ok := d.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := m["@type"].(string); ok && strings.Contains(t, "RetryInfo") {
			if s, ok := m["retryDelay"].(string); ok {
				if dur, err := time.ParseDuration(s); err == nil {
					return dur
				}
			}
		}
	}
	return 0
}

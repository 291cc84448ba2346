// Package openai is a small HTTP client for the OpenAI endpoints the bot uses:
// chat completions, speech and usage.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jaam8/lingua_bot/pkg/retry"
	"go.uber.org/zap"
)

type Config struct {
	APIKey  string        `yaml:"OPENAI_API_KEY" env:"OPENAI_API_KEY"`
	BaseURL string        `yaml:"OPENAI_BASE_URL" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com"`
	Timeout time.Duration `yaml:"OPENAI_TIMEOUT" env:"OPENAI_TIMEOUT" env-default:"60s"`
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      retry.Config
	l          *zap.Logger
}

func New(cfg Config, rc retry.Config, l *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		retry:      rc,
		l:          l,
	}, nil
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// ChatCompletion sends one user message and returns the first choice's content.
func (c *Client) ChatCompletion(ctx context.Context, model string, temperature float64, prompt string) (string, error) {
	req := chatRequest{
		Model:       model,
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
	}
	raw, err := c.do(ctx, http.MethodPost, "/v1/chat/completions", req)
	if err != nil {
		return "", err
	}
	var resp chatResponse
	if err = json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("openai decode error: %w", err)
	}
	c.l.Debug("chat completion",
		zap.String("model", model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Speech returns encoded audio for text.
func (c *Client) Speech(ctx context.Context, model, voice, format, text string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/v1/audio/speech", speechRequest{
		Model:          model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: format,
	})
}

// Usage returns the raw usage report between two dates (inclusive, YYYY-MM-DD).
func (c *Client) Usage(ctx context.Context, start, end time.Time) ([]byte, error) {
	q := url.Values{}
	q.Set("start_date", start.Format(time.DateOnly))
	q.Set("end_date", end.Format(time.DateOnly))
	return c.do(ctx, http.MethodGet, "/v1/usage?"+q.Encode(), nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	return retry.Do(ctx, c.retry, c.l, "openai "+path, func(ctx context.Context) ([]byte, error) {
		raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			return raw, nil
		}
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && !httpErr.Retryable() {
			return nil, retry.Permanent(err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) || errors.As(err, &httpErr) {
			return nil, err
		}
		return nil, retry.Permanent(err)
	})
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

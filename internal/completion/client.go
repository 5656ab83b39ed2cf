// Package completion talks to the OpenRouter chat completions API.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL   = "https://openrouter.ai/api/v1"
	DefaultChatModel = "openai/gpt-5"
	DefaultPlanModel = "openai/gpt-4"
)

// Config configures the client.
type Config struct {
	BaseURL string
	Referer string
	Title   string
	Timeout time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Referer: "https://symposium.app",
		Title:   "Symposium",
		Timeout: 90 * time.Second,
	}
}

// Sampling parameters. They are fixed so that stubbed tests see stable requests.
var (
	chatParams = sampling{MaxTokens: 2000, Temperature: 0.7, TopP: 0.9, FrequencyPenalty: 0.1, PresencePenalty: 0.1}
	planParams = sampling{MaxTokens: 3000, Temperature: 0.3, TopP: 0.9}
)

type sampling struct {
	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64       `json:"presence_penalty,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Request is one chat completion call.
type Request struct {
	Credential   string
	Model        string
	SystemPrompt string
	UserMessage  string
}

// Client calls the completion service. It is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New creates a client. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Title == "" {
		cfg.Title = "Symposium"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger.Named("completion"),
	}
}

// Complete sends the composed system prompt and the user message. It never
// returns an error: every failure is reported as a Failure outcome.
func (c *Client) Complete(ctx context.Context, req Request) Outcome {
	if strings.TrimSpace(req.Credential) == "" {
		return Failure{Reason: ErrMissingCredential}
	}

	body := newChatRequest(req.Model, chatParams, req.SystemPrompt, req.UserMessage)
	c.logger.Debug("chat completion request",
		zap.String("model", req.Model),
		zap.Int("system_prompt_len", len(req.SystemPrompt)),
	)

	start := time.Now()
	resp, err := c.chat(ctx, req.Credential, body)
	if err != nil {
		c.logger.Warn("chat completion failed", zap.String("model", req.Model), zap.Error(err))
		return Failure{Reason: err}
	}

	content, err := firstContent(resp)
	if err != nil {
		return Failure{Reason: err}
	}

	c.logger.Debug("chat completion done",
		zap.String("model", req.Model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("response_len", len(content)),
	)
	return Success{Content: content, Model: req.Model, Usage: resp.Usage}
}

func newChatRequest(model string, p sampling, system, user string) chatRequest {
	return chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:        p.MaxTokens,
		Temperature:      p.Temperature,
		TopP:             p.TopP,
		FrequencyPenalty: p.FrequencyPenalty,
		PresencePenalty:  p.PresencePenalty,
	}
}

func firstContent(resp chatResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func (c *Client) chat(ctx context.Context, credential string, body chatRequest) (chatResponse, error) {
	var out chatResponse
	err := c.do(ctx, http.MethodPost, "/chat/completions", credential, body, &out)
	return out, err
}

// do performs one request bounded by the configured timeout and decodes a
// JSON answer into out.
func (c *Client) do(ctx context.Context, method, path, credential string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	req.Header.Set("X-Title", c.cfg.Title)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, c.cfg.Timeout)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return &Error{Status: resp.StatusCode, Message: eb.Error.Message}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Package llm provides ModelStream implementations: a streaming client for
// OpenAI-compatible chat-completions endpoints and a scripted client for
// tests and offline runs.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"corax/internal/agent/ports"
)

const defaultTimeout = 120 * time.Second

// Client streams chat completions from an OpenAI-compatible endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     ports.Logger
}

// ClientOptions configures a Client. BaseURL and Model are required.
type ClientOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  ports.Logger
}

// NewClient builds a streaming client.
func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		model:      opts.Model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     ports.OrNoop(opts.Logger),
	}
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []ports.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Stream opens a server-sent-events completion and forwards content deltas.
// The returned channel is closed when the stream ends; transport failures
// arrive as a final chunk carrying Err.
func (c *Client) Stream(ctx context.Context, systemPrompt string, messages []ports.Message) (<-chan ports.Chunk, error) {
	payload := chatRequest{
		Model:    c.model,
		Messages: append([]ports.Message{{Role: "system", Content: systemPrompt}}, messages...),
		Stream:   true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("llm returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	out := make(chan ports.Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				if data == "[DONE]" {
					return
				}
				continue
			}

			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				c.logger.Debug("skipping unparseable stream event: %v", err)
				continue
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case out <- ports.Chunk{Delta: choice.Delta.Content}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case out <- ports.Chunk{Err: fmt.Errorf("stream read: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

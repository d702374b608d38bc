// Package llmclient sends assembled prompts to a chat-completion endpoint
// and returns the assistant message text, with retry/backoff and a
// network-free dry-run mode (spec §4.4).
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/strawberry-computer/vibec/internal/systemprompt"
	"go.uber.org/zap"
)

// Config is the subset of cliconfig.Config the client needs, duplicated as
// plain fields so this package does not depend on the CLI config package.
type Config struct {
	APIURL   string
	APIKey   string
	APIModel string
	DryRun   bool
	Retries  int
}

// Client posts chat-completion requests.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// New builds a Client. httpClient may be nil to use http.DefaultClient.
func New(cfg Config, httpClient *http.Client, log *zap.SugaredLogger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, httpClient: httpClient, log: log}
}

// dryRunFixture is the literal artifact returned whenever dry-run is set,
// so the full pipeline (parser, workspace, engine) can be exercised without
// any network I/O.
const dryRunFixture = "File: example/file\n```lang\ncontent\n```"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// TransientError wraps a non-2xx HTTP response, retriable by the caller.
type TransientError struct {
	StatusCode int
	Body       string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("llmclient: transient error, status %d: %s", e.StatusCode, e.Body)
}

// Preflight fails fast when dry-run is off and no API key is configured,
// before any Complete call attempts network I/O (spec §4.4).
func Preflight(cfg Config) error {
	if !cfg.DryRun && cfg.APIKey == "" {
		return fmt.Errorf("llmclient: apiKey is required unless dry-run is enabled")
	}
	return nil
}

// Complete sends prompt as the user message alongside the canonical system
// instruction, retrying transient failures with exponential backoff.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.cfg.DryRun {
		return dryRunFixture, nil
	}
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("llmclient: apiKey is required unless dry-run is enabled")
	}

	var lastErr error
	attempts := c.cfg.Retries + 1
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			backoff := time.Duration(math.Min(1000*math.Pow(2, float64(n-2)), 30000)) * time.Millisecond
			if c.log != nil {
				c.log.Warnw("retrying LLM request", "attempt", n, "backoff", backoff, "error", lastErr)
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := c.complete(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("llmclient: all attempts failed: %w", lastErr)
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.cfg.APIModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemprompt.Text},
			{Role: "user", Content: prompt},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llmclient: encoding request: %w", err)
	}

	url := c.cfg.APIURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llmclient: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llmclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llmclient: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TransientError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("llmclient: decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llmclient: response had no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/chatline-backend/internal/pkg/httpx"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
	"github.com/yungbote/chatline-backend/internal/utils"
)

// Turn is one prior conversation message passed to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to an Azure OpenAI chat-completions deployment.
type Client interface {
	// Plain text, single shot.
	GenerateText(ctx context.Context, system string, user string) (string, error)

	// Stream deltas for a conversation. Returns the full assembled text.
	StreamChat(ctx context.Context, system string, turns []Turn, onDelta func(delta string)) (string, error)
}

type client struct {
	log        *logger.Logger
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(utils.GetEnv("AZURE_OPENAI_ENDPOINT", "", log)), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("missing AZURE_OPENAI_ENDPOINT")
	}
	apiKey := strings.TrimSpace(utils.GetEnv("AZURE_OPENAI_API_KEY", "", log))
	if apiKey == "" {
		return nil, fmt.Errorf("missing AZURE_OPENAI_API_KEY")
	}

	deployment := utils.GetEnv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o", log)
	apiVersion := utils.GetEnv("AZURE_OPENAI_API_VERSION", "2024-10-21", log)
	timeoutSec := utils.GetEnvAsInt("AZURE_OPENAI_TIMEOUT_SECONDS", 120, log)
	maxRetries := utils.GetEnvAsInt("AZURE_OPENAI_MAX_RETRIES", 3, log)

	return &client{
		log:        log.With("component", "openai"),
		endpoint:   endpoint,
		apiKey:     apiKey,
		deployment: deployment,
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return "openai http " + strconv.Itoa(e.StatusCode) + ": " + e.Body
}

func (e *httpError) HTTPStatusCode() int { return e.StatusCode }

type chatRequest struct {
	Messages    []Turn   `json:"messages"`
	Stream      bool     `json:"stream,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *client) completionsURL() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deployment, c.apiVersion)
}

func (c *client) doOnce(ctx context.Context, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return resp, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, nil
}

// doRetry runs doOnce with exponential backoff on 408/429/5xx and transport
// timeouts. The caller owns resp.Body on success.
func (c *client) doRetry(ctx context.Context, body any) (*http.Response, error) {
	backoff := 1 * time.Second
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := c.doOnce(ctx, body)
		if err == nil {
			return resp, nil
		}
		if attempt >= c.maxRetries || !httpx.IsRetryableError(err) {
			return nil, err
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
}

func buildMessages(system string, turns []Turn) []Turn {
	msgs := make([]Turn, 0, len(turns)+1)
	if strings.TrimSpace(system) != "" {
		msgs = append(msgs, Turn{Role: "system", Content: system})
	}
	return append(msgs, turns...)
}

func (c *client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	req := chatRequest{Messages: buildMessages(system, []Turn{{Role: "user", Content: user}})}

	resp, err := c.doRetry(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai decode error: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *client) StreamChat(ctx context.Context, system string, turns []Turn, onDelta func(delta string)) (string, error) {
	req := chatRequest{Messages: buildMessages(system, turns), Stream: true}

	resp, err := c.doRetry(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	err = streamSSE(resp.Body, func(_ string, data string) error {
		if data == "[DONE]" {
			return nil
		}
		var chunk chatStreamChunk
		if uErr := json.Unmarshal([]byte(data), &chunk); uErr != nil {
			// Azure occasionally interleaves non-chunk frames; skip them.
			return nil
		}
		for _, ch := range chunk.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			full.WriteString(ch.Delta.Content)
			if onDelta != nil {
				onDelta(ch.Delta.Content)
			}
		}
		return nil
	})
	if err != nil {
		return full.String(), err
	}
	return full.String(), nil
}

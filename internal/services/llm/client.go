package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wordslearner/internal/services"
	"wordslearner/internal/services/retry"
)

const (
	providerName       = "llm"
	defaultBaseURL     = "https://aihubmix.com/v1/chat/completions"
	defaultModel       = "gemini-3-pro-preview"
	defaultTemperature = 0.7
	defaultHTTPTimeout = 5 * time.Minute
	maxErrorBody       = 64 << 10
)

// TextGenerator streams model output for a prompt.
type TextGenerator interface {
	StreamResponse(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client wraps an OpenAI-compatible streaming chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      retry.Policy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides how many times opening the stream is tried.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retry.Attempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.BaseDelay = baseDelay
		c.retry.MaxDelay = maxDelay
	}
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.retry.Sleep = sleeper
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Temperature:    cfg.Temperature,
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	if client.cfg.Temperature <= 0 {
		client.cfg.Temperature = defaultTemperature
	}
	return client
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		// Some providers send whole messages on the final chunk.
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StreamResponse sends prompt as a single user message and yields content
// fragments as they arrive. The sequence is single-use. Stopping the range
// early or cancelling ctx closes the underlying response body.
func (c *Client) StreamResponse(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			yield("", services.NewProviderError(providerName, services.KindAPIResponse, "prompt required", nil))
			return
		}
		if c.cfg.APIKey == "" {
			yield("", services.NewProviderError(providerName, services.KindMissingCredential, "llm api key not configured", nil))
			return
		}
		payload := chatCompletionRequest{
			Model:       c.cfg.Model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: c.cfg.Temperature,
			Stream:      true,
		}
		body, err := c.openStream(ctx, payload)
		if err != nil {
			yield("", err)
			return
		}
		defer body.Close()

		stop := context.AfterFunc(ctx, func() { _ = body.Close() })
		defer stop()

		stopped := false
		streamErr := streamSSE(body, func(data string) error {
			if data == "[DONE]" {
				return errStreamDone
			}
			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return services.NewProviderError(providerName, services.KindParsing, SummarizePayload(data), err)
			}
			if chunk.Error != nil {
				return services.NewProviderError(providerName, services.KindAPIResponse, strings.TrimSpace(chunk.Error.Message), nil)
			}
			for _, choice := range chunk.Choices {
				fragment := choice.Delta.Content
				if fragment == "" {
					fragment = choice.Message.Content
				}
				if fragment == "" {
					continue
				}
				if !yield(fragment, nil) {
					stopped = true
					return errStreamDone
				}
			}
			return nil
		})
		if stopped {
			return
		}
		if errors.Is(streamErr, errStreamDone) {
			streamErr = nil
		}
		if streamErr != nil {
			if ctx.Err() != nil {
				streamErr = ctx.Err()
			} else if _, ok := services.ProviderErrorKindOf(streamErr); !ok {
				streamErr = services.NewProviderError(providerName, services.KindNetwork, "read stream", streamErr)
			}
			yield("", streamErr)
		}
	}
}

// Collect drains the stream for prompt into a single string.
func Collect(ctx context.Context, gen TextGenerator, prompt string) (string, error) {
	var b strings.Builder
	for fragment, err := range gen.StreamResponse(ctx, prompt) {
		if err != nil {
			return "", err
		}
		b.WriteString(fragment)
	}
	return b.String(), nil
}

// openStream posts the request, retrying transient failures until a 2xx
// response arrives. Only the stream opening is retried.
func (c *Client) openStream(ctx context.Context, payload chatCompletionRequest) (io.ReadCloser, error) {
	endpoint, err := url.Parse(c.cfg.BaseURL)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, services.NewProviderError(providerName, services.KindInvalidURL, c.cfg.BaseURL, err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm request: encode body: %w", err)
	}

	var body io.ReadCloser
	err = c.retry.Do(ctx, retry.Transient, func(int) error {
		var openErr error
		body, openErr = c.post(ctx, endpoint.String(), encoded)
		return openErr
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, endpoint string, encoded []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.NewProviderError(providerName, services.KindInvalidURL, endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, services.Wrap(services.ErrTimeout, "llm", "stream", fmt.Sprintf("no response within %s", c.httpClient.Timeout), err)
		}
		return nil, services.NewProviderError(providerName, services.KindNetwork, "send request", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		perr := services.StatusError(providerName, resp.StatusCode, SummarizePayload(string(snippet)))
		perr.RetryAfter = retry.RetryAfter(resp.Header.Get("Retry-After"))
		return nil, perr
	}
	return resp.Body, nil
}

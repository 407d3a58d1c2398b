package audiogen

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

	"wordslearner/internal/services"
	"wordslearner/internal/services/retry"
)

const (
	elevenLabsProvider       = "elevenlabs"
	defaultElevenLabsBaseURL = "https://api.elevenlabs.io"
	defaultVoiceID           = "JBFqnCBsd6RMkjVDRZzb"
	defaultElevenLabsModel   = "eleven_multilingual_v2"
	defaultHTTPTimeout       = 2 * time.Minute
	maxErrorBody             = 2048
)

// ElevenLabsConfig captures the ElevenLabs connection settings.
type ElevenLabsConfig struct {
	APIKey         string
	BaseURL        string
	VoiceID        string
	Model          string
	TimeoutSeconds int
}

// ElevenLabsClient synthesizes narration with ElevenLabs.
type ElevenLabsClient struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
	retry      retry.Policy
}

// ElevenLabsOption customizes an ElevenLabsClient.
type ElevenLabsOption func(*ElevenLabsClient)

// WithRetry overrides the policy applied to rate limits and server errors.
func WithRetry(policy retry.Policy) ElevenLabsOption {
	return func(c *ElevenLabsClient) {
		c.retry = policy
	}
}

// NewElevenLabsClient constructs a client, filling defaults for empty fields.
// A nil httpClient gets one with the configured timeout.
func NewElevenLabsClient(cfg ElevenLabsConfig, httpClient *http.Client, opts ...ElevenLabsOption) *ElevenLabsClient {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultElevenLabsBaseURL
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = defaultVoiceID
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultElevenLabsModel
	}
	if httpClient == nil {
		timeout := defaultHTTPTimeout
		if cfg.TimeoutSeconds > 0 {
			timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	client := &ElevenLabsClient{cfg: cfg, httpClient: httpClient, retry: retry.Default()}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model reports the synthesis model recorded on lessons.
func (c *ElevenLabsClient) Model() string {
	return c.cfg.Model
}

// GenerateAudio returns MP3 bytes for text.
func (c *ElevenLabsClient) GenerateAudio(ctx context.Context, text string) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, services.NewProviderError(elevenLabsProvider, services.KindMissingCredential, "Missing ElevenLabs API key.", nil)
	}
	endpoint := c.cfg.BaseURL + "/v1/text-to-speech/" + url.PathEscape(c.cfg.VoiceID)
	if parsed, err := url.Parse(endpoint); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, services.NewProviderError(elevenLabsProvider, services.KindInvalidURL, endpoint, err)
	}

	body, err := json.Marshal(map[string]string{
		"text":     text,
		"model_id": c.cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("encode elevenlabs request: %w", err)
	}

	var audio []byte
	err = c.retry.Do(ctx, retry.Transient, func(int) error {
		var synthErr error
		audio, synthErr = c.synthesize(ctx, endpoint, body)
		return synthErr
	})
	if err != nil {
		return nil, err
	}
	return audio, nil
}

func (c *ElevenLabsClient) synthesize(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, services.NewProviderError(elevenLabsProvider, services.KindInvalidURL, endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, services.Wrap(services.ErrTimeout, "audio", "synthesize", "request timed out", err)
		}
		return nil, services.NewProviderError(elevenLabsProvider, services.KindNetwork, "send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		perr := services.StatusError(elevenLabsProvider, resp.StatusCode, string(snippet))
		perr.RetryAfter = retry.RetryAfter(resp.Header.Get("Retry-After"))
		return nil, perr
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.NewProviderError(elevenLabsProvider, services.KindNetwork, "read audio", err)
	}
	if len(data) == 0 {
		return nil, services.NewProviderError(elevenLabsProvider, services.KindAPIResponse, "empty audio body", nil)
	}
	return data, nil
}

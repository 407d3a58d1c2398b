package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wordslearner/internal/logging"
	"wordslearner/internal/services"
	"wordslearner/internal/services/retry"
)

const (
	providerName           = "image"
	defaultModel           = "google/gemini-3.1-flash-image-preview"
	defaultAspectRatio     = "16:9"
	defaultMaxAttempts     = 4
	defaultAspectTolerance = 0.02
	defaultHTTPTimeout     = 3 * time.Minute
	maxErrorBody           = 2048
)

// ImageGenerator produces image bytes from a prompt and optional reference images.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, refs [][]byte) ([]byte, error)
}

// Config captures the settings for the image endpoint.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	AspectRatio     string
	MaxAttempts     int
	AspectTolerance float64
	TimeoutSeconds  int
}

// Client calls a generateContent endpoint that can return inline image data.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
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

// WithRetry overrides the policy applied to transient HTTP failures.
func WithRetry(policy retry.Policy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithLogger attaches a logger for attempt diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs an image client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if strings.TrimSpace(cfg.AspectRatio) == "" {
		cfg.AspectRatio = defaultAspectRatio
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.AspectTolerance <= 0 {
		cfg.AspectTolerance = defaultAspectTolerance
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
		retry:      retry.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData      *inlineData `json:"inlineData"`
				InlineDataSnake *inlineData `json:"inline_data"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateImage requests an image for prompt, passing refs as continuity
// references. Attempts after the first tighten the prompt. When no attempt
// yields a 16:9 landscape image the last image received is returned.
func (c *Client) GenerateImage(ctx context.Context, prompt string, refs [][]byte) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, services.NewProviderError(providerName, services.KindAuthentication, "image api key not configured", nil)
	}
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}

	refParts := make([]part, 0, len(refs))
	for _, ref := range refs {
		if len(ref) == 0 {
			continue
		}
		data, mimeType := prepareReference(ref)
		refParts = append(refParts, part{InlineData: &inlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		}})
	}

	var last []byte
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		parts := append([]part{{Text: refinePrompt(prompt, attempt, len(refParts) > 0)}}, refParts...)
		data, err := c.requestWithAspectFallback(ctx, endpoint, parts)
		if err != nil {
			return nil, err
		}
		last = data

		width, height, ok := Dimensions(data)
		if ok && IsLandscape(width, height, c.cfg.AspectTolerance) {
			return data, nil
		}
		c.logger.Debug("image aspect rejected",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("width", width),
			logging.Int("height", height),
		)
	}
	logging.WarnWithContext(c.logger, "image aspect never matched; using last image", "image_aspect_mismatch",
		logging.String(logging.FieldErrorHint, "check the image model supports aspect_ratio"),
		logging.String(logging.FieldImpact, "frame may render letterboxed"),
		logging.Int("attempts", c.cfg.MaxAttempts),
	)
	return last, nil
}

func (c *Client) endpoint() (string, error) {
	modelID := c.cfg.Model
	if idx := strings.LastIndex(modelID, "/"); idx >= 0 {
		modelID = modelID[idx+1:]
	}
	raw := c.cfg.BaseURL + "/" + modelID + ":generateContent"
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", services.NewProviderError(providerName, services.KindInvalidURL, raw, err)
	}
	return parsed.String(), nil
}

// requestWithAspectFallback retries once without imageConfig when the
// endpoint rejects the aspect setting with a 400.
func (c *Client) requestWithAspectFallback(ctx context.Context, endpoint string, parts []part) ([]byte, error) {
	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig:        &imageConfig{AspectRatio: c.cfg.AspectRatio},
		},
	}
	data, err := c.request(ctx, endpoint, payload)
	var perr *services.ProviderError
	if errors.As(err, &perr) && perr.Kind == services.KindAPI && perr.StatusCode == http.StatusBadRequest {
		payload.GenerationConfig.ImageConfig = nil
		return c.request(ctx, endpoint, payload)
	}
	return data, err
}

// request sends payload, retrying rate limits, 5xx responses and network
// failures. Orientation retries are separate and happen in GenerateImage.
func (c *Client) request(ctx context.Context, endpoint string, payload generateRequest) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode image request: %w", err)
	}
	var data []byte
	err = c.retry.Do(ctx, retry.Transient, func(attempt int) error {
		var sendErr error
		data, sendErr = c.send(ctx, endpoint, body)
		if sendErr != nil {
			c.logger.Debug("image request failed",
				logging.Int(logging.FieldAttempt, attempt),
				logging.Error(sendErr),
			)
		}
		return sendErr
	})
	return data, err
}

func (c *Client) send(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, services.NewProviderError(providerName, services.KindInvalidURL, endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, services.Wrap(services.ErrTimeout, "image", "generate", "request timed out", err)
		}
		return nil, services.NewProviderError(providerName, services.KindNetwork, "send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		perr := services.StatusError(providerName, resp.StatusCode, string(snippet))
		perr.RetryAfter = retry.RetryAfter(resp.Header.Get("Retry-After"))
		return nil, perr
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.NewProviderError(providerName, services.KindNetwork, "read response", err)
	}
	return decodeImage(raw)
}

func decodeImage(raw []byte) ([]byte, error) {
	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, services.NewProviderError(providerName, services.KindParsing, "decode response", err)
	}
	for _, candidate := range parsed.Candidates {
		for _, p := range candidate.Content.Parts {
			inline := p.InlineData
			if inline == nil {
				inline = p.InlineDataSnake
			}
			if inline == nil || inline.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(inline.Data)
			if err != nil {
				continue
			}
			return data, nil
		}
	}
	return nil, services.NewProviderError(providerName, services.KindNoImageData, "", nil)
}

func refinePrompt(prompt string, attempt int, hasRefs bool) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(prompt))
	b.WriteString("\n\nVisual constraints:\n")
	b.WriteString("- Cinematic storyboard frame\n")
	b.WriteString("- Landscape 16:9 composition (video-like)\n")
	b.WriteString("- Single clear moment, vivid and concrete\n")
	b.WriteString("- No text, no subtitles, no letters, no watermark\n")
	if attempt > 1 {
		b.WriteString("- CRITICAL: Return a landscape 16:9 frame.\n")
		b.WriteString("- CRITICAL: The image must match the scene description exactly.\n")
		if hasRefs {
			b.WriteString("- CRITICAL: Keep the same characters, clothing, setting and palette as the reference image.\n")
		}
	}
	return b.String()
}

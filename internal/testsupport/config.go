package testsupport

import (
	"path/filepath"
	"testing"

	"wordslearner/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Queue timings are shortened so worker tests finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Assets.RootDir = filepath.Join(base, "data")
	cfgVal.LLM.APIKey = "test-llm-key"
	cfgVal.Image.APIKey = "test-image-key"
	cfgVal.Audio.ElevenLabsAPIKey = "test-audio-key"
	cfgVal.Queue.IdleIntervalMillis = 10
	cfgVal.Queue.PostTaskDelayMillis = 1
	cfgVal.Queue.ErrorRetryIntervalMillis = 20

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLMEndpoint points the text generation client at a test server.
func WithLLMEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithImageEndpoint points the image generation client at a test server.
func WithImageEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Image.BaseURL = url
	}
}

// WithAudioEndpoint points the ElevenLabs client at a test server.
func WithAudioEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Audio.ElevenLabsBaseURL = url
	}
}

// WithoutCredentials clears every provider key on the test config.
func WithoutCredentials() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = ""
		b.cfg.Image.APIKey = ""
		b.cfg.Audio.ElevenLabsAPIKey = ""
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WithAPIToken requires a bearer token on the daemon HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

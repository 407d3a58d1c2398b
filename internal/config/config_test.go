package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"wordslearner/internal/config"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WORDSLEARNER_LLM_API_KEY", "AIHUBMIX_API_KEY", "OPENROUTER_API_KEY",
		"WORDSLEARNER_IMAGE_API_KEY", "ZENMUX_API_KEY", "ELEVENLABS_API_KEY",
		"MINIO_ACCESS_KEY", "MINIO_ROOT_USER", "MINIO_SECRET_KEY", "MINIO_ROOT_PASSWORD",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearCredentialEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "wordslearner")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Assets.RootDir != wantData {
		t.Fatalf("expected asset root to default to data dir, got %q", cfg.Assets.RootDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7588" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.LLM.Model != "gemini-3-pro-preview" || cfg.LLM.Temperature != 0.7 {
		t.Fatalf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.Image.MaxAttempts != 4 || cfg.Image.AspectTolerance != 0.02 {
		t.Fatalf("unexpected image defaults: %+v", cfg.Image)
	}
	if cfg.IdleInterval() != 2*time.Second || cfg.PostTaskDelay() != 500*time.Millisecond || cfg.ErrorRetryInterval() != 5*time.Second {
		t.Fatalf("unexpected queue timings: %+v", cfg.Queue)
	}
	if cfg.Lesson.PlannerAttempts != 3 || cfg.Lesson.GeneratorVersion != "v2" {
		t.Fatalf("unexpected lesson defaults: %+v", cfg.Lesson)
	}
	if cfg.LLM.APIKey != "" {
		t.Fatalf("expected no llm key, got %q", cfg.LLM.APIKey)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, filepath.Join(cfg.Assets.RootDir, "MultimodalLessons")} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "wordslearner.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearCredentialEnv(t)
	t.Chdir(t.TempDir())
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "wordslearner.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		LLM struct {
			APIKey string `toml:"api_key"`
			Model  string `toml:"model"`
		} `toml:"llm"`
		Queue struct {
			IdleIntervalMillis int `toml:"idle_interval_ms"`
		} `toml:"queue"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.LLM.APIKey = "file-key"
	custom.LLM.Model = "custom-model"
	custom.Queue.IdleIntervalMillis = 250
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.LLM.APIKey != "file-key" || cfg.LLM.Model != "custom-model" {
		t.Fatalf("expected llm settings from file, got %+v", cfg.LLM)
	}
	if cfg.IdleInterval() != 250*time.Millisecond {
		t.Fatalf("expected idle interval override, got %s", cfg.IdleInterval())
	}
	if cfg.Paths.DataDir != filepath.Join(tempDir, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
}

func TestLoadReadsDotEnvBesideConfig(t *testing.T) {
	clearCredentialEnv(t)
	t.Chdir(t.TempDir())
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "wordslearner.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envBody := "AIHUBMIX_API_KEY=dotenv-llm\nELEVENLABS_API_KEY=dotenv-audio\n"
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte(envBody), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("ZENMUX_API_KEY", "exported-image")
	t.Cleanup(func() {
		os.Unsetenv("AIHUBMIX_API_KEY")
		os.Unsetenv("ELEVENLABS_API_KEY")
	})

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "dotenv-llm" {
		t.Errorf("expected llm key from .env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Audio.ElevenLabsAPIKey != "dotenv-audio" {
		t.Errorf("expected elevenlabs key from .env, got %q", cfg.Audio.ElevenLabsAPIKey)
	}
	if cfg.Image.APIKey != "exported-image" {
		t.Errorf("expected image key from environment, got %q", cfg.Image.APIKey)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "ELEVENLABS_API_KEY") {
		t.Fatalf("sample config missing credential hint: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "wordslearner") {
		t.Fatalf("expected data dir to contain wordslearner, got %q", cfg.Paths.DataDir)
	}
	if cfg.Assets.Folder != "MultimodalLessons" {
		t.Fatalf("unexpected asset folder %q", cfg.Assets.Folder)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"idle interval", func(c *config.Config) { c.Queue.IdleIntervalMillis = 0 }},
		{"retry interval", func(c *config.Config) { c.Queue.ErrorRetryIntervalMillis = -1 }},
		{"audio provider", func(c *config.Config) { c.Audio.Provider = "polly" }},
		{"asset backend", func(c *config.Config) { c.Assets.Backend = "s3" }},
		{"minio missing fields", func(c *config.Config) { c.Assets.Backend = config.AssetBackendMinIO }},
		{"aspect tolerance", func(c *config.Config) { c.Image.AspectTolerance = 1.5 }},
		{"image attempts", func(c *config.Config) { c.Image.MaxAttempts = 0 }},
		{"planner attempts", func(c *config.Config) { c.Lesson.PlannerAttempts = 0 }},
		{"llm url", func(c *config.Config) { c.LLM.BaseURL = "aihubmix" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	cfg := config.Default()
	cfg.Assets.Backend = config.AssetBackendMinIO
	cfg.Assets.MinIOEndpoint = "localhost:9000"
	cfg.Assets.MinIOBucket = "lessons"
	cfg.Assets.MinIOAccessKey = "access"
	cfg.Assets.MinIOSecretKey = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected complete minio config to validate, got %v", err)
	}
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// LLM contains the text generation connection settings.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Image contains the image generation connection settings.
type Image struct {
	APIKey          string  `toml:"api_key"`
	BaseURL         string  `toml:"base_url"`
	Model           string  `toml:"model"`
	AspectRatio     string  `toml:"aspect_ratio"`
	MaxAttempts     int     `toml:"max_attempts"`
	AspectTolerance float64 `toml:"aspect_tolerance"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
}

// Audio contains the narration synthesis settings.
type Audio struct {
	Provider           string `toml:"provider"`
	ElevenLabsAPIKey   string `toml:"elevenlabs_api_key"`
	ElevenLabsBaseURL  string `toml:"elevenlabs_base_url"`
	VoiceID            string `toml:"voice_id"`
	Model              string `toml:"model"`
	GoogleLanguageCode string `toml:"google_language_code"`
	GoogleVoiceName    string `toml:"google_voice_name"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
}

// Assets contains configuration for where lesson images and audio are kept.
type Assets struct {
	Backend            string `toml:"backend"`
	RootDir            string `toml:"root_dir"`
	Folder             string `toml:"folder"`
	MinIOEndpoint      string `toml:"minio_endpoint"`
	MinIOAccessKey     string `toml:"minio_access_key"`
	MinIOSecretKey     string `toml:"minio_secret_key"`
	MinIOBucket        string `toml:"minio_bucket"`
	MinIOUseSSL        bool   `toml:"minio_use_ssl"`
	PresignExpiryHours int    `toml:"presign_expiry_hours"`
}

// Queue contains the background task worker timings, in milliseconds.
type Queue struct {
	IdleIntervalMillis       int `toml:"idle_interval_ms"`
	PostTaskDelayMillis      int `toml:"post_task_delay_ms"`
	ErrorRetryIntervalMillis int `toml:"error_retry_interval_ms"`
}

// Lesson contains the lesson generator presets.
type Lesson struct {
	StylePreset      string `toml:"style_preset"`
	VoicePreset      string `toml:"voice_preset"`
	GeneratorVersion string `toml:"generator_version"`
	PlannerAttempts  int    `toml:"planner_attempts"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for wordslearner.
//
// Configuration sections by subsystem:
//   - Paths: data directory, logs, and API bind address
//   - LLM: streaming text generation
//   - Image: storyboard frame images
//   - Audio: frame narration
//   - Assets: filesystem or MinIO storage for generated media
//   - Queue: background comparison worker timings
//   - Lesson: storyboard lesson presets
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	LLM     LLM     `toml:"llm"`
	Image   Image   `toml:"image"`
	Audio   Audio   `toml:"audio"`
	Assets  Assets  `toml:"assets"`
	Queue   Queue   `toml:"queue"`
	Lesson  Lesson  `toml:"lesson"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(resolvedPath); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env files beside the config file and in the working
// directory. Variables already present in the environment win.
func loadDotEnv(configPath string) error {
	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load %s: %w", candidate, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("wordslearner.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Assets.Backend == AssetBackendFilesystem {
		dirs = append(dirs, filepath.Join(c.Assets.RootDir, c.Assets.Folder))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "wordslearner.db")
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "wordslearner.lock")
}

// LogFilePath returns the daemon log file location.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "wordslearner.log")
}

// IdleInterval returns how long the queue worker sleeps when nothing is pending.
func (c *Config) IdleInterval() time.Duration {
	return time.Duration(c.Queue.IdleIntervalMillis) * time.Millisecond
}

// PostTaskDelay returns the pause between completed jobs.
func (c *Config) PostTaskDelay() time.Duration {
	return time.Duration(c.Queue.PostTaskDelayMillis) * time.Millisecond
}

// ErrorRetryInterval returns the backoff after a failed poll.
func (c *Config) ErrorRetryInterval() time.Duration {
	return time.Duration(c.Queue.ErrorRetryIntervalMillis) * time.Millisecond
}

// PresignExpiry returns the lifetime of MinIO presigned URLs.
func (c *Config) PresignExpiry() time.Duration {
	return time.Duration(c.Assets.PresignExpiryHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

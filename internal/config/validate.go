package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validateImage(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateAssets(); err != nil {
		return err
	}
	if err := c.validateLesson(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueue() error {
	return ensurePositiveMap(map[string]int{
		"queue.idle_interval_ms":        c.Queue.IdleIntervalMillis,
		"queue.post_task_delay_ms":      c.Queue.PostTaskDelayMillis,
		"queue.error_retry_interval_ms": c.Queue.ErrorRetryIntervalMillis,
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
		"image.timeout_seconds":         c.Image.TimeoutSeconds,
		"audio.timeout_seconds":         c.Audio.TimeoutSeconds,
	})
}

func (c *Config) validateEndpoints() error {
	for key, value := range map[string]string{
		"llm.base_url":              c.LLM.BaseURL,
		"image.base_url":            c.Image.BaseURL,
		"audio.elevenlabs_base_url": c.Audio.ElevenLabsBaseURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, value)
		}
	}
	return nil
}

func (c *Config) validateImage() error {
	if c.Image.MaxAttempts < 1 {
		return errors.New("image.max_attempts must be at least 1")
	}
	if c.Image.AspectTolerance <= 0 || c.Image.AspectTolerance >= 1 {
		return errors.New("image.aspect_tolerance must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateAudio() error {
	switch c.Audio.Provider {
	case AudioProviderElevenLabs, AudioProviderGoogle:
		return nil
	default:
		return fmt.Errorf("audio.provider must be %q or %q, got %q", AudioProviderElevenLabs, AudioProviderGoogle, c.Audio.Provider)
	}
}

func (c *Config) validateAssets() error {
	switch c.Assets.Backend {
	case AssetBackendFilesystem:
		return nil
	case AssetBackendMinIO:
		missing := make([]string, 0, 4)
		if c.Assets.MinIOEndpoint == "" {
			missing = append(missing, "assets.minio_endpoint")
		}
		if c.Assets.MinIOBucket == "" {
			missing = append(missing, "assets.minio_bucket")
		}
		if c.Assets.MinIOAccessKey == "" {
			missing = append(missing, "assets.minio_access_key")
		}
		if c.Assets.MinIOSecretKey == "" {
			missing = append(missing, "assets.minio_secret_key")
		}
		if len(missing) > 0 {
			return fmt.Errorf("%s must be set when assets.backend is minio", strings.Join(missing, ", "))
		}
		return nil
	default:
		return fmt.Errorf("assets.backend must be %q or %q, got %q", AssetBackendFilesystem, AssetBackendMinIO, c.Assets.Backend)
	}
}

func (c *Config) validateLesson() error {
	if c.Lesson.PlannerAttempts < 1 {
		return errors.New("lesson.planner_attempts must be at least 1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

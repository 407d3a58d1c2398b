package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeImage()
	c.normalizeAudio()
	if err := c.normalizeAssets(); err != nil {
		return err
	}
	c.normalizeLesson()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = lookupFirstEnv("WORDSLEARNER_API_TOKEN")
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = lookupFirstEnv("WORDSLEARNER_LLM_API_KEY", "AIHUBMIX_API_KEY", "OPENROUTER_API_KEY")
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.Temperature <= 0 {
		c.LLM.Temperature = defaultLLMTemperature
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeImage() {
	c.Image.APIKey = strings.TrimSpace(c.Image.APIKey)
	if c.Image.APIKey == "" {
		c.Image.APIKey = lookupFirstEnv("WORDSLEARNER_IMAGE_API_KEY", "ZENMUX_API_KEY")
	}
	c.Image.BaseURL = strings.TrimRight(strings.TrimSpace(c.Image.BaseURL), "/")
	if c.Image.BaseURL == "" {
		c.Image.BaseURL = defaultImageBaseURL
	}
	c.Image.Model = strings.TrimSpace(c.Image.Model)
	if c.Image.Model == "" {
		c.Image.Model = defaultImageModel
	}
	c.Image.AspectRatio = strings.TrimSpace(c.Image.AspectRatio)
	if c.Image.AspectRatio == "" {
		c.Image.AspectRatio = defaultImageAspectRatio
	}
	if c.Image.MaxAttempts == 0 {
		c.Image.MaxAttempts = defaultImageMaxAttempts
	}
	if c.Image.AspectTolerance == 0 {
		c.Image.AspectTolerance = defaultImageAspectTol
	}
	if c.Image.TimeoutSeconds <= 0 {
		c.Image.TimeoutSeconds = defaultImageTimeoutSeconds
	}
}

func (c *Config) normalizeAudio() {
	c.Audio.Provider = strings.ToLower(strings.TrimSpace(c.Audio.Provider))
	if c.Audio.Provider == "" {
		c.Audio.Provider = AudioProviderElevenLabs
	}
	c.Audio.ElevenLabsAPIKey = strings.TrimSpace(c.Audio.ElevenLabsAPIKey)
	if c.Audio.ElevenLabsAPIKey == "" {
		c.Audio.ElevenLabsAPIKey = lookupFirstEnv("ELEVENLABS_API_KEY")
	}
	c.Audio.ElevenLabsBaseURL = strings.TrimRight(strings.TrimSpace(c.Audio.ElevenLabsBaseURL), "/")
	if c.Audio.ElevenLabsBaseURL == "" {
		c.Audio.ElevenLabsBaseURL = defaultElevenLabsBaseURL
	}
	c.Audio.VoiceID = strings.TrimSpace(c.Audio.VoiceID)
	if c.Audio.VoiceID == "" {
		c.Audio.VoiceID = defaultVoiceID
	}
	c.Audio.Model = strings.TrimSpace(c.Audio.Model)
	if c.Audio.Model == "" {
		c.Audio.Model = defaultAudioModel
	}
	c.Audio.GoogleLanguageCode = strings.TrimSpace(c.Audio.GoogleLanguageCode)
	if c.Audio.GoogleLanguageCode == "" {
		c.Audio.GoogleLanguageCode = defaultGoogleLanguageCode
	}
	c.Audio.GoogleVoiceName = strings.TrimSpace(c.Audio.GoogleVoiceName)
	if c.Audio.GoogleVoiceName == "" {
		c.Audio.GoogleVoiceName = defaultGoogleVoiceName
	}
	if c.Audio.TimeoutSeconds <= 0 {
		c.Audio.TimeoutSeconds = defaultAudioTimeoutSeconds
	}
}

func (c *Config) normalizeAssets() error {
	var err error
	c.Assets.Backend = strings.ToLower(strings.TrimSpace(c.Assets.Backend))
	if c.Assets.Backend == "" {
		c.Assets.Backend = AssetBackendFilesystem
	}
	if strings.TrimSpace(c.Assets.RootDir) == "" {
		c.Assets.RootDir = c.Paths.DataDir
	}
	if c.Assets.RootDir, err = expandPath(c.Assets.RootDir); err != nil {
		return fmt.Errorf("assets.root_dir: %w", err)
	}
	c.Assets.Folder = strings.Trim(strings.TrimSpace(c.Assets.Folder), "/")
	if c.Assets.Folder == "" {
		c.Assets.Folder = defaultAssetFolder
	}
	c.Assets.MinIOEndpoint = strings.TrimSpace(c.Assets.MinIOEndpoint)
	c.Assets.MinIOBucket = strings.TrimSpace(c.Assets.MinIOBucket)
	c.Assets.MinIOAccessKey = strings.TrimSpace(c.Assets.MinIOAccessKey)
	if c.Assets.MinIOAccessKey == "" {
		c.Assets.MinIOAccessKey = lookupFirstEnv("MINIO_ACCESS_KEY", "MINIO_ROOT_USER")
	}
	c.Assets.MinIOSecretKey = strings.TrimSpace(c.Assets.MinIOSecretKey)
	if c.Assets.MinIOSecretKey == "" {
		c.Assets.MinIOSecretKey = lookupFirstEnv("MINIO_SECRET_KEY", "MINIO_ROOT_PASSWORD")
	}
	if c.Assets.PresignExpiryHours <= 0 {
		c.Assets.PresignExpiryHours = defaultPresignExpiryHours
	}
	return nil
}

func (c *Config) normalizeLesson() {
	c.Lesson.StylePreset = strings.TrimSpace(c.Lesson.StylePreset)
	if c.Lesson.StylePreset == "" {
		c.Lesson.StylePreset = defaultStylePreset
	}
	c.Lesson.VoicePreset = strings.TrimSpace(c.Lesson.VoicePreset)
	if c.Lesson.VoicePreset == "" {
		c.Lesson.VoicePreset = defaultVoicePreset
	}
	c.Lesson.GeneratorVersion = strings.TrimSpace(c.Lesson.GeneratorVersion)
	if c.Lesson.GeneratorVersion == "" {
		c.Lesson.GeneratorVersion = defaultGeneratorVersion
	}
	if c.Lesson.PlannerAttempts == 0 {
		c.Lesson.PlannerAttempts = defaultPlannerAttempts
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupFirstEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

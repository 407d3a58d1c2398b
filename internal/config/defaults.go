package config

const (
	defaultConfigPath          = "~/.config/wordslearner/config.toml"
	defaultDataDir             = "~/.local/share/wordslearner"
	defaultLogDir              = "~/.local/share/wordslearner/logs"
	defaultAPIBind             = "127.0.0.1:7588"
	defaultLLMBaseURL          = "https://aihubmix.com/v1/chat/completions"
	defaultLLMModel            = "gemini-3-pro-preview"
	defaultLLMTemperature      = 0.7
	defaultLLMTimeoutSeconds   = 300
	defaultImageBaseURL        = "https://zenmux.ai/api/vertex-ai/v1/publishers/google/models"
	defaultImageModel          = "google/gemini-3.1-flash-image-preview"
	defaultImageAspectRatio    = "16:9"
	defaultImageMaxAttempts    = 4
	defaultImageAspectTol      = 0.02
	defaultImageTimeoutSeconds = 180
	defaultElevenLabsBaseURL   = "https://api.elevenlabs.io"
	defaultVoiceID             = "JBFqnCBsd6RMkjVDRZzb"
	defaultAudioModel          = "eleven_multilingual_v2"
	defaultGoogleLanguageCode  = "en-US"
	defaultGoogleVoiceName     = "en-US-Standard-F"
	defaultAudioTimeoutSeconds = 120
	defaultAssetFolder         = "MultimodalLessons"
	defaultPresignExpiryHours  = 24
	defaultIdleIntervalMillis  = 2000
	defaultPostTaskDelayMillis = 500
	defaultErrorRetryMillis    = 5000
	defaultStylePreset         = "cinematic_storyboard_16_9_v1"
	defaultVoicePreset         = "elevenlabs_default_v1"
	defaultGeneratorVersion    = "v2"
	defaultPlannerAttempts     = 3
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Audio providers.
const (
	AudioProviderElevenLabs = "elevenlabs"
	AudioProviderGoogle     = "google"
)

// Asset backends.
const (
	AssetBackendFilesystem = "filesystem"
	AssetBackendMinIO      = "minio"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Temperature:    defaultLLMTemperature,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Image: Image{
			BaseURL:         defaultImageBaseURL,
			Model:           defaultImageModel,
			AspectRatio:     defaultImageAspectRatio,
			MaxAttempts:     defaultImageMaxAttempts,
			AspectTolerance: defaultImageAspectTol,
			TimeoutSeconds:  defaultImageTimeoutSeconds,
		},
		Audio: Audio{
			Provider:           AudioProviderElevenLabs,
			ElevenLabsBaseURL:  defaultElevenLabsBaseURL,
			VoiceID:            defaultVoiceID,
			Model:              defaultAudioModel,
			GoogleLanguageCode: defaultGoogleLanguageCode,
			GoogleVoiceName:    defaultGoogleVoiceName,
			TimeoutSeconds:     defaultAudioTimeoutSeconds,
		},
		Assets: Assets{
			Backend:            AssetBackendFilesystem,
			Folder:             defaultAssetFolder,
			PresignExpiryHours: defaultPresignExpiryHours,
		},
		Queue: Queue{
			IdleIntervalMillis:       defaultIdleIntervalMillis,
			PostTaskDelayMillis:      defaultPostTaskDelayMillis,
			ErrorRetryIntervalMillis: defaultErrorRetryMillis,
		},
		Lesson: Lesson{
			StylePreset:      defaultStylePreset,
			VoicePreset:      defaultVoicePreset,
			GeneratorVersion: defaultGeneratorVersion,
			PlannerAttempts:  defaultPlannerAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

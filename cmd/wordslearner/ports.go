package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wordslearner/internal/assets"
	"wordslearner/internal/config"
	"wordslearner/internal/services/audiogen"
	"wordslearner/internal/services/imagegen"
	"wordslearner/internal/services/llm"
)

// ports bundles the generation providers and asset store built from config.
type ports struct {
	text    llm.TextGenerator
	images  imagegen.ImageGenerator
	audio   audiogen.AudioGenerator
	assets  assets.Store
	closers []func() error
}

func (p *ports) Close() error {
	var errs []error
	for _, closeFn := range p.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

type portFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ports, error)

// newPorts is the factory new command contexts start with.
var newPorts portFactory = defaultPorts

func defaultPorts(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ports, error) {
	p := &ports{
		text: llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Temperature:    cfg.LLM.Temperature,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		}),
		images: imagegen.NewClient(imagegen.Config{
			APIKey:          cfg.Image.APIKey,
			BaseURL:         cfg.Image.BaseURL,
			Model:           cfg.Image.Model,
			AspectRatio:     cfg.Image.AspectRatio,
			MaxAttempts:     cfg.Image.MaxAttempts,
			AspectTolerance: cfg.Image.AspectTolerance,
			TimeoutSeconds:  cfg.Image.TimeoutSeconds,
		}, imagegen.WithLogger(logger)),
	}

	switch cfg.Audio.Provider {
	case config.AudioProviderGoogle:
		client, err := audiogen.NewGoogleClient(ctx, audiogen.GoogleConfig{
			LanguageCode: cfg.Audio.GoogleLanguageCode,
			VoiceName:    cfg.Audio.GoogleVoiceName,
		})
		if err != nil {
			return nil, err
		}
		p.audio = client
		p.closers = append(p.closers, client.Close)
	default:
		p.audio = audiogen.NewElevenLabsClient(audiogen.ElevenLabsConfig{
			APIKey:         cfg.Audio.ElevenLabsAPIKey,
			BaseURL:        cfg.Audio.ElevenLabsBaseURL,
			VoiceID:        cfg.Audio.VoiceID,
			Model:          cfg.Audio.Model,
			TimeoutSeconds: cfg.Audio.TimeoutSeconds,
		}, nil)
	}

	assetStore, err := assets.New(ctx, cfg)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("open asset store: %w", err)
	}
	p.assets = assetStore
	return p, nil
}

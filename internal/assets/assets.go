package assets

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"wordslearner/internal/config"
	"wordslearner/internal/services/audiogen"
	"wordslearner/internal/services/imagegen"
)

// Store persists lesson media and maps relative paths back to locations.
type Store interface {
	WriteImage(ctx context.Context, data []byte, lessonID string, frameIndex int) (string, error)
	WriteAudio(ctx context.Context, data []byte, lessonID string, frameIndex int) (string, error)
	Resolve(relativePath string) string
	RemoveLesson(ctx context.Context, lessonID string) error
}

// New builds the store selected by cfg.Assets.Backend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Assets.Backend {
	case config.AssetBackendFilesystem, "":
		return NewFilesystemStore(cfg.Assets.RootDir, cfg.Assets.Folder), nil
	case config.AssetBackendMinIO:
		return NewMinIOStore(ctx, MinIOConfig{
			Endpoint:      cfg.Assets.MinIOEndpoint,
			AccessKey:     cfg.Assets.MinIOAccessKey,
			SecretKey:     cfg.Assets.MinIOSecretKey,
			Bucket:        cfg.Assets.MinIOBucket,
			UseSSL:        cfg.Assets.MinIOUseSSL,
			Folder:        cfg.Assets.Folder,
			PresignExpiry: cfg.PresignExpiry(),
		})
	default:
		return nil, fmt.Errorf("unknown asset backend %q", cfg.Assets.Backend)
	}
}

func validateKey(lessonID string, frameIndex int) error {
	lessonID = strings.TrimSpace(lessonID)
	if lessonID == "" {
		return errors.New("lesson id is required")
	}
	if strings.ContainsAny(lessonID, `/\`) || lessonID == "." || lessonID == ".." {
		return fmt.Errorf("invalid lesson id %q", lessonID)
	}
	if frameIndex < 0 {
		return fmt.Errorf("invalid frame index %d", frameIndex)
	}
	return nil
}

func imageName(data []byte, frameIndex int) string {
	return fmt.Sprintf("frame-%d.%s", frameIndex, imagegen.Extension(data))
}

func audioName(frameIndex int) string {
	return fmt.Sprintf("frame-%d.%s", frameIndex, audiogen.Extension)
}

func relativePath(folder, lessonID, name string) string {
	return path.Join(folder, lessonID, name)
}

// contentType maps an asset file name to its MIME type.
func contentType(name string) string {
	switch path.Ext(name) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

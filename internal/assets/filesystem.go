package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wordslearner/internal/fileutil"
)

// FilesystemStore keeps media under root/folder/lessonID.
type FilesystemStore struct {
	root   string
	folder string
}

// NewFilesystemStore returns a store rooted at root.
func NewFilesystemStore(root, folder string) *FilesystemStore {
	if strings.TrimSpace(folder) == "" {
		folder = "MultimodalLessons"
	}
	return &FilesystemStore{root: filepath.Clean(root), folder: folder}
}

// WriteImage stores image bytes for a frame.
func (s *FilesystemStore) WriteImage(ctx context.Context, data []byte, lessonID string, frameIndex int) (string, error) {
	if err := validateKey(lessonID, frameIndex); err != nil {
		return "", err
	}
	return s.write(ctx, data, lessonID, imageName(data, frameIndex))
}

// WriteAudio stores audio bytes for a frame.
func (s *FilesystemStore) WriteAudio(ctx context.Context, data []byte, lessonID string, frameIndex int) (string, error) {
	if err := validateKey(lessonID, frameIndex); err != nil {
		return "", err
	}
	return s.write(ctx, data, lessonID, audioName(frameIndex))
}

func (s *FilesystemStore) write(ctx context.Context, data []byte, lessonID, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := relativePath(s.folder, lessonID, name)
	if err := fileutil.WriteAtomic(s.Resolve(rel), data, 0o644); err != nil {
		return "", fmt.Errorf("write asset %s: %w", rel, err)
	}
	return rel, nil
}

// Resolve returns the absolute file path for a relative asset path.
func (s *FilesystemStore) Resolve(relativePath string) string {
	return filepath.Join(s.root, filepath.FromSlash(relativePath))
}

// RemoveLesson deletes the lesson's media directory. Missing directories are not an error.
func (s *FilesystemStore) RemoveLesson(ctx context.Context, lessonID string) error {
	if err := validateKey(lessonID, 0); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Join(s.root, s.folder, lessonID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove lesson assets: %w", err)
	}
	return nil
}

package assets_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"wordslearner/internal/assets"
	"wordslearner/internal/testsupport"
)

func TestFilesystemStoreWritesAndResolves(t *testing.T) {
	root := t.TempDir()
	store := assets.NewFilesystemStore(root, "MultimodalLessons")
	ctx := context.Background()

	png := testsupport.PNG(t, 16, 9)
	rel, err := store.WriteImage(ctx, png, "lesson-1", 3)
	if err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}
	if rel != "MultimodalLessons/lesson-1/frame-3.png" {
		t.Fatalf("unexpected image path %q", rel)
	}
	audioRel, err := store.WriteAudio(ctx, []byte("mp3"), "lesson-1", 3)
	if err != nil {
		t.Fatalf("WriteAudio failed: %v", err)
	}
	if audioRel != "MultimodalLessons/lesson-1/frame-3.mp3" {
		t.Fatalf("unexpected audio path %q", audioRel)
	}

	abs := store.Resolve(rel)
	if abs != filepath.Join(root, "MultimodalLessons", "lesson-1", "frame-3.png") {
		t.Fatalf("unexpected resolved path %q", abs)
	}
	if store.Resolve(rel) != abs {
		t.Fatal("Resolve should be stable for the same relative path")
	}
	got, err := os.ReadFile(abs)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if string(got) != string(png) {
		t.Fatal("stored image does not match input")
	}
}

func TestFilesystemStoreJPEGExtension(t *testing.T) {
	store := assets.NewFilesystemStore(t.TempDir(), "")
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F', 0}
	rel, err := store.WriteImage(context.Background(), jpeg, "lesson", 0)
	if err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}
	if rel != "MultimodalLessons/lesson/frame-0.jpg" {
		t.Fatalf("unexpected path %q", rel)
	}
}

func TestFilesystemStoreRejectsBadKeys(t *testing.T) {
	store := assets.NewFilesystemStore(t.TempDir(), "MultimodalLessons")
	ctx := context.Background()

	cases := []struct {
		name     string
		lessonID string
		index    int
	}{
		{"empty id", "", 0},
		{"traversal", "../escape", 0},
		{"negative index", "lesson", -1},
	}
	for _, tc := range cases {
		if _, err := store.WriteAudio(ctx, []byte("x"), tc.lessonID, tc.index); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestFilesystemStoreRemoveLesson(t *testing.T) {
	root := t.TempDir()
	store := assets.NewFilesystemStore(root, "MultimodalLessons")
	ctx := context.Background()

	if _, err := store.WriteAudio(ctx, []byte("a"), "keep", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := store.WriteAudio(ctx, []byte("b"), "drop", 0); err != nil {
		t.Fatal(err)
	}
	if err := store.RemoveLesson(ctx, "drop"); err != nil {
		t.Fatalf("RemoveLesson failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "MultimodalLessons", "drop")); !os.IsNotExist(err) {
		t.Fatalf("expected lesson dir removed, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "MultimodalLessons", "keep", "frame-0.mp3")); err != nil {
		t.Fatalf("expected other lesson untouched: %v", err)
	}
	if err := store.RemoveLesson(ctx, "never-existed"); err != nil {
		t.Fatalf("RemoveLesson on missing dir should succeed: %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := assets.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := store.(*assets.FilesystemStore); !ok {
		t.Fatalf("expected filesystem store, got %T", store)
	}

	cfg.Assets.Backend = "tape"
	if _, err := assets.New(context.Background(), cfg); err == nil {
		t.Fatal("expected unknown backend error")
	}
}

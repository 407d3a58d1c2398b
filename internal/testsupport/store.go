package testsupport

import (
	"context"
	"testing"

	"wordslearner/internal/config"
	"wordslearner/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewTask inserts a pending comparison task using the provided store.
func NewTask(t testing.TB, st *store.Store, word1, word2, sentence string) *store.Task {
	t.Helper()

	task, err := st.AddTask(context.Background(), word1, word2, sentence)
	if err != nil {
		t.Fatalf("store.AddTask: %v", err)
	}
	return task
}

// NewLesson inserts a generating lesson with placeholder presets.
func NewLesson(t testing.TB, st *store.Store, word1, word2 string) *store.Lesson {
	t.Helper()

	lesson, err := st.CreateLesson(context.Background(), store.NewLesson{
		Word1:            word1,
		Word2:            word2,
		StylePreset:      "style",
		VoicePreset:      "voice",
		ImageModel:       "image-model",
		AudioModel:       "audio-model",
		GeneratorVersion: "test",
	})
	if err != nil {
		t.Fatalf("store.CreateLesson: %v", err)
	}
	return lesson
}

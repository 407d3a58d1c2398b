package audiogen_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wordslearner/internal/services"
	"wordslearner/internal/services/audiogen"
	"wordslearner/internal/services/retry"
)

func TestElevenLabsGenerateAudio(t *testing.T) {
	var (
		gotPath   string
		gotKey    string
		gotAccept string
		gotBody   map[string]string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		gotAccept = r.Header.Get("Accept")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-mp3-bytes"))
	}))
	defer server.Close()

	client := audiogen.NewElevenLabsClient(audiogen.ElevenLabsConfig{
		APIKey:  "xi-secret",
		BaseURL: server.URL,
		VoiceID: "voice-123",
	}, nil)
	data, err := client.GenerateAudio(context.Background(), "In this story, she borrows a pen.")
	if err != nil {
		t.Fatalf("GenerateAudio failed: %v", err)
	}
	if string(data) != "ID3-mp3-bytes" {
		t.Fatalf("unexpected audio %q", data)
	}
	if gotPath != "/v1/text-to-speech/voice-123" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "xi-secret" || gotAccept != "audio/mpeg" {
		t.Fatalf("unexpected headers key=%q accept=%q", gotKey, gotAccept)
	}
	if gotBody["text"] != "In this story, she borrows a pen." || gotBody["model_id"] != "eleven_multilingual_v2" {
		t.Fatalf("unexpected body %#v", gotBody)
	}
	if client.Model() != "eleven_multilingual_v2" {
		t.Fatalf("unexpected model %q", client.Model())
	}
}

func TestElevenLabsMissingKey(t *testing.T) {
	client := audiogen.NewElevenLabsClient(audiogen.ElevenLabsConfig{}, nil)
	_, err := client.GenerateAudio(context.Background(), "hello")
	kind, ok := services.ProviderErrorKindOf(err)
	if !ok || kind != services.KindMissingCredential {
		t.Fatalf("expected missing_credential, got %v", err)
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
}

func TestElevenLabsStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		kind   services.ProviderErrorKind
	}{
		{http.StatusUnauthorized, services.KindAuthentication},
		{http.StatusTooManyRequests, services.KindRateLimit},
		{http.StatusBadGateway, services.KindAPI},
	}
	noWait := audiogen.WithRetry(retry.Policy{Attempts: 2, Sleep: func(time.Duration) {}})
	for _, tt := range tests {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"detail":"nope"}`))
		}))
		client := audiogen.NewElevenLabsClient(audiogen.ElevenLabsConfig{APIKey: "k", BaseURL: server.URL}, nil, noWait)
		_, err := client.GenerateAudio(context.Background(), "hello")
		server.Close()

		kind, ok := services.ProviderErrorKindOf(err)
		if !ok || kind != tt.kind {
			t.Fatalf("status %d: expected %s, got %v", tt.status, tt.kind, err)
		}
		wantCalls := 2
		if tt.status == http.StatusUnauthorized {
			wantCalls = 1
		}
		if calls != wantCalls {
			t.Fatalf("status %d: expected %d calls, got %d", tt.status, wantCalls, calls)
		}
	}
}

func TestElevenLabsRetriesRateLimit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer server.Close()

	var slept []time.Duration
	client := audiogen.NewElevenLabsClient(audiogen.ElevenLabsConfig{APIKey: "k", BaseURL: server.URL}, nil,
		audiogen.WithRetry(retry.Policy{Attempts: 3, MaxDelay: time.Minute, Sleep: func(d time.Duration) { slept = append(slept, d) }}))
	data, err := client.GenerateAudio(context.Background(), "hello")
	if err != nil {
		t.Fatalf("GenerateAudio: %v", err)
	}
	if string(data) != "ID3audio" {
		t.Fatalf("unexpected audio %q", data)
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Fatalf("expected one 2s wait, got %v", slept)
	}
}

func TestElevenLabsEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := audiogen.NewElevenLabsClient(audiogen.ElevenLabsConfig{APIKey: "k", BaseURL: server.URL}, nil)
	_, err := client.GenerateAudio(context.Background(), "hello")
	kind, ok := services.ProviderErrorKindOf(err)
	if !ok || kind != services.KindAPIResponse {
		t.Fatalf("expected api_response, got %v", err)
	}
}

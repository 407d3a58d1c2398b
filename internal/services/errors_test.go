package services_test

import (
	"errors"
	"strings"
	"testing"

	"wordslearner/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "lesson", "image", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"lesson", "image", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestProviderErrorMarkers(t *testing.T) {
	cases := []struct {
		name   string
		err    *services.ProviderError
		marker error
	}{
		{"auth", services.StatusError("llm", 401, "bad key"), services.ErrConfiguration},
		{"forbidden", services.StatusError("llm", 403, ""), services.ErrConfiguration},
		{"rate", services.StatusError("llm", 429, "slow down"), services.ErrTransient},
		{"server", services.StatusError("llm", 503, "down"), services.ErrTransient},
		{"client", services.StatusError("llm", 400, "bad request"), services.ErrExternalTool},
		{"parse", services.NewProviderError("image", services.KindParsing, "", nil), services.ErrValidation},
		{"missing key", services.NewProviderError("audio", services.KindMissingCredential, "", nil), services.ErrConfiguration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.marker) {
				t.Fatalf("expected %v to match marker %v", tc.err, tc.marker)
			}
		})
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := services.StatusError("image", 500, "internal")
	if got := err.Error(); !strings.Contains(got, "status 500") || !strings.Contains(got, "internal") {
		t.Fatalf("unexpected message %q", got)
	}
	kind, ok := services.ProviderErrorKindOf(services.Wrap(services.ErrExternalTool, "lesson", "image", "", err))
	if !ok || kind != services.KindAPI {
		t.Fatalf("expected api kind through wrapping, got %q %v", kind, ok)
	}
	if services.IsRetryable(services.StatusError("llm", 401, "")) {
		t.Fatal("authentication failures must not be retryable")
	}
	if !services.IsRetryable(services.StatusError("llm", 429, "")) {
		t.Fatal("rate limits should be retryable")
	}
}

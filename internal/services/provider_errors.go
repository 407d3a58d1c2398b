package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProviderErrorKind classifies failures reported by generation providers.
type ProviderErrorKind string

const (
	KindInvalidURL        ProviderErrorKind = "invalid_url"
	KindNetwork           ProviderErrorKind = "network"
	KindAuthentication    ProviderErrorKind = "authentication"
	KindRateLimit         ProviderErrorKind = "rate_limit"
	KindAPI               ProviderErrorKind = "api"
	KindAPIResponse       ProviderErrorKind = "api_response"
	KindParsing           ProviderErrorKind = "parsing"
	KindNoImageData       ProviderErrorKind = "no_image_data"
	KindMissingCredential ProviderErrorKind = "missing_credential"
)

// ProviderError is returned by the text, image, and audio ports.
type ProviderError struct {
	Provider   string
	Kind       ProviderErrorKind
	StatusCode int
	Message    string
	// RetryAfter is the server's requested wait, when it sent one.
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	switch e.Kind {
	case KindInvalidURL:
		b.WriteString("invalid URL")
	case KindNetwork:
		b.WriteString("network error")
	case KindAuthentication:
		b.WriteString("authentication failed")
	case KindRateLimit:
		b.WriteString("rate limit exceeded")
	case KindAPI:
		fmt.Fprintf(&b, "API error (status %d)", e.StatusCode)
	case KindAPIResponse:
		b.WriteString("API response error")
	case KindParsing:
		b.WriteString("failed to parse response")
	case KindNoImageData:
		b.WriteString("no image data found in response")
	case KindMissingCredential:
		b.WriteString("missing API key")
	default:
		b.WriteString(string(e.Kind))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the classification marker and the underlying cause.
func (e *ProviderError) Unwrap() []error {
	errs := []error{e.marker()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *ProviderError) marker() error {
	switch e.Kind {
	case KindAuthentication, KindMissingCredential, KindInvalidURL:
		return ErrConfiguration
	case KindRateLimit, KindNetwork:
		return ErrTransient
	case KindParsing, KindAPIResponse, KindNoImageData:
		return ErrValidation
	case KindAPI:
		if e.StatusCode >= 500 || e.StatusCode == 408 {
			return ErrTransient
		}
		return ErrExternalTool
	default:
		return ErrExternalTool
	}
}

// NewProviderError builds a ProviderError.
func NewProviderError(provider string, kind ProviderErrorKind, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: message, Err: err}
}

// StatusError maps an HTTP status code to the matching ProviderError kind.
func StatusError(provider string, status int, body string) *ProviderError {
	kind := KindAPI
	switch status {
	case 401, 403:
		kind = KindAuthentication
	case 429:
		kind = KindRateLimit
	}
	return &ProviderError{Provider: provider, Kind: kind, StatusCode: status, Message: strings.TrimSpace(body)}
}

// ProviderErrorKindOf returns the kind carried by err, if any.
func ProviderErrorKindOf(err error) (ProviderErrorKind, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind, true
	}
	return "", false
}

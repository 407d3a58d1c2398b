// Package retry runs provider calls under a bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wordslearner/internal/services"
)

// Policy bounds a retried operation. The zero value makes a single attempt.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Sleep replaces the context-aware wait between attempts.
	Sleep func(time.Duration)
}

// Default is three attempts starting at one second and capped at ten.
func Default() Policy {
	return Policy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
}

// Classifier decides whether err is worth another attempt and how long the
// server asked to wait. A zero wait means use the backoff schedule.
type Classifier func(err error) (retry bool, wait time.Duration)

// Do calls op until it succeeds, classify refuses, attempts run out or ctx
// ends. The last op error is returned as is so callers keep its kind.
func (p Policy) Do(ctx context.Context, classify Classifier, op func(attempt int) error) error {
	if classify == nil {
		classify = Transient
	}
	attempts := max(p.Attempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(attempt); err == nil {
			return nil
		}
		if attempt == attempts || ctx.Err() != nil {
			break
		}
		retry, wait := classify(err)
		if !retry {
			break
		}
		if wait <= 0 {
			wait = p.Backoff(attempt)
		}
		if serr := p.wait(ctx, p.cap(wait)); serr != nil {
			return serr
		}
	}
	return err
}

// Backoff doubles BaseDelay per completed attempt, capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return p.cap(delay)
}

func (p Policy) cap(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p Policy) wait(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}
	if p.Sleep != nil {
		p.Sleep(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Transient retries errors carrying the transient or timeout markers and
// honours a provider's Retry-After hint.
func Transient(err error) (bool, time.Duration) {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, 0
	}
	if !services.IsRetryable(err) {
		return false, 0
	}
	var perr *services.ProviderError
	if errors.As(err, &perr) {
		return true, perr.RetryAfter
	}
	return true, 0
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP date.
func RetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}

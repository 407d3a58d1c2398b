package storyboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wordslearner/internal/logging"
	"wordslearner/internal/services"
	"wordslearner/internal/services/llm"
)

// DefaultAttempts is how many model calls Plan makes before giving up.
const DefaultAttempts = 3

// Planner produces validated storyboard plans.
type Planner struct {
	gen      llm.TextGenerator
	attempts int
	logger   *slog.Logger
}

// NewPlanner returns a planner. attempts below 1 fall back to DefaultAttempts.
func NewPlanner(gen llm.TextGenerator, attempts int, logger *slog.Logger) *Planner {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Planner{
		gen:      gen,
		attempts: attempts,
		logger:   logging.NewComponentLogger(logger, "storyboard"),
	}
}

// Plan asks the model for a storyboard and returns the first response that
// decodes and validates. Parse, validation and transient transport failures
// are retried; the last failure is returned once attempts run out.
func (p *Planner) Plan(ctx context.Context, word1, word2, sentence string) (*Plan, error) {
	var (
		lastErr   error
		retryNote string
	)
	for attempt := 1; attempt <= p.attempts; attempt++ {
		prompt := BuildPrompt(word1, word2, sentence, retryNote)
		raw, err := llm.Collect(ctx, p.gen, prompt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = fmt.Errorf("storyboard request: %w", err)
			if !services.IsRetryable(err) {
				return nil, lastErr
			}
			p.logAttemptFailure(attempt, "request", err)
			continue
		}

		plan, err := Decode(raw)
		if err != nil {
			lastErr = services.Wrap(services.ErrValidation, "storyboard", "decode", "model returned malformed JSON", err)
			retryNote = "It was not valid JSON for the schema: " + err.Error()
			p.logAttemptFailure(attempt, "decode", err)
			continue
		}

		if err := Validate(plan, sentence); err != nil {
			lastErr = err
			retryNote = "It failed validation: " + err.Error()
			p.logAttemptFailure(attempt, "validate", err)
			continue
		}

		p.logger.Info("storyboard planned",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("stories", len(plan.Stories)),
			logging.Int("frames", plan.FrameCount()),
			logging.String("verdict", string(plan.FinalConclusion.Verdict)),
		)
		return plan, nil
	}
	return nil, lastErr
}

func (p *Planner) logAttemptFailure(attempt int, phase string, err error) {
	attrs := []logging.Attr{
		logging.Int(logging.FieldAttempt, attempt),
		logging.String("phase", phase),
		logging.Error(err),
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		attrs = append(attrs, logging.String("rule", verr.Rule))
	}
	if attempt < p.attempts {
		p.logger.Debug("storyboard attempt rejected", logging.Args(attrs...)...)
		return
	}
	logging.WarnWithContext(p.logger, "storyboard attempts exhausted", "storyboard_invalid",
		append(attrs,
			logging.String(logging.FieldErrorHint, "model output kept failing the storyboard contract"),
			logging.String(logging.FieldImpact, "lesson generation fails"),
		)...,
	)
}

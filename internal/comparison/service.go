package comparison

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"wordslearner/internal/logging"
	"wordslearner/internal/services"
	"wordslearner/internal/services/llm"
	"wordslearner/internal/store"
)

// HistoryWriter records completed comparisons.
type HistoryWriter interface {
	AddHistory(ctx context.Context, word1, word2, sentence, response string) (*store.History, error)
}

// Service runs interactive comparisons.
type Service struct {
	gen     llm.TextGenerator
	history HistoryWriter
	logger  *slog.Logger
}

// NewService wires a comparison service.
func NewService(gen llm.TextGenerator, history HistoryWriter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		gen:     gen,
		history: history,
		logger:  logging.NewComponentLogger(logger, "comparison"),
	}
}

// Compare streams the comparison for a word pair to out as fragments arrive
// and appends one history row once the stream completes. Nothing is saved
// when generation fails.
func (s *Service) Compare(ctx context.Context, word1, word2, sentence string, out io.Writer) (*store.History, error) {
	word1, word2, sentence = strings.TrimSpace(word1), strings.TrimSpace(word2), strings.TrimSpace(sentence)
	if err := ValidateWords(word1, word2); err != nil {
		return nil, err
	}
	if out == nil {
		out = io.Discard
	}

	var b strings.Builder
	for fragment, err := range s.gen.StreamResponse(ctx, BuildPrompt(word1, word2, sentence)) {
		if err != nil {
			return nil, fmt.Errorf("generate comparison: %w", err)
		}
		b.WriteString(fragment)
		if _, werr := io.WriteString(out, fragment); werr != nil {
			return nil, fmt.Errorf("write fragment: %w", werr)
		}
	}

	entry, err := s.history.AddHistory(ctx, word1, word2, sentence, b.String())
	if err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	s.logger.Info("comparison saved",
		logging.String("history_id", entry.ID),
		logging.String("word1", word1),
		logging.String("word2", word2),
		logging.Int("response_chars", b.Len()),
	)
	return entry, nil
}

// ValidateWords rejects empty word pairs.
func ValidateWords(word1, word2 string) error {
	if strings.TrimSpace(word1) == "" || strings.TrimSpace(word2) == "" {
		return services.Wrap(services.ErrValidation, "comparison", "validate", "word1 and word2 are required", nil)
	}
	return nil
}

package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wordslearner/internal/comparison"
	"wordslearner/internal/logging"
	"wordslearner/internal/services"
	"wordslearner/internal/services/llm"
	"wordslearner/internal/store"
)

// Start launches the worker. Calling Start on a running manager is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	if m.store == nil || m.gen == nil {
		return errors.New("task queue not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)

	m.logger.Info("task queue started",
		logging.Duration("idle_interval", m.idleInterval),
		logging.Duration("post_task_delay", m.postTaskDelay),
	)
	return nil
}

// Stop cancels the worker and waits for it to exit. A task already running
// is allowed to finish first.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("task queue stopped")
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		task, err := m.store.NextPendingTask(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleNextTaskError(ctx, err)
			continue
		}
		if task == nil {
			m.wait(ctx, m.idleInterval)
			continue
		}

		if err := m.processTask(ctx, task); err != nil {
			m.handleNextTaskError(ctx, err)
			continue
		}
		m.wait(ctx, m.postTaskDelay)
	}
}

// processTask runs one task to completion. The job runs on a context that
// survives worker cancellation so Stop never leaves a half-written task.
// Only store failures are returned; generation failures fail the task.
func (m *Manager) processTask(ctx context.Context, task *store.Task) error {
	jobCtx := services.WithTaskID(context.WithoutCancel(ctx), task.ID)
	logger := logging.WithContext(jobCtx, m.logger)

	if err := m.store.MarkTaskGenerating(jobCtx, task.ID); err != nil {
		return fmt.Errorf("mark task generating: %w", err)
	}
	m.setCurrent(task.ID)
	defer m.setCurrent("")

	logger.Info("task started",
		logging.String("word1", task.Word1),
		logging.String("word2", task.Word2),
	)
	started := time.Now()

	prompt := comparison.BuildPrompt(task.Word1, task.Word2, task.Sentence)
	response, genErr := llm.Collect(jobCtx, m.gen, prompt)
	if genErr != nil {
		return m.failTask(jobCtx, logger, task, genErr)
	}

	entry, err := m.store.CompleteTask(jobCtx, task.ID, response)
	if err != nil {
		// The worker never moves on with this row still generating.
		if failErr := m.store.FailTask(jobCtx, task.ID, err.Error()); failErr != nil {
			logger.Warn("could not record task failure", logging.Error(failErr))
		}
		return fmt.Errorf("complete task: %w", err)
	}
	logger.Info("task completed",
		logging.String("history_id", entry.ID),
		logging.Int("response_chars", len(response)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func (m *Manager) failTask(ctx context.Context, logger *slog.Logger, task *store.Task, cause error) error {
	attrs := []logging.Attr{
		logging.Error(cause),
		logging.String(logging.FieldImpact, "task marked failed; regenerate to retry"),
	}
	if kind, ok := services.ProviderErrorKindOf(cause); ok {
		attrs = append(attrs, logging.String("provider_error_kind", string(kind)))
	}
	if errors.Is(cause, services.ErrConfiguration) {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "check llm api_key and base_url"))
	}
	logging.WarnWithContext(logger, "task failed", "task_failed", attrs...)

	if err := m.store.FailTask(ctx, task.ID, cause.Error()); err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	return nil
}

func (m *Manager) handleNextTaskError(ctx context.Context, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(m.logger, "task queue iteration failed", "task_queue_error",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check database access"),
		logging.Duration("backoff", m.errorBackoff),
	)
	m.wait(ctx, m.errorBackoff)
}

func (m *Manager) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

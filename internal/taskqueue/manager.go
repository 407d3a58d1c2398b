package taskqueue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wordslearner/internal/config"
	"wordslearner/internal/logging"
	"wordslearner/internal/services/llm"
	"wordslearner/internal/store"
)

// TaskStore is the subset of the record store the worker needs.
type TaskStore interface {
	AddTask(ctx context.Context, word1, word2, sentence string) (*store.Task, error)
	NextPendingTask(ctx context.Context) (*store.Task, error)
	MarkTaskGenerating(ctx context.Context, id string) error
	CompleteTask(ctx context.Context, id, response string) (*store.History, error)
	FailTask(ctx context.Context, id, message string) error
	RegenerateTask(ctx context.Context, id string) (int64, error)
	CountTasks(ctx context.Context, status store.TaskStatus) (int, error)
}

// Manager coordinates the single background comparison worker.
type Manager struct {
	store  TaskStore
	gen    llm.TextGenerator
	logger *slog.Logger

	idleInterval  time.Duration
	postTaskDelay time.Duration
	errorBackoff  time.Duration

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	current string
	lastErr error
}

// NewManager constructs a manager using the queue timings from cfg.
func NewManager(cfg *config.Config, st TaskStore, gen llm.TextGenerator, logger *slog.Logger) *Manager {
	return &Manager{
		store:         st,
		gen:           gen,
		logger:        logging.NewComponentLogger(logger, "task-queue"),
		idleInterval:  cfg.IdleInterval(),
		postTaskDelay: cfg.PostTaskDelay(),
		errorBackoff:  cfg.ErrorRetryInterval(),
	}
}

// AddTask queues a comparison for the worker.
func (m *Manager) AddTask(ctx context.Context, word1, word2, sentence string) (*store.Task, error) {
	task, err := m.store.AddTask(ctx, word1, word2, sentence)
	if err != nil {
		return nil, err
	}
	m.logger.Info("task queued",
		logging.TaskID(task.ID),
		logging.String("word1", task.Word1),
		logging.String("word2", task.Word2),
	)
	return task, nil
}

// RegenerateTask puts a task back to pending. It reports whether a task with
// that id existed.
func (m *Manager) RegenerateTask(ctx context.Context, id string) (bool, error) {
	affected, err := m.store.RegenerateTask(ctx, id)
	if err != nil {
		return false, err
	}
	if affected > 0 {
		m.logger.Info("task reset to pending", logging.TaskID(id))
	}
	return affected > 0, nil
}

// PendingCount returns the number of tasks waiting to run.
func (m *Manager) PendingCount(ctx context.Context) (int, error) {
	return m.store.CountTasks(ctx, store.TaskPending)
}

// CurrentTaskID returns the id of the task the worker is executing.
func (m *Manager) CurrentTaskID() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.current != ""
}

// IsProcessing reports whether a task is executing right now.
func (m *Manager) IsProcessing() bool {
	_, ok := m.CurrentTaskID()
	return ok
}

// IsRunning reports whether the worker loop is started.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent loop-level error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) setCurrent(id string) {
	m.mu.Lock()
	m.current = id
	m.mu.Unlock()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

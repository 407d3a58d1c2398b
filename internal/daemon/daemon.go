package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"wordslearner/internal/assets"
	"wordslearner/internal/config"
	"wordslearner/internal/lesson"
	"wordslearner/internal/logging"
	"wordslearner/internal/services"
	"wordslearner/internal/store"
	"wordslearner/internal/taskqueue"
)

// LessonGenerator builds lessons on behalf of API callers.
type LessonGenerator interface {
	Generate(ctx context.Context, word1, word2, sentence string, onProgress lesson.ProgressFunc) (string, error)
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	queue   *taskqueue.Manager
	lessons LessonGenerator
	assets  assets.Store

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	// runMu guards ctx and cancel, and orders lessonWG.Add against Stop.
	runMu  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	lessonWG   sync.WaitGroup
	progressMu sync.RWMutex
	progress   map[string]lesson.Progress
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool                     `json:"running"`
	Processing    bool                     `json:"processing"`
	CurrentTaskID string                   `json:"currentTaskId,omitempty"`
	PendingCount  int                      `json:"pendingCount"`
	TaskStats     map[store.TaskStatus]int `json:"taskStats"`
	ActiveLessons []lesson.Progress        `json:"activeLessons"`
	DatabasePath  string                   `json:"databasePath"`
	LockFilePath  string                   `json:"lockFilePath"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, mgr *taskqueue.Manager, gen LessonGenerator, assetStore assets.Store) (*Daemon, error) {
	if cfg == nil || st == nil || mgr == nil || gen == nil || assetStore == nil {
		return nil, errors.New("daemon requires config, store, task queue, lesson generator and asset store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		queue:    mgr,
		lessons:  gen,
		assets:   assetStore,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		progress: make(map[string]lesson.Progress),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted tasks and launches the
// task queue and HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another wordslearner daemon is already running for this data directory")
	}

	recovered, err := d.store.FailInterruptedTasks(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted tasks: %w", err)
	}
	if recovered > 0 {
		logging.WarnWithContext(d.logger, "interrupted tasks marked failed", "task_recovery",
			logging.Int64("count", recovered),
			logging.String(logging.FieldErrorHint, "regenerate the tasks to run them again"),
			logging.String(logging.FieldImpact, "tasks left generating by a previous process were not retried"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.runMu.Lock()
	d.ctx, d.cancel = runCtx, cancel
	d.runMu.Unlock()
	if err := d.queue.Start(runCtx); err != nil {
		d.abortStart()
		return fmt.Errorf("start task queue: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.queue.Stop()
		d.abortStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("wordslearner daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.clearRunContext()
}

// clearRunContext cancels the run context and forgets it so StartLesson
// refuses new work.
func (d *Daemon) clearRunContext() {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing, cancels running lessons and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.clearRunContext()
	d.api.stop()
	d.queue.Stop()
	d.lessonWG.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("wordslearner daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Addr returns the API listener address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	pending, err := d.queue.PendingCount(ctx)
	if err != nil {
		return Status{}, err
	}
	stats, err := d.store.TaskStats(ctx)
	if err != nil {
		return Status{}, err
	}
	current, processing := d.queue.CurrentTaskID()
	return Status{
		Running:       d.running.Load(),
		Processing:    processing,
		CurrentTaskID: current,
		PendingCount:  pending,
		TaskStats:     stats,
		ActiveLessons: d.activeLessons(),
		DatabasePath:  d.store.Path(),
		LockFilePath:  d.lockPath,
	}, nil
}

// StartLesson begins generating a lesson in the background and returns its
// id as soon as the lesson row exists. Errors raised before that point are
// returned directly.
func (d *Daemon) StartLesson(ctx context.Context, word1, word2, sentence string) (string, error) {
	if strings.TrimSpace(word1) == "" || strings.TrimSpace(word2) == "" {
		return "", services.Wrap(services.ErrValidation, "lesson", "validate", "word1 and word2 are required", nil)
	}

	d.runMu.Lock()
	runCtx := d.ctx
	if !d.running.Load() || runCtx == nil {
		d.runMu.Unlock()
		return "", errors.New("daemon not running")
	}
	d.lessonWG.Add(1)
	d.runMu.Unlock()

	idCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		defer d.lessonWG.Done()
		var once sync.Once
		id, err := d.lessons.Generate(runCtx, word1, word2, sentence, func(p lesson.Progress) {
			once.Do(func() { idCh <- p.LessonID })
			d.setProgress(p)
		})
		if err != nil {
			once.Do(func() { errCh <- err })
			d.logger.Warn("background lesson failed",
				logging.LessonID(id),
				logging.Error(err),
			)
		}
		d.clearProgress(id)
	}()

	select {
	case id := <-idCh:
		return id, nil
	case err := <-errCh:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// LessonProgress returns the latest progress of a lesson being generated.
func (d *Daemon) LessonProgress(id string) (lesson.Progress, bool) {
	d.progressMu.RLock()
	defer d.progressMu.RUnlock()
	p, ok := d.progress[id]
	return p, ok
}

func (d *Daemon) setProgress(p lesson.Progress) {
	d.progressMu.Lock()
	defer d.progressMu.Unlock()
	d.progress[p.LessonID] = p
}

func (d *Daemon) clearProgress(id string) {
	if id == "" {
		return
	}
	d.progressMu.Lock()
	defer d.progressMu.Unlock()
	delete(d.progress, id)
}

func (d *Daemon) activeLessons() []lesson.Progress {
	d.progressMu.RLock()
	defer d.progressMu.RUnlock()
	out := make([]lesson.Progress, 0, len(d.progress))
	for _, p := range d.progress {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessonID < out[j].LessonID })
	return out
}

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"wordslearner/internal/config"
	"wordslearner/internal/logging"
	"wordslearner/internal/services"
	"wordslearner/internal/store"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		token:  cfg.Paths.APIToken,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleAddTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /api/tasks/{id}/regenerate", s.handleRegenerateTask)
	mux.HandleFunc("GET /api/history", s.handleListHistory)
	mux.HandleFunc("POST /api/history/{id}/read", s.handleMarkRead)
	mux.HandleFunc("GET /api/lessons", s.handleListLessons)
	mux.HandleFunc("POST /api/lessons", s.handleStartLesson)
	mux.HandleFunc("GET /api/lessons/{id}", s.handleGetLesson)
	return s.withRequestID(authMiddleware(s.token, mux.ServeHTTP))
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) withRequestID(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
		next(w, r.WithContext(ctx))
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var statuses []store.TaskStatus
	for _, value := range r.URL.Query()["status"] {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, ok := store.ParseTaskStatus(part)
			if !ok {
				s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown task status %q", part))
				return
			}
			statuses = append(statuses, status)
		}
	}
	tasks, err := s.daemon.store.ListTasks(r.Context(), statuses...)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, TaskListResponse{Tasks: taskViews(tasks)})
}

func (s *apiServer) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req WordPairRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if !req.valid() {
		s.writeError(w, http.StatusBadRequest, "word1 and word2 are required")
		return
	}
	task, err := s.daemon.queue.AddTask(r.Context(), req.Word1, req.Word2, req.Sentence)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newTaskView(task))
}

func (s *apiServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.daemon.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if task == nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, newTaskView(task))
}

func (s *apiServer) handleRegenerateTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok, err := s.daemon.queue.RegenerateTask(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	task, err := s.daemon.store.GetTask(r.Context(), id)
	if err != nil || task == nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newTaskView(task))
}

func (s *apiServer) handleListHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.HistoryFilter{
		Search:     strings.TrimSpace(query.Get("q")),
		UnreadOnly: query.Get("unread") == "1" || strings.EqualFold(query.Get("unread"), "true"),
	}
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	entries, err := s.daemon.store.ListHistory(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*store.History{}
	}
	s.writeJSON(w, http.StatusOK, HistoryListResponse{History: entries})
}

func (s *apiServer) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	req := MarkReadRequest{Read: true}
	if r.ContentLength != 0 && !s.decodeBody(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	if err := s.daemon.store.SetHistoryRead(r.Context(), id, req.Read); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	entry, err := s.daemon.store.GetHistory(r.Context(), id)
	if err != nil || entry == nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *apiServer) handleListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := s.daemon.store.ListLessons(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	views := make([]LessonView, 0, len(lessons))
	for _, l := range lessons {
		views = append(views, newLessonView(l))
	}
	s.writeJSON(w, http.StatusOK, LessonListResponse{Lessons: views})
}

func (s *apiServer) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	l, err := s.daemon.store.GetLesson(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if l == nil {
		s.writeError(w, http.StatusNotFound, "lesson not found")
		return
	}
	frames, err := s.daemon.store.ListFrames(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := LessonDetailResponse{
		Lesson: newLessonView(l),
		Frames: frameViews(frames, s.daemon.assets),
	}
	if p, ok := s.daemon.LessonProgress(id); ok {
		resp.Progress = &p
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStartLesson(w http.ResponseWriter, r *http.Request) {
	var req WordPairRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if !req.valid() {
		s.writeError(w, http.StatusBadRequest, "word1 and word2 are required")
		return
	}
	id, err := s.daemon.StartLesson(r.Context(), req.Word1, req.Word2, req.Sentence)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, LessonStartedResponse{LessonID: id})
}

func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case err == nil:
		err = errors.New("record disappeared")
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("api request failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

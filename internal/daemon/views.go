package daemon

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"wordslearner/internal/assets"
	"wordslearner/internal/lesson"
	"wordslearner/internal/store"
)

var titleCaser = cases.Title(language.English)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WordPairRequest is the body of POST /api/tasks and POST /api/lessons.
type WordPairRequest struct {
	Word1    string `json:"word1"`
	Word2    string `json:"word2"`
	Sentence string `json:"sentence"`
}

func (r WordPairRequest) valid() bool {
	return strings.TrimSpace(r.Word1) != "" && strings.TrimSpace(r.Word2) != ""
}

// MarkReadRequest is the optional body of POST /api/history/{id}/read.
type MarkReadRequest struct {
	Read bool `json:"read"`
}

// TaskView is a task with a display label for its status.
type TaskView struct {
	*store.Task
	StatusLabel string `json:"statusLabel"`
}

type TaskListResponse struct {
	Tasks []TaskView `json:"tasks"`
}

type HistoryListResponse struct {
	History []*store.History `json:"history"`
}

// LessonView omits the raw storyboard from lesson listings.
type LessonView struct {
	ID               string             `json:"id"`
	Word1            string             `json:"word1"`
	Word2            string             `json:"word2"`
	UserSentence     string             `json:"userSentence"`
	Status           store.LessonStatus `json:"status"`
	StatusLabel      string             `json:"statusLabel"`
	GeneratorVersion string             `json:"generatorVersion"`
	Rating           *int               `json:"selfRatingClarity,omitempty"`
	DurationSeconds  *float64           `json:"durationSeconds,omitempty"`
	ErrorMessage     string             `json:"errorMessage,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	CompletedAt      *time.Time         `json:"completedAt,omitempty"`
}

type LessonListResponse struct {
	Lessons []LessonView `json:"lessons"`
}

// FrameView is a frame with its asset locations resolved.
type FrameView struct {
	*store.Frame
	ImageLocation string `json:"imageLocation"`
	AudioLocation string `json:"audioLocation"`
}

type LessonDetailResponse struct {
	Lesson   LessonView       `json:"lesson"`
	Frames   []FrameView      `json:"frames"`
	Progress *lesson.Progress `json:"progress,omitempty"`
}

type LessonStartedResponse struct {
	LessonID string `json:"lessonId"`
}

// StatusLabel renders a status value for display, e.g. "generating" as "Generating".
func StatusLabel(status string) string {
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

func newTaskView(task *store.Task) TaskView {
	return TaskView{Task: task, StatusLabel: StatusLabel(string(task.Status))}
}

func taskViews(tasks []*store.Task) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, newTaskView(task))
	}
	return out
}

func newLessonView(l *store.Lesson) LessonView {
	return LessonView{
		ID:               l.ID,
		Word1:            l.Word1,
		Word2:            l.Word2,
		UserSentence:     l.UserSentence,
		Status:           l.Status,
		StatusLabel:      StatusLabel(string(l.Status)),
		GeneratorVersion: l.GeneratorVersion,
		Rating:           l.SelfRatingClarity,
		DurationSeconds:  l.DurationSeconds,
		ErrorMessage:     l.ErrorMessage,
		CreatedAt:        l.CreatedAt,
		CompletedAt:      l.CompletedAt,
	}
}

func frameViews(frames []*store.Frame, resolver assets.Store) []FrameView {
	out := make([]FrameView, 0, len(frames))
	for _, frame := range frames {
		out = append(out, FrameView{
			Frame:         frame,
			ImageLocation: resolver.Resolve(frame.ImageRelativePath),
			AudioLocation: resolver.Resolve(frame.AudioRelativePath),
		})
	}
	return out
}

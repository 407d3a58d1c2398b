package store

import "time"

// TaskStatus is the lifecycle state of a background comparison task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskGenerating TaskStatus = "generating"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// TaskStatuses lists every task status in lifecycle order.
var TaskStatuses = []TaskStatus{TaskPending, TaskGenerating, TaskCompleted, TaskFailed}

// ParseTaskStatus validates a user-supplied status name.
func ParseTaskStatus(value string) (TaskStatus, bool) {
	for _, status := range TaskStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// Task is a queued comparison job.
type Task struct {
	ID        string     `json:"id"`
	Word1     string     `json:"word1"`
	Word2     string     `json:"word2"`
	Sentence  string     `json:"sentence"`
	Status    TaskStatus `json:"status"`
	Response  string     `json:"response"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// History is one completed comparison.
type History struct {
	ID       string    `json:"id"`
	Word1    string    `json:"word1"`
	Word2    string    `json:"word2"`
	Sentence string    `json:"sentence"`
	Response string    `json:"response"`
	Date     time.Time `json:"date"`
	IsRead   bool      `json:"isRead"`
}

// HistoryFilter narrows ListHistory results.
type HistoryFilter struct {
	// Search matches word1 or word2 by case-insensitive substring.
	Search     string
	UnreadOnly bool
	Limit      int
}

// LessonStatus is the lifecycle state of a multimodal lesson.
type LessonStatus string

const (
	LessonGenerating LessonStatus = "generating"
	LessonReady      LessonStatus = "ready"
	LessonFailed     LessonStatus = "failed"
)

// Lesson is a storyboard lesson and its generation bookkeeping.
type Lesson struct {
	ID                string       `json:"id"`
	Word1             string       `json:"word1"`
	Word2             string       `json:"word2"`
	UserSentence      string       `json:"userSentence"`
	Status            LessonStatus `json:"status"`
	StoryboardJSON    string       `json:"storyboardJSON,omitempty"`
	StylePreset       string       `json:"stylePreset"`
	VoicePreset       string       `json:"voicePreset"`
	ImageModel        string       `json:"imageModel"`
	AudioModel        string       `json:"audioModel"`
	GeneratorVersion  string       `json:"generatorVersion"`
	SelfRatingClarity *int         `json:"selfRatingClarity,omitempty"`
	DurationSeconds   *float64     `json:"durationSeconds,omitempty"`
	ErrorMessage      string       `json:"errorMessage,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
	CompletedAt       *time.Time   `json:"completedAt,omitempty"`
}

// NewLesson holds the inputs and presets recorded when a lesson starts.
type NewLesson struct {
	Word1            string
	Word2            string
	UserSentence     string
	StylePreset      string
	VoicePreset      string
	ImageModel       string
	AudioModel       string
	GeneratorVersion string
}

// Frame is one generated storyboard frame.
type Frame struct {
	ID                   string    `json:"id"`
	LessonID             string    `json:"lessonID"`
	FrameIndex           int       `json:"frameIndex"`
	FrameRole            string    `json:"frameRole"`
	Title                string    `json:"title"`
	Caption              string    `json:"caption"`
	NarrationText        string    `json:"narrationText"`
	ImagePrompt          string    `json:"imagePrompt"`
	ImageRelativePath    string    `json:"imageRelativePath"`
	AudioRelativePath    string    `json:"audioRelativePath"`
	AudioDurationSeconds *float64  `json:"audioDurationSeconds,omitempty"`
	CheckPrompt          string    `json:"checkPrompt,omitempty"`
	ExpectedAnswer       string    `json:"expectedAnswer,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

package lesson

// ProgressKind identifies a generation milestone.
type ProgressKind string

const (
	ProgressPlanning        ProgressKind = "planning"
	ProgressGeneratingFrame ProgressKind = "generating_frame"
	ProgressCompleted       ProgressKind = "completed"
)

// Progress is reported to the caller as generation advances. Step is 1-based
// and only set for frame events. FrameIndex 0 is the first frame and is always encoded.
type Progress struct {
	Kind       ProgressKind `json:"kind"`
	LessonID   string       `json:"lessonId"`
	Step       int          `json:"step,omitempty"`
	TotalSteps int          `json:"totalSteps,omitempty"`
	FrameIndex int          `json:"frameIndex"`
}

// ProgressFunc receives progress events. It runs on the generating goroutine.
type ProgressFunc func(Progress)

package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTaskID is the standardized structured logging key for background task identifiers.
	FieldTaskID = "task_id"
	// FieldLessonID is the standardized structured logging key for lesson identifiers.
	FieldLessonID = "lesson_id"
	// FieldFrameIndex is the global frame index within a lesson.
	FieldFrameIndex = "frame_index"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step after a failure.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAttempt is the 1-based attempt number inside a retry loop.
	FieldAttempt = "attempt"
)

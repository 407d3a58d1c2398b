package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const lessonColumns = `id, word1, word2, user_sentence, status, storyboard_json, style_preset, voice_preset,
    image_model, audio_model, generator_version, self_rating_clarity, duration_seconds, error_message,
    created_at, updated_at, completed_at`

const frameColumns = `id, lesson_id, frame_index, frame_role, title, caption, narration_text, image_prompt,
    image_relative_path, audio_relative_path, audio_duration_seconds, check_prompt, expected_answer,
    created_at, updated_at`

// CreateLesson inserts a lesson in the generating state.
func (s *Store) CreateLesson(ctx context.Context, input NewLesson) (*Lesson, error) {
	now := s.timestamp()
	lesson := &Lesson{
		ID:               newID(),
		Word1:            input.Word1,
		Word2:            input.Word2,
		UserSentence:     input.UserSentence,
		Status:           LessonGenerating,
		StylePreset:      input.StylePreset,
		VoicePreset:      input.VoicePreset,
		ImageModel:       input.ImageModel,
		AudioModel:       input.AudioModel,
		GeneratorVersion: input.GeneratorVersion,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO multimodal_lessons (
            id, word1, word2, user_sentence, status, storyboard_json, style_preset, voice_preset,
            image_model, audio_model, generator_version, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, '', ?, ?, ?, ?, ?, ?, ?)`,
		lesson.ID, lesson.Word1, lesson.Word2, lesson.UserSentence, lesson.Status,
		lesson.StylePreset, lesson.VoicePreset, lesson.ImageModel, lesson.AudioModel,
		lesson.GeneratorVersion, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert lesson: %w", err)
	}
	return lesson, nil
}

// GetLesson fetches a lesson by id. Returns (nil, nil) when absent.
func (s *Store) GetLesson(ctx context.Context, id string) (*Lesson, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+lessonColumns+" FROM multimodal_lessons WHERE id = ?", id)
	lesson, err := scanLesson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lesson, nil
}

// ListLessons returns lessons newest first.
func (s *Store) ListLessons(ctx context.Context) ([]*Lesson, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+lessonColumns+" FROM multimodal_lessons ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, lesson)
	}
	return lessons, rows.Err()
}

// SetLessonStoryboard stores the serialized plan. The status is unchanged.
func (s *Store) SetLessonStoryboard(ctx context.Context, id, storyboardJSON string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE multimodal_lessons SET storyboard_json = ?, updated_at = ? WHERE id = ?",
		storyboardJSON, formatTime(s.timestamp()), id,
	)
	if err != nil {
		return fmt.Errorf("set lesson storyboard: %w", err)
	}
	return requireAffected(res, "lesson", id)
}

// MarkLessonReady finalizes a lesson and stamps completed_at.
func (s *Store) MarkLessonReady(ctx context.Context, id string) error {
	now := formatTime(s.timestamp())
	res, err := s.execWithRetry(ctx,
		`UPDATE multimodal_lessons
            SET status = ?, error_message = NULL, completed_at = ?, updated_at = ?
          WHERE id = ?`,
		LessonReady, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark lesson ready: %w", err)
	}
	return requireAffected(res, "lesson", id)
}

// MarkLessonFailed records the failure message and clears completed_at.
func (s *Store) MarkLessonFailed(ctx context.Context, id, message string) error {
	if strings.TrimSpace(message) == "" {
		message = "unknown error"
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE multimodal_lessons
            SET status = ?, error_message = ?, completed_at = NULL, updated_at = ?
          WHERE id = ?`,
		LessonFailed, message, formatTime(s.timestamp()), id,
	)
	if err != nil {
		return fmt.Errorf("mark lesson failed: %w", err)
	}
	return requireAffected(res, "lesson", id)
}

// RateLesson records a 1-5 clarity rating.
func (s *Store) RateLesson(ctx context.Context, id string, rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating %d out of range 1-5", rating)
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE multimodal_lessons SET self_rating_clarity = ?, updated_at = ? WHERE id = ?",
		rating, formatTime(s.timestamp()), id,
	)
	if err != nil {
		return fmt.Errorf("rate lesson: %w", err)
	}
	return requireAffected(res, "lesson", id)
}

// SetLessonDuration records how long the lesson took to watch.
func (s *Store) SetLessonDuration(ctx context.Context, id string, seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("duration %.2f must not be negative", seconds)
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE multimodal_lessons SET duration_seconds = ?, updated_at = ? WHERE id = ?",
		seconds, formatTime(s.timestamp()), id,
	)
	if err != nil {
		return fmt.Errorf("set lesson duration: %w", err)
	}
	return requireAffected(res, "lesson", id)
}

// DeleteLesson removes a lesson and its frames. It reports whether the lesson existed.
func (s *Store) DeleteLesson(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM multimodal_lesson_frames WHERE lesson_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM multimodal_lessons WHERE id = ?", id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = affected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete lesson: %w", err)
	}
	return removed, nil
}

// ClearLessons removes every lesson and frame, returning the lesson ids removed.
func (s *Store) ClearLessons(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ids = ids[:0]
		rows, err := tx.QueryContext(ctx, "SELECT id FROM multimodal_lessons ORDER BY created_at, rowid")
		if err != nil {
			return err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
		if _, err := tx.ExecContext(ctx, "DELETE FROM multimodal_lesson_frames"); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM multimodal_lessons")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("clear lessons: %w", err)
	}
	return ids, nil
}

// AddFrame inserts a frame row. ID and timestamps are assigned when empty.
func (s *Store) AddFrame(ctx context.Context, frame *Frame) error {
	if frame == nil {
		return errors.New("frame is nil")
	}
	if frame.ID == "" {
		frame.ID = newID()
	}
	now := s.timestamp()
	if frame.CreatedAt.IsZero() {
		frame.CreatedAt = now
	}
	frame.UpdatedAt = now
	_, err := s.execWithRetry(ctx,
		`INSERT INTO multimodal_lesson_frames (
            id, lesson_id, frame_index, frame_role, title, caption, narration_text, image_prompt,
            image_relative_path, audio_relative_path, audio_duration_seconds, check_prompt, expected_answer,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		frame.ID, frame.LessonID, frame.FrameIndex, frame.FrameRole, frame.Title, frame.Caption,
		frame.NarrationText, frame.ImagePrompt, frame.ImageRelativePath, frame.AudioRelativePath,
		nullableFloat(frame.AudioDurationSeconds), nullableString(frame.CheckPrompt),
		nullableString(frame.ExpectedAnswer), formatTime(frame.CreatedAt), formatTime(frame.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", frame.FrameIndex, err)
	}
	return nil
}

// ListFrames returns a lesson's frames ordered by frame index.
func (s *Store) ListFrames(ctx context.Context, lessonID string) ([]*Frame, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+frameColumns+" FROM multimodal_lesson_frames WHERE lesson_id = ? ORDER BY frame_index ASC",
		lessonID,
	)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var frames []*Frame
	for rows.Next() {
		frame, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, rows.Err()
}

// CountFrames returns how many frames a lesson has.
func (s *Store) CountFrames(ctx context.Context, lessonID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM multimodal_lesson_frames WHERE lesson_id = ?", lessonID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return count, nil
}

func scanLesson(scanner rowScanner) (*Lesson, error) {
	var (
		lesson      Lesson
		status      string
		rating      sql.NullInt64
		duration    sql.NullFloat64
		errMsg      sql.NullString
		createdAt   string
		updatedAt   string
		completedAt sql.NullString
	)
	if err := scanner.Scan(
		&lesson.ID, &lesson.Word1, &lesson.Word2, &lesson.UserSentence, &status,
		&lesson.StoryboardJSON, &lesson.StylePreset, &lesson.VoicePreset, &lesson.ImageModel,
		&lesson.AudioModel, &lesson.GeneratorVersion, &rating, &duration, &errMsg,
		&createdAt, &updatedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	lesson.Status = LessonStatus(status)
	lesson.ErrorMessage = errMsg.String
	if rating.Valid {
		value := int(rating.Int64)
		lesson.SelfRatingClarity = &value
	}
	if duration.Valid {
		value := duration.Float64
		lesson.DurationSeconds = &value
	}
	var err error
	if lesson.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("parse lesson created_at %q: %w", createdAt, err)
	}
	if lesson.UpdatedAt, err = parseTimeString(updatedAt); err != nil {
		return nil, fmt.Errorf("parse lesson updated_at %q: %w", updatedAt, err)
	}
	if completedAt.Valid && completedAt.String != "" {
		parsed, err := parseTimeString(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse lesson completed_at %q: %w", completedAt.String, err)
		}
		lesson.CompletedAt = &parsed
	}
	return &lesson, nil
}

func scanFrame(scanner rowScanner) (*Frame, error) {
	var (
		frame          Frame
		duration       sql.NullFloat64
		checkPrompt    sql.NullString
		expectedAnswer sql.NullString
		createdAt      string
		updatedAt      string
	)
	if err := scanner.Scan(
		&frame.ID, &frame.LessonID, &frame.FrameIndex, &frame.FrameRole, &frame.Title, &frame.Caption,
		&frame.NarrationText, &frame.ImagePrompt, &frame.ImageRelativePath, &frame.AudioRelativePath,
		&duration, &checkPrompt, &expectedAnswer, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	if duration.Valid {
		value := duration.Float64
		frame.AudioDurationSeconds = &value
	}
	frame.CheckPrompt = checkPrompt.String
	frame.ExpectedAnswer = expectedAnswer.String
	var err error
	if frame.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("parse frame created_at %q: %w", createdAt, err)
	}
	if frame.UpdatedAt, err = parseTimeString(updatedAt); err != nil {
		return nil, fmt.Errorf("parse frame updated_at %q: %w", updatedAt, err)
	}
	return &frame, nil
}

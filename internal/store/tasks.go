package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"wordslearner/internal/services"
)

const taskColumns = "id, word1, word2, sentence, status, response, error_message, created_at, updated_at"

// InterruptedTaskMessage is recorded on tasks a previous process left generating.
const InterruptedTaskMessage = "interrupted before completion"

// AddTask inserts a new pending comparison task.
func (s *Store) AddTask(ctx context.Context, word1, word2, sentence string) (*Task, error) {
	now := s.timestamp()
	task := &Task{
		ID:        newID(),
		Word1:     word1,
		Word2:     word2,
		Sentence:  sentence,
		Status:    TaskPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO background_tasks (id, word1, word2, sentence, status, response, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
		task.ID, task.Word1, task.Word2, task.Sentence, task.Status,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// GetTask fetches a task by id. Returns (nil, nil) when absent.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM background_tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// NextPendingTask returns the oldest pending task, or nil when the queue is empty.
func (s *Store) NextPendingTask(ctx context.Context) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM background_tasks WHERE status = ? ORDER BY created_at ASC, rowid ASC LIMIT 1",
		TaskPending,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending task: %w", err)
	}
	return task, nil
}

// MarkTaskGenerating moves a task into the generating state.
func (s *Store) MarkTaskGenerating(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE background_tasks SET status = ?, updated_at = ? WHERE id = ?",
		TaskGenerating, formatTime(s.timestamp()), id,
	)
	if err != nil {
		return fmt.Errorf("mark task generating: %w", err)
	}
	return requireAffected(res, "task", id)
}

// CompleteTask stores the response, marks the task completed and appends the
// matching history row in a single transaction.
func (s *Store) CompleteTask(ctx context.Context, id, response string) (*History, error) {
	var history *History
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		task, err := scanTask(tx.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM background_tasks WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %s: %w", id, services.ErrNotFound)
		}
		if err != nil {
			return err
		}
		now := s.timestamp()
		if _, err := tx.ExecContext(ctx,
			"UPDATE background_tasks SET status = ?, response = ?, error_message = NULL, updated_at = ? WHERE id = ?",
			TaskCompleted, response, formatTime(now), id,
		); err != nil {
			return err
		}
		history = &History{
			ID:       newID(),
			Word1:    task.Word1,
			Word2:    task.Word2,
			Sentence: task.Sentence,
			Response: response,
			Date:     now,
		}
		return insertHistory(ctx, tx, history)
	})
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	return history, nil
}

// FailTask records a failure message and marks the task failed.
func (s *Store) FailTask(ctx context.Context, id, message string) error {
	if strings.TrimSpace(message) == "" {
		message = "unknown error"
	}
	res, err := s.execWithRetry(ctx,
		"UPDATE background_tasks SET status = ?, error_message = ?, updated_at = ? WHERE id = ?",
		TaskFailed, message, formatTime(s.timestamp()), id,
	)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	return requireAffected(res, "task", id)
}

// RegenerateTask resets a task to pending and clears its response and error,
// whatever its current status. It reports how many rows changed.
func (s *Store) RegenerateTask(ctx context.Context, id string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		"UPDATE background_tasks SET status = ?, response = '', error_message = NULL, updated_at = ? WHERE id = ?",
		TaskPending, formatTime(s.timestamp()), id,
	)
	if err != nil {
		return 0, fmt.Errorf("regenerate task: %w", err)
	}
	return res.RowsAffected()
}

// ListTasks returns tasks in creation order, optionally filtered by status.
func (s *Store) ListTasks(ctx context.Context, statuses ...TaskStatus) ([]*Task, error) {
	query := "SELECT " + taskColumns + " FROM background_tasks"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CountTasks counts tasks in the given status.
func (s *Store) CountTasks(ctx context.Context, status TaskStatus) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM background_tasks WHERE status = ?", status,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

// TaskStats returns the number of tasks in each status. Every status is present.
func (s *Store) TaskStats(ctx context.Context) (map[TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM background_tasks GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[TaskStatus]int, len(TaskStatuses))
	for _, status := range TaskStatuses {
		stats[status] = 0
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[TaskStatus(status)] = count
	}
	return stats, rows.Err()
}

// RemoveTask deletes a single task. It reports whether a row was removed.
func (s *Store) RemoveTask(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM background_tasks WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("remove task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ClearTasks deletes tasks in the given statuses, or every task when none are given.
func (s *Store) ClearTasks(ctx context.Context, statuses ...TaskStatus) (int64, error) {
	query := "DELETE FROM background_tasks"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear tasks: %w", err)
	}
	return res.RowsAffected()
}

// FailInterruptedTasks marks tasks stuck in generating as failed. Call it
// only before a worker starts, since it cannot tell a live job from a dead one.
func (s *Store) FailInterruptedTasks(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		"UPDATE background_tasks SET status = ?, error_message = ?, updated_at = ? WHERE status = ?",
		TaskFailed, InterruptedTaskMessage, formatTime(s.timestamp()), TaskGenerating,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted tasks: %w", err)
	}
	return res.RowsAffected()
}

func scanTask(scanner rowScanner) (*Task, error) {
	var (
		task      Task
		status    string
		errMsg    sql.NullString
		createdAt string
		updatedAt string
	)
	if err := scanner.Scan(
		&task.ID, &task.Word1, &task.Word2, &task.Sentence, &status,
		&task.Response, &errMsg, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	task.Status = TaskStatus(status)
	task.Error = errMsg.String
	var err error
	if task.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("parse task created_at %q: %w", createdAt, err)
	}
	if task.UpdatedAt, err = parseTimeString(updatedAt); err != nil {
		return nil, fmt.Errorf("parse task updated_at %q: %w", updatedAt, err)
	}
	return &task, nil
}

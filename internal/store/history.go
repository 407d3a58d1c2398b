package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const historyColumns = "id, word1, word2, sentence, response, date, is_read"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AddHistory appends a completed comparison.
func (s *Store) AddHistory(ctx context.Context, word1, word2, sentence, response string) (*History, error) {
	history := &History{
		ID:       newID(),
		Word1:    word1,
		Word2:    word2,
		Sentence: sentence,
		Response: response,
		Date:     s.timestamp(),
	}
	if err := retryOnBusy(ctx, func() error { return insertHistory(ctx, s.db, history) }); err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}
	return history, nil
}

func insertHistory(ctx context.Context, db execer, history *History) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO comparison_history (id, word1, word2, sentence, response, date, is_read)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		history.ID, history.Word1, history.Word2, history.Sentence, history.Response,
		formatTime(history.Date), boolToInt(history.IsRead),
	)
	return err
}

// GetHistory fetches one history entry. Returns (nil, nil) when absent.
func (s *Store) GetHistory(ctx context.Context, id string) (*History, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+historyColumns+" FROM comparison_history WHERE id = ?", id)
	history, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return history, nil
}

// ListHistory returns history entries newest first.
func (s *Store) ListHistory(ctx context.Context, filter HistoryFilter) ([]*History, error) {
	var (
		clauses []string
		args    []any
	)
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := likePattern(term)
		clauses = append(clauses, `(lower(word1) LIKE ? ESCAPE '\' OR lower(word2) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if filter.UnreadOnly {
		clauses = append(clauses, "is_read = 0")
	}

	query := "SELECT " + historyColumns + " FROM comparison_history"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []*History
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SetHistoryRead updates the read flag on one entry.
func (s *Store) SetHistoryRead(ctx context.Context, id string, read bool) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE comparison_history SET is_read = ? WHERE id = ?", boolToInt(read), id,
	)
	if err != nil {
		return fmt.Errorf("mark history read: %w", err)
	}
	return requireAffected(res, "history", id)
}

// DeleteHistory removes one entry and reports whether it existed.
func (s *Store) DeleteHistory(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM comparison_history WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete history: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ClearHistory removes every history entry.
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM comparison_history")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

// ImportHistory upserts entries by id and returns the number written.
// Entries without an id get a fresh one; a zero date becomes now.
func (s *Store) ImportHistory(ctx context.Context, entries []History) (int, error) {
	written := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		written = 0
		for i := range entries {
			entry := entries[i]
			if strings.TrimSpace(entry.Word1) == "" || strings.TrimSpace(entry.Word2) == "" {
				return fmt.Errorf("entry %d: word1 and word2 are required", i)
			}
			if entry.ID == "" {
				entry.ID = newID()
			}
			if entry.Date.IsZero() {
				entry.Date = s.timestamp()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO comparison_history (id, word1, word2, sentence, response, date, is_read)
                 VALUES (?, ?, ?, ?, ?, ?, ?)
                 ON CONFLICT(id) DO UPDATE SET
                    word1 = excluded.word1,
                    word2 = excluded.word2,
                    sentence = excluded.sentence,
                    response = excluded.response,
                    date = excluded.date,
                    is_read = excluded.is_read`,
				entry.ID, entry.Word1, entry.Word2, entry.Sentence, entry.Response,
				formatTime(entry.Date), boolToInt(entry.IsRead),
			); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("import history: %w", err)
	}
	return written, nil
}

func scanHistory(scanner rowScanner) (*History, error) {
	var (
		entry  History
		date   string
		isRead int
	)
	if err := scanner.Scan(
		&entry.ID, &entry.Word1, &entry.Word2, &entry.Sentence, &entry.Response, &date, &isRead,
	); err != nil {
		return nil, err
	}
	parsed, err := parseTimeString(date)
	if err != nil {
		return nil, fmt.Errorf("parse history date %q: %w", date, err)
	}
	entry.Date = parsed.In(time.UTC)
	entry.IsRead = isRead != 0
	return &entry, nil
}

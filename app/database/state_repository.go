package database

import (
	"database/sql"
	"fmt"
)

// runHistoryLimit bounds the run-history log to the most recent N runs.
const runHistoryLimit = 50

var _ StateRepository = (*SQLStateRepository)(nil)

// SQLStateRepository owns the run-state singleton, the run-history log and
// the degradation cache.
type SQLStateRepository struct {
	db *DB
}

func NewStateRepository(db *DB) *SQLStateRepository {
	return &SQLStateRepository{db: db}
}

func (r *SQLStateRepository) GetRunState() (*RunState, error) {
	var state RunState
	err := r.db.QueryRow(`
		SELECT last_check_at, last_error_at, consecutive_errors, current_interval_minutes
		FROM run_state WHERE id = 1
	`).Scan(&state.LastCheckAt, &state.LastErrorAt, &state.ConsecutiveErrors, &state.CurrentIntervalMinutes)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run state: %w", err)
	}

	return &state, nil
}

func (r *SQLStateRepository) SaveRunState(state RunState) error {
	_, err := r.db.Exec(`
		INSERT INTO run_state (id, last_check_at, last_error_at, consecutive_errors, current_interval_minutes)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_check_at = excluded.last_check_at,
			last_error_at = excluded.last_error_at,
			consecutive_errors = excluded.consecutive_errors,
			current_interval_minutes = excluded.current_interval_minutes
	`, state.LastCheckAt, state.LastErrorAt, state.ConsecutiveErrors, state.CurrentIntervalMinutes)
	if err != nil {
		return fmt.Errorf("failed to save run state: %w", err)
	}
	return nil
}

func (r *SQLStateRepository) AppendRunSummary(summary RunSummary) error {
	_, err := r.db.Exec(`
		INSERT INTO run_history (run_at, trigger_source, new_count, updated_count, total_count, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, summary.RunAt, summary.Trigger, summary.NewCount, summary.UpdatedCount, summary.TotalCount, summary.Error)
	if err != nil {
		return fmt.Errorf("failed to append run summary: %w", err)
	}

	// Keep only the most recent entries.
	_, err = r.db.Exec(`
		DELETE FROM run_history
		WHERE id NOT IN (SELECT id FROM run_history ORDER BY id DESC LIMIT ?)
	`, runHistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to trim run history: %w", err)
	}

	return nil
}

func (r *SQLStateRepository) GetRunHistory(limit int) ([]RunSummary, error) {
	if limit <= 0 || limit > runHistoryLimit {
		limit = runHistoryLimit
	}

	rows, err := r.db.Query(`
		SELECT id, run_at, trigger_source, new_count, updated_count, total_count, error
		FROM run_history ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.RunAt, &s.Trigger, &s.NewCount, &s.UpdatedCount, &s.TotalCount, &s.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run history: %w", err)
	}

	return summaries, nil
}

func (r *SQLStateRepository) GetCachedDocument() (*CachedDocument, error) {
	var doc CachedDocument
	err := r.db.QueryRow(`
		SELECT body, entry_count, fetched_at FROM fetch_cache WHERE id = 1
	`).Scan(&doc.Body, &doc.EntryCount, &doc.FetchedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached document: %w", err)
	}

	return &doc, nil
}

func (r *SQLStateRepository) SaveCachedDocument(doc CachedDocument) error {
	_, err := r.db.Exec(`
		INSERT INTO fetch_cache (id, body, entry_count, fetched_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			body = excluded.body,
			entry_count = excluded.entry_count,
			fetched_at = excluded.fetched_at
	`, doc.Body, doc.EntryCount, doc.FetchedAt)
	if err != nil {
		return fmt.Errorf("failed to save cached document: %w", err)
	}
	return nil
}

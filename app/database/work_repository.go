package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ WorkRepository = (*SQLWorkRepository)(nil)

// SQLWorkRepository handles database operations for catalog entries.
type SQLWorkRepository struct {
	db *DB
}

func NewWorkRepository(db *DB) *SQLWorkRepository {
	return &SQLWorkRepository{db: db}
}

const workColumns = `id, business_key, title, author, last_update_label, update_timestamp,
       source_url, rating_total, review, is_played, last_played_at,
       version_status, data_protected, last_seen_at, created_at, updated_at`

// UpsertFromScrape inserts a new catalog entry or merges the candidate
// onto the existing one keyed by business key. Duplicate inserts merge,
// never duplicate: a concurrent run that already inserted the same key
// turns this call into an update.
func (r *SQLWorkRepository) UpsertFromScrape(candidate Work) (string, error) {
	if candidate.BusinessKey == "" {
		return "", fmt.Errorf("candidate has no business key")
	}

	existing, err := r.GetByBusinessKey(candidate.BusinessKey)
	if err != nil {
		return "", fmt.Errorf("failed to check existing work: %w", err)
	}

	now := time.Now().UTC()

	if existing == nil {
		id := uuid.NewString()
		status := candidate.VersionStatus
		if status == "" {
			status = StatusNew
		}
		_, err = r.db.Exec(`
			INSERT INTO works (id, business_key, title, author, last_update_label, update_timestamp,
			                   source_url, version_status, data_protected, last_seen_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
			ON CONFLICT (business_key) DO UPDATE SET
				title = excluded.title,
				author = excluded.author,
				last_update_label = excluded.last_update_label,
				update_timestamp = excluded.update_timestamp,
				source_url = excluded.source_url,
				last_seen_at = excluded.last_seen_at,
				data_protected = 1,
				updated_at = excluded.updated_at
		`, id, candidate.BusinessKey, candidate.Title, candidate.Author, candidate.LastUpdateLabel,
			candidate.UpdateTimestamp, candidate.SourceURL, status, now, now, now)
		if err != nil {
			return "", fmt.Errorf("failed to insert work: %w", err)
		}

		// The conflict branch means another run won the insert race; the
		// surviving surrogate id is theirs.
		inserted, err := r.GetByBusinessKey(candidate.BusinessKey)
		if err != nil {
			return "", fmt.Errorf("failed to read back inserted work: %w", err)
		}
		return inserted.ID, nil
	}

	merged := mergeFromScrape(*existing, candidate, now)
	_, err = r.db.Exec(`
		UPDATE works
		SET title = ?, author = ?, last_update_label = ?, update_timestamp = ?,
		    source_url = ?, version_status = ?, data_protected = ?, last_seen_at = ?, updated_at = ?
		WHERE business_key = ?
	`, merged.Title, merged.Author, merged.LastUpdateLabel, merged.UpdateTimestamp,
		merged.SourceURL, merged.VersionStatus, merged.DataProtected, merged.LastSeenAt, merged.UpdatedAt,
		candidate.BusinessKey)
	if err != nil {
		return "", fmt.Errorf("failed to merge work: %w", err)
	}

	return existing.ID, nil
}

// UpdateUserFields is the explicit user-edit path: it writes exactly the
// user-owned fields and nothing else.
func (r *SQLWorkRepository) UpdateUserFields(businessKey string, ratingTotal int, review string, isPlayed bool) error {
	res, err := r.db.Exec(`
		UPDATE works
		SET rating_total = ?, review = ?, is_played = ?,
		    last_played_at = CASE WHEN ? AND last_played_at IS NULL THEN ? ELSE last_played_at END,
		    updated_at = ?
		WHERE business_key = ?
	`, ratingTotal, review, isPlayed, isPlayed, time.Now().UTC(), time.Now().UTC(), businessKey)
	if err != nil {
		return fmt.Errorf("failed to update user fields: %w", err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("work not found: %s", businessKey)
	}

	return nil
}

func (r *SQLWorkRepository) SetVersionStatus(businessKey string, status string) error {
	_, err := r.db.Exec(`
		UPDATE works SET version_status = ?, updated_at = ? WHERE business_key = ?
	`, status, time.Now().UTC(), businessKey)
	if err != nil {
		return fmt.Errorf("failed to set version status: %w", err)
	}
	return nil
}

func (r *SQLWorkRepository) GetByBusinessKey(businessKey string) (*Work, error) {
	row := r.db.QueryRow(`SELECT `+workColumns+` FROM works WHERE business_key = ?`, businessKey)

	work, err := scanWork(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work by business key: %w", err)
	}

	return work, nil
}

func (r *SQLWorkRepository) GetAll() ([]Work, error) {
	rows, err := r.db.Query(`SELECT ` + workColumns + ` FROM works ORDER BY CAST(business_key AS INTEGER), business_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to get works: %w", err)
	}
	defer rows.Close()

	var works []Work
	for rows.Next() {
		work, err := scanWork(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work row: %w", err)
		}
		works = append(works, *work)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating work rows: %w", err)
	}

	return works, nil
}

func (r *SQLWorkRepository) GetCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM works").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get work count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWork(row rowScanner) (*Work, error) {
	var work Work
	err := row.Scan(
		&work.ID, &work.BusinessKey, &work.Title, &work.Author, &work.LastUpdateLabel,
		&work.UpdateTimestamp, &work.SourceURL, &work.RatingTotal, &work.Review,
		&work.IsPlayed, &work.LastPlayedAt, &work.VersionStatus, &work.DataProtected,
		&work.LastSeenAt, &work.CreatedAt, &work.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &work, nil
}

package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

var _ MarkerRepository = (*SQLMarkerRepository)(nil)

// SQLMarkerRepository handles database operations for change markers.
type SQLMarkerRepository struct {
	db *DB
}

func NewMarkerRepository(db *DB) *SQLMarkerRepository {
	return &SQLMarkerRepository{db: db}
}

func (r *SQLMarkerRepository) Upsert(marker ChangeMarker) error {
	_, err := r.db.Exec(`
		INSERT INTO change_markers (business_key, marker_type, change_types, marked_at, confirmed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (business_key) DO UPDATE SET
			marker_type = excluded.marker_type,
			change_types = excluded.change_types,
			marked_at = excluded.marked_at,
			confirmed = 0
	`, marker.BusinessKey, marker.Type, strings.Join(marker.ChangeTypes, ","), marker.MarkedAt, marker.Confirmed)
	if err != nil {
		return fmt.Errorf("failed to upsert marker: %w", err)
	}
	return nil
}

func (r *SQLMarkerRepository) Get(businessKey string) (*ChangeMarker, error) {
	var marker ChangeMarker
	var changeTypes string
	err := r.db.QueryRow(`
		SELECT business_key, marker_type, change_types, marked_at, confirmed
		FROM change_markers WHERE business_key = ?
	`, businessKey).Scan(&marker.BusinessKey, &marker.Type, &changeTypes, &marker.MarkedAt, &marker.Confirmed)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get marker: %w", err)
	}

	marker.ChangeTypes = splitChangeTypes(changeTypes)
	return &marker, nil
}

func (r *SQLMarkerRepository) GetAll() ([]ChangeMarker, error) {
	rows, err := r.db.Query(`
		SELECT business_key, marker_type, change_types, marked_at, confirmed
		FROM change_markers ORDER BY marked_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get markers: %w", err)
	}
	defer rows.Close()

	var markers []ChangeMarker
	for rows.Next() {
		var marker ChangeMarker
		var changeTypes string
		if err := rows.Scan(&marker.BusinessKey, &marker.Type, &changeTypes, &marker.MarkedAt, &marker.Confirmed); err != nil {
			return nil, fmt.Errorf("failed to scan marker row: %w", err)
		}
		marker.ChangeTypes = splitChangeTypes(changeTypes)
		markers = append(markers, marker)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating marker rows: %w", err)
	}

	return markers, nil
}

func (r *SQLMarkerRepository) Confirm(businessKey string) error {
	res, err := r.db.Exec(`UPDATE change_markers SET confirmed = 1 WHERE business_key = ?`, businessKey)
	if err != nil {
		return fmt.Errorf("failed to confirm marker: %w", err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("marker not found: %s", businessKey)
	}

	return nil
}

func (r *SQLMarkerRepository) Delete(businessKey string) error {
	_, err := r.db.Exec(`DELETE FROM change_markers WHERE business_key = ?`, businessKey)
	if err != nil {
		return fmt.Errorf("failed to delete marker: %w", err)
	}
	return nil
}

// DeleteOlderThan garbage-collects markers past the retention window.
func (r *SQLMarkerRepository) DeleteOlderThan(cutoff time.Time) (int, error) {
	res, err := r.db.Exec(`DELETE FROM change_markers WHERE marked_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired markers: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

func splitChangeTypes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

package database

import (
	"database/sql"
	"fmt"
)

var _ OutputRepository = (*SQLOutputRepository)(nil)

type SQLOutputRepository struct {
	db *DB
}

func NewOutputRepository(db *DB) *SQLOutputRepository {
	return &SQLOutputRepository{db: db}
}

func (r *SQLOutputRepository) UpsertOutput(sliceID string, rss string, itemCount int) error {
	_, err := r.db.Exec(`
		INSERT INTO slice_outputs (slice_id, rss, item_count, generated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (slice_id) DO UPDATE SET
			rss = excluded.rss,
			item_count = excluded.item_count,
			generated_at = CURRENT_TIMESTAMP
	`, sliceID, rss, itemCount)
	if err != nil {
		return fmt.Errorf("failed to upsert slice output: %w", err)
	}

	return nil
}

func (r *SQLOutputRepository) GetOutput(sliceID string) (*SliceOutput, error) {
	row := r.db.QueryRow(`
		SELECT slice_id, rss, item_count, generated_at
		FROM slice_outputs
		WHERE slice_id = ?
	`, sliceID)

	var output SliceOutput
	err := row.Scan(&output.SliceID, &output.RSS, &output.ItemCount, &output.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slice output: %w", err)
	}

	return &output, nil
}

func (r *SQLOutputRepository) GetOutputCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM slice_outputs`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count slice outputs: %w", err)
	}
	return count, nil
}

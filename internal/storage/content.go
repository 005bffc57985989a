package storage

import (
	"context"
	"fmt"
	"time"
)

// ContentRow is an audit record of a delivered frame. The daemon only writes
// these; they exist for operator inspection.
type ContentRow struct {
	ID         int64
	Generator  string
	Provider   string
	Model      string
	UpdateType string
	OutputMode string
	Text       string
	CreatedAt  time.Time
}

// InsertContent appends a content audit row.
func (s *Storage) InsertContent(ctx context.Context, c ContentRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content (generator, provider, model, update_type, output_mode, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Generator, c.Provider, c.Model, c.UpdateType, c.OutputMode, c.Text, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert content row; %w", err)
	}
	return nil
}

// RecentContent returns the most recent audit rows, newest first.
func (s *Storage) RecentContent(ctx context.Context, limit int) ([]ContentRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, generator, provider, model, update_type, output_mode, text, created_at
		FROM content ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query content rows; %w", err)
	}
	defer rows.Close()

	var out []ContentRow
	for rows.Next() {
		var c ContentRow
		if err := rows.Scan(&c.ID, &c.Generator, &c.Provider, &c.Model,
			&c.UpdateType, &c.OutputMode, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan content row; %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

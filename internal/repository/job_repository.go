package repository

import (
	"context"
	"fmt"
	"time"

	"transhub/internal/snowflake"
)

type jobRepository struct {
	db dbtx
}

func newJobRepository(db dbtx) *jobRepository {
	return &jobRepository{db: db}
}

// touch implements §4.2's touch_job: create the job row on first
// request for a content id, or bump last_requested_at on every
// subsequent one. Drives GC eligibility.
func (r *jobRepository) touch(ctx context.Context, contentID string) error {
	now := formatTime(time.Now())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO th_jobs(id, content_id, last_requested_at) VALUES(?, ?, ?)
		 ON CONFLICT(content_id) DO UPDATE SET last_requested_at = excluded.last_requested_at`,
		snowflake.NextStringID(), contentID, now)
	if err != nil {
		return fmt.Errorf("touch job: %w", err)
	}
	return nil
}

func (r *jobRepository) staleContentIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT content_id FROM th_jobs WHERE DATE(last_requested_at) < DATE(?)`, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *jobRepository) deleteByContentID(ctx context.Context, contentIDs []string) (int64, error) {
	return deleteByIDColumn(ctx, r.db, "th_jobs", "content_id", contentIDs)
}

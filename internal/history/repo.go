package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storybind/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Insert records one completed download.
func (r *Repo) Insert(ctx context.Context, rec models.DownloadRecord) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO downloads (id, story_id, title, format, images, bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, rec.ID, rec.StoryID, rec.Title, rec.Format, rec.Images, rec.Bytes)
	if err != nil {
		return fmt.Errorf("insert download record: %w", err)
	}
	return nil
}

func (r *Repo) List(ctx context.Context, limit, offset int) ([]models.DownloadRecord, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM downloads
	`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count downloads: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, story_id, title, format, images, bytes, created_at
		FROM downloads
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	out := make([]models.DownloadRecord, 0, limit)
	for rows.Next() {
		var rec models.DownloadRecord
		var created time.Time

		if err := rows.Scan(&rec.ID, &rec.StoryID, &rec.Title, &rec.Format, &rec.Images, &rec.Bytes, &created); err != nil {
			return nil, 0, fmt.Errorf("scan download row: %w", err)
		}
		rec.CreatedAt = created
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows err: %w", err)
	}

	return out, total, nil
}

// CountByFormat returns how many downloads completed per output format.
func (r *Repo) CountByFormat(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT format, COUNT(*) FROM downloads GROUP BY format
	`)
	if err != nil {
		return nil, fmt.Errorf("count by format: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var format string
		var n int
		if err := rows.Scan(&format, &n); err != nil {
			return nil, fmt.Errorf("scan format count: %w", err)
		}
		out[format] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

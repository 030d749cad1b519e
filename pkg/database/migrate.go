package database

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
	id         TEXT PRIMARY KEY,
	story_id   INTEGER NOT NULL,
	title      TEXT NOT NULL,
	format     TEXT NOT NULL,
	images     INTEGER NOT NULL DEFAULT 0,
	bytes      INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_downloads_story ON downloads(story_id);
CREATE INDEX IF NOT EXISTS idx_downloads_created ON downloads(created_at);
`

func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        run_trigger TEXT NOT NULL,
        operator TEXT,
        prefix TEXT,
        status TEXT NOT NULL,
        data_start_unix_ms INTEGER NOT NULL,
        data_end_unix_ms INTEGER NOT NULL,
        row_count INTEGER NOT NULL,
        calibrated INTEGER NOT NULL,
        error TEXT,
        started_at_unix_ms INTEGER NOT NULL,
        finished_at_unix_ms INTEGER
    )`,
	`CREATE TABLE IF NOT EXISTS check_reports (
        id TEXT PRIMARY KEY,
        run_id TEXT NOT NULL,
        seq INTEGER NOT NULL,
        check_name TEXT NOT NULL,
        channel TEXT NOT NULL,
        selection TEXT,
        evaluated INTEGER NOT NULL,
        flagged INTEGER NOT NULL,
        detail TEXT,
        created_at_unix_ms INTEGER NOT NULL,
        FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
    )`,
	`CREATE TABLE IF NOT EXISTS records (
        run_id TEXT NOT NULL,
        seq INTEGER NOT NULL,
        timestamp_unix_ms INTEGER NOT NULL,
        payload TEXT NOT NULL,
        PRIMARY KEY (run_id, seq),
        FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
    )`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at_unix_ms DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_check_reports_run ON check_reports(run_id, seq)`,
}

// InitDB 建表并创建索引 (幂等)
func (r *SQLiteRunRepository) InitDB(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

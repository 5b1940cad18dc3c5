package index

import (
	"context"
)

func (d *DB) RecordRun(ctx context.Context, run Run) (int64, error) {
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO runs (
			target_name, started_at, finished_at, commit_sha, dry_run, skipped, updated, created, deleted, failed, dirs_removed, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.TargetName, run.StartedAt, run.FinishedAt, run.CommitSHA, boolToInt(run.DryRun), run.Skipped, run.Updated, run.Created, run.Deleted, run.Failed, run.DirsRemoved, run.Error)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListRuns returns the most recent runs of a target, newest first.
func (d *DB) ListRuns(ctx context.Context, targetName string, limit int) (runs []Run, err error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, target_name, started_at, finished_at, commit_sha, dry_run, skipped, updated, created, deleted, failed, dirs_removed, error
		FROM runs WHERE target_name = ? ORDER BY started_at DESC, id DESC LIMIT ?
	`, targetName, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		var r Run
		var dryRun int
		if err := rows.Scan(&r.ID, &r.TargetName, &r.StartedAt, &r.FinishedAt, &r.CommitSHA, &dryRun, &r.Skipped, &r.Updated, &r.Created, &r.Deleted, &r.Failed, &r.DirsRemoved, &r.Error); err != nil {
			return nil, err
		}
		r.DryRun = dryRun != 0
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const targetColumns = `name, repository, branch, local_dir, sub_dir, source, exclude_patterns, last_commit_sha, last_sync_time, created_at`

func (d *DB) UpsertTarget(ctx context.Context, t Target) error {
	patterns, err := json.Marshal(t.ExcludePatterns)
	if err != nil {
		return err
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO targets (`+targetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			repository=excluded.repository,
			branch=excluded.branch,
			local_dir=excluded.local_dir,
			sub_dir=excluded.sub_dir,
			source=excluded.source,
			exclude_patterns=excluded.exclude_patterns,
			last_commit_sha=excluded.last_commit_sha,
			last_sync_time=excluded.last_sync_time
	`, t.Name, t.Repository, t.Branch, t.LocalDir, t.SubDir, t.Source, string(patterns), t.LastCommitSHA, t.LastSyncTime, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save target %q: %w", t.Name, err)
	}
	return nil
}

func (d *DB) GetTarget(ctx context.Context, name string) (*Target, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+targetColumns+` FROM targets WHERE name = ?`, name)
	t, err := scanTarget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	return &t, nil
}

func (d *DB) ListTargets(ctx context.Context) (targets []Target, err error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

func (d *DB) DeleteTarget(ctx context.Context, name string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM targets WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	_, err = d.db.ExecContext(ctx, `DELETE FROM runs WHERE target_name = ?`, name)
	return err
}

func (d *DB) TargetExists(ctx context.Context, name string) (bool, error) {
	row := d.db.QueryRowContext(ctx, `SELECT 1 FROM targets WHERE name = ? LIMIT 1`, name)
	var v int
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkSynced stores the commit a target was last mirrored at.
func (d *DB) MarkSynced(ctx context.Context, name, commitSHA string, at time.Time) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE targets SET last_commit_sha = ?, last_sync_time = ? WHERE name = ?
	`, commitSHA, at.Unix(), name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func scanTarget(row rowScanner) (Target, error) {
	var t Target
	var patterns sql.NullString
	if err := row.Scan(&t.Name, &t.Repository, &t.Branch, &t.LocalDir, &t.SubDir, &t.Source, &patterns, &t.LastCommitSHA, &t.LastSyncTime, &t.CreatedAt); err != nil {
		return Target{}, err
	}
	if patterns.Valid && patterns.String != "" {
		_ = json.Unmarshal([]byte(patterns.String), &t.ExcludePatterns)
	}
	return t, nil
}

package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleTarget(name string) Target {
	return Target{
		Name:            name,
		Repository:      "octo/widgets",
		Branch:          "main",
		LocalDir:        "/srv/mirror/" + name,
		Source:          "zipball",
		ExcludePatterns: []string{"*.log", "build/"},
	}
}

func TestTargets_CRUD(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.UpsertTarget(ctx, sampleTarget("docs")))
	require.NoError(t, db.UpsertTarget(ctx, sampleTarget("api")))

	got, err := db.GetTarget(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "octo/widgets", got.Repository)
	assert.Equal(t, []string{"*.log", "build/"}, got.ExcludePatterns)
	assert.NotZero(t, got.CreatedAt)

	list, err := db.ListTargets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "api", list[0].Name)

	updated := sampleTarget("docs")
	updated.Branch = "release"
	require.NoError(t, db.UpsertTarget(ctx, updated))
	got, err = db.GetTarget(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "release", got.Branch)

	exists, err := db.TargetExists(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, db.DeleteTarget(ctx, "docs"))
	exists, err = db.TargetExists(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTargets_NotFound(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.GetTarget(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = db.DeleteTarget(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = db.MarkSynced(ctx, "missing", "abc", time.Now())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTargets_LocalDirIsUnique(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	first := sampleTarget("one")
	second := sampleTarget("two")
	second.LocalDir = first.LocalDir

	require.NoError(t, db.UpsertTarget(ctx, first))
	assert.Error(t, db.UpsertTarget(ctx, second))
}

func TestMarkSyncedAndRuns(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, db.UpsertTarget(ctx, sampleTarget("docs")))

	at := time.Unix(1700000000, 0)
	require.NoError(t, db.MarkSynced(ctx, "docs", "deadbeef", at))

	got, err := db.GetTarget(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", got.LastCommitSHA)
	assert.Equal(t, at.Unix(), got.LastSyncTime)

	_, err = db.RecordRun(ctx, Run{TargetName: "docs", StartedAt: 100, FinishedAt: 101, CommitSHA: "aaa", Created: 3})
	require.NoError(t, err)
	_, err = db.RecordRun(ctx, Run{TargetName: "docs", StartedAt: 200, FinishedAt: 203, CommitSHA: "bbb", Failed: 1, DryRun: true, Error: "one or more actions failed"})
	require.NoError(t, err)

	runs, err := db.ListRuns(ctx, "docs", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "bbb", runs[0].CommitSHA)
	assert.True(t, runs[0].DryRun)
	assert.Equal(t, 1, runs[0].Failed)
	assert.Equal(t, 3, runs[1].Created)

	require.NoError(t, db.DeleteTarget(ctx, "docs"))
	runs, err = db.ListRuns(ctx, "docs", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

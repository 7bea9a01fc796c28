package repositories_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
	"github.com/ps-vitor/offplan-sys/backend/internal/repositories"
)

func newFileRepo(t *testing.T) (*repositories.FileProjectRepository, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "out")
	repo, err := repositories.NewFileProjectRepository(dir)
	require.NoError(t, err)
	return repo, dir
}

func TestFileRepository_ListCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newFileRepo(t)

	projects, err := repo.LoadList(ctx)
	require.NoError(t, err)
	require.Nil(t, projects)

	require.NoError(t, repo.SaveList(ctx, []domain.Record{
		{"id": 3, "slug": "three"},
		{"id": 2},
	}))

	projects, err = repo.LoadList(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	id, ok := projects[0].ID()
	require.True(t, ok)
	assert.Equal(t, int64(3), id)
}

func TestFileRepository_MalformedCache(t *testing.T) {
	ctx := context.Background()
	repo, dir := newFileRepo(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, repositories.ListCacheFile), []byte("[{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, repositories.StateFile), []byte("nope"), 0o644))

	_, err := repo.LoadList(ctx)
	require.ErrorIs(t, err, domain.ErrMalformedCache)

	_, err = repo.LoadState(ctx)
	require.ErrorIs(t, err, domain.ErrMalformedCache)
}

func TestFileRepository_State(t *testing.T) {
	ctx := context.Background()
	repo, dir := newFileRepo(t)

	state, err := repo.LoadState(ctx)
	require.NoError(t, err)
	require.Nil(t, state)

	created := "2025-01-02"
	require.NoError(t, repo.SaveState(ctx, domain.IncrementalState{
		LastFetchTimestamp: "2025-01-03T10:00:00+0000",
		HighestProjectID:   42,
		NewestCreatedAt:    &created,
		TotalProjects:      7,
	}))

	raw, err := os.ReadFile(filepath.Join(dir, repositories.StateFile))
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, float64(42), fields["highest_project_id"])
	assert.Equal(t, "2025-01-02", fields["newest_created_at"])

	state, err = repo.LoadState(ctx)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 7, state.TotalProjects)
}

func TestFileRepository_FkIndexKeys(t *testing.T) {
	ctx := context.Background()
	repo, dir := newFileRepo(t)

	require.NoError(t, repo.SaveFkIndex(ctx, domain.FkIndex{7: {"name": "a"}}))

	raw, err := os.ReadFile(filepath.Join(dir, repositories.FkIndexFile))
	require.NoError(t, err)
	var index map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &index))
	assert.Equal(t, "a", index["7"]["name"])
}

func TestFileRepository_MergedSnapshotFallsBackToBackup(t *testing.T) {
	ctx := context.Background()
	repo, dir := newFileRepo(t)

	_, err := repo.List(ctx)
	require.ErrorIs(t, err, repositories.ErrSnapshotUnavailable)

	require.NoError(t, repo.SaveMerged(ctx, []domain.Record{{"id": 1}}))
	require.NoError(t, repo.SaveMerged(ctx, []domain.Record{{"id": 1}, {"id": 2}}))

	snap, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, repositories.MergedFile, snap.Source)
	assert.Len(t, snap.Projects, 2)

	// A corrupted snapshot is served from the previous one.
	require.NoError(t, os.WriteFile(filepath.Join(dir, repositories.MergedFile), []byte("{broken"), 0o644))
	snap, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, repositories.MergedFile+".bak", snap.Source)
	assert.Len(t, snap.Projects, 1)

	p, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, p)
	_, err = repo.Get(ctx, 99)
	require.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestAppendLog_ResumeSkipsTruncatedLines(t *testing.T) {
	ctx := context.Background()
	repo, dir := newFileRepo(t)

	log, err := repo.OpenDetailsLog()
	require.NoError(t, err)
	require.NoError(t, log.Append(domain.Record{"fk_project_id": 1, "slug": "one"}))
	require.NoError(t, log.Append(domain.Record{"id": 2}))
	require.NoError(t, log.Close())

	f, err := os.OpenFile(filepath.Join(dir, repositories.DetailsLogFile), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("\n[1,2]\n{\"id\": 3, \"tru")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	details, err := repo.LoadDetails(ctx)
	require.NoError(t, err)
	require.Len(t, details, 2)

	seen := domain.NewSeenSet(details)
	assert.True(t, seen.Has(domain.ProjectRef{ID: 1, HasID: true}))
	assert.True(t, seen.Has(domain.ProjectRef{Slug: "one"}))
	assert.True(t, seen.Has(domain.ProjectRef{ID: 2, HasID: true}))
	assert.False(t, seen.Has(domain.ProjectRef{ID: 3, HasID: true}))
}

func TestEnvStore_SaveTokenKeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("REMAPP_USERNAME=agent\nREMAPP_BEARER_TOKEN=old\n"), 0o600))

	store := repositories.NewEnvStore(path)
	require.NoError(t, store.SaveToken("new-token"))

	token, ok, err := store.Get(repositories.TokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new-token", token)

	user, ok, err := store.Get("REMAPP_USERNAME")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "agent", user)
}

func TestEnvStore_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	store := repositories.NewEnvStore(path)

	_, ok, err := store.Get(repositories.TokenKey)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.SaveToken("abc"))
	token, ok, err := store.Get(repositories.TokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", token)
}

func TestSQLiteRepository_SaveAndList(t *testing.T) {
	ctx := context.Background()
	repo, err := repositories.NewSQLiteProjectRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	_, err = repo.List(ctx)
	require.ErrorIs(t, err, repositories.ErrSnapshotUnavailable)

	merged := []domain.Record{
		{"id": 9, "slug": "nine", "details": map[string]any{"fk_project_id": 9}},
		{"slug": "no-id"},
		{"id": 4, "created_at": "2024-05-01"},
	}
	require.NoError(t, repo.Save(ctx, merged))

	snap, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", snap.Source)
	assert.WithinDuration(t, time.Now(), snap.LastUpdated, time.Minute)
	require.Len(t, snap.Projects, 3)
	assert.Equal(t, "nine", snap.Projects[0]["slug"])
	assert.Equal(t, "no-id", snap.Projects[1]["slug"])

	p, err := repo.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", p["created_at"])

	// Save replaces rather than appends.
	require.NoError(t, repo.Save(ctx, merged[:1]))
	snap, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Projects, 1)
	_, err = repo.Get(ctx, 4)
	require.ErrorIs(t, err, repositories.ErrNotFound)
}

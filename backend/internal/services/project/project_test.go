package project

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
	"github.com/ps-vitor/offplan-sys/backend/internal/repositories"
)

type stubStore struct {
	snap repositories.Snapshot
	err  error
}

func (s stubStore) List(context.Context) (repositories.Snapshot, error) {
	return s.snap, s.err
}

func (s stubStore) Get(_ context.Context, id int64) (domain.Record, error) {
	for _, p := range s.snap.Projects {
		if pid, ok := p.ID(); ok && pid == id {
			return p, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func TestFindAll_Staleness(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		updated   time.Time
		wantAge   float64
		wantStale bool
	}{
		{"fresh", now.Add(-90 * time.Minute), 1.5, false},
		{"at ttl", now.Add(-24 * time.Hour), 24, false},
		{"stale", now.Add(-30*time.Hour - 4*time.Minute), 30.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewProjectService(stubStore{snap: repositories.Snapshot{
				Source:      repositories.MergedFile,
				LastUpdated: tt.updated,
				Projects:    []domain.Record{{"id": 1}},
			}}, 0)
			svc.now = func() time.Time { return now }

			listing, err := svc.FindAll(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantAge, listing.AgeHours)
			assert.Equal(t, tt.wantStale, listing.IsStale)
			assert.Equal(t, repositories.MergedFile, listing.Source)
			assert.Len(t, listing.Projects, 1)
		})
	}
}

func TestFindAll_Unavailable(t *testing.T) {
	svc := NewProjectService(stubStore{err: repositories.ErrSnapshotUnavailable}, time.Hour)
	_, err := svc.FindAll(context.Background())
	assert.True(t, errors.Is(err, repositories.ErrSnapshotUnavailable))
}

func TestFindByID(t *testing.T) {
	svc := NewProjectService(stubStore{snap: repositories.Snapshot{
		Projects: []domain.Record{{"id": 7, "slug": "seven"}},
	}}, time.Hour)

	p, err := svc.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "seven", p["slug"])

	_, err = svc.FindByID(context.Background(), 8)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

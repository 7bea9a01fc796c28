// Package project serves the merged project snapshot to readers.
package project

import (
	"context"
	"math"
	"time"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
	"github.com/ps-vitor/offplan-sys/backend/internal/repositories"
)

// DefaultCacheTTL is the age after which a snapshot is reported stale.
const DefaultCacheTTL = 24 * time.Hour

// Store reads merged projects.
type Store interface {
	List(ctx context.Context) (repositories.Snapshot, error)
	Get(ctx context.Context, id int64) (domain.Record, error)
}

// Listing is a snapshot annotated with its age.
type Listing struct {
	Source      string
	LastUpdated time.Time
	AgeHours    float64
	IsStale     bool
	Projects    []domain.Record
}

type ProjectService struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewProjectService(store Store, ttl time.Duration) *ProjectService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ProjectService{store: store, ttl: ttl, now: time.Now}
}

// FindAll returns the current snapshot. Errors wrap
// repositories.ErrSnapshotUnavailable when nothing can be served.
func (s *ProjectService) FindAll(ctx context.Context) (Listing, error) {
	snap, err := s.store.List(ctx)
	if err != nil {
		return Listing{}, err
	}

	age := s.now().Sub(snap.LastUpdated)
	return Listing{
		Source:      snap.Source,
		LastUpdated: snap.LastUpdated,
		AgeHours:    math.Round(age.Hours()*10) / 10,
		IsStale:     age > s.ttl,
		Projects:    snap.Projects,
	}, nil
}

// FindByID returns one merged project or repositories.ErrNotFound.
func (s *ProjectService) FindByID(ctx context.Context, id int64) (domain.Record, error) {
	return s.store.Get(ctx, id)
}

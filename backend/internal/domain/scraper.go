// backend/internal/domain/scraper.go

package domain

import "time"

// ProjectRef identifies a project for a detail request. At least one of the
// id or the slug must be set.
type ProjectRef struct {
	ID    int64
	HasID bool
	Slug  string
}

// Valid reports whether the ref carries any identifier.
func (r ProjectRef) Valid() bool {
	return r.HasID || r.Slug != ""
}

// Page is one page of the public project list.
type Page struct {
	Number   int
	Projects []Record
	// TotalPages is 0 when the API did not report pagination.
	TotalPages int
}

// IsLast reports whether the API says no page follows this one.
func (p Page) IsLast() bool {
	return p.TotalPages > 0 && p.Number >= p.TotalPages
}

// IncrementalState is the high-water mark written after each run.
type IncrementalState struct {
	LastFetchTimestamp string  `json:"last_fetch_timestamp"`
	HighestProjectID   int64   `json:"highest_project_id"`
	NewestCreatedAt    *string `json:"newest_created_at"`
	TotalProjects      int     `json:"total_projects"`
}

// StateTimeLayout is the layout of LastFetchTimestamp.
const StateTimeLayout = "2006-01-02T15:04:05-0700"

// NewIncrementalState summarises the given project list.
func NewIncrementalState(projects []Record, now time.Time) IncrementalState {
	state := IncrementalState{
		LastFetchTimestamp: now.Format(StateTimeLayout),
		TotalProjects:      len(projects),
	}
	for _, p := range projects {
		if id, ok := p.ID(); ok && id > state.HighestProjectID {
			state.HighestProjectID = id
		}
		if created, ok := p.CreatedAt(); ok {
			if state.NewestCreatedAt == nil || created > *state.NewestCreatedAt {
				c := created
				state.NewestCreatedAt = &c
			}
		}
	}
	return state
}

// SeenSet tracks which projects already have a logged detail.
type SeenSet struct {
	ids   map[int64]struct{}
	slugs map[string]struct{}
}

// NewSeenSet builds a set from logged detail records.
func NewSeenSet(details []Record) *SeenSet {
	s := &SeenSet{
		ids:   make(map[int64]struct{}),
		slugs: make(map[string]struct{}),
	}
	for _, d := range details {
		s.Add(d)
	}
	return s
}

// Add marks a detail record as seen by its effective id and slug.
func (s *SeenSet) Add(detail Record) {
	if id, ok := detail.EffectiveID(); ok {
		s.ids[id] = struct{}{}
	}
	if slug, ok := detail.Slug(); ok {
		s.slugs[slug] = struct{}{}
	}
}

// Has reports whether ref matches a seen id or slug.
func (s *SeenSet) Has(ref ProjectRef) bool {
	if ref.HasID {
		if _, ok := s.ids[ref.ID]; ok {
			return true
		}
	}
	if ref.Slug != "" {
		if _, ok := s.slugs[ref.Slug]; ok {
			return true
		}
	}
	return false
}

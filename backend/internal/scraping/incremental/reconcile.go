// Package incremental finds list entries that appeared since the last run.
package incremental

import (
	"context"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
)

// DefaultPageLimit is how many pages are scanned before giving up on
// incremental mode.
const DefaultPageLimit = 10

// PageSource fetches one list page.
type PageSource interface {
	FetchPage(ctx context.Context, page int) (domain.Page, error)
}

// Result is the outcome of a reconciliation.
type Result struct {
	// New holds the summaries found before the first known id, in fetch order.
	New []domain.Record
	// Projects is New followed by the existing list.
	Projects []domain.Record
	// FullFetchRequired means the caller must re-read the whole list.
	FullFetchRequired bool
	PagesScanned      int
}

// Reconcile scans the list newest-first and collects summaries until it
// meets one whose id is already in existing. The scan also ends on an empty
// page or the last reported page. When limit pages pass without a known id
// the result asks for a full fetch instead. Without existing projects or a
// previous state no request is made and a full fetch is required.
func Reconcile(ctx context.Context, src PageSource, existing []domain.Record, state *domain.IncrementalState, limit int) (Result, error) {
	if len(existing) == 0 || state == nil {
		return Result{FullFetchRequired: true}, nil
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	known := make(map[int64]struct{}, len(existing))
	for _, p := range existing {
		if id, ok := p.ID(); ok {
			known[id] = struct{}{}
		}
	}

	var res Result
	for page := 1; page <= limit; page++ {
		result, err := src.FetchPage(ctx, page)
		if err != nil {
			return Result{}, err
		}
		res.PagesScanned = page
		if len(result.Projects) == 0 {
			return res.withExisting(existing), nil
		}

		for _, p := range result.Projects {
			if id, ok := p.ID(); ok {
				if _, seen := known[id]; seen {
					return res.withExisting(existing), nil
				}
			}
			res.New = append(res.New, p)
		}

		if result.IsLast() {
			return res.withExisting(existing), nil
		}
	}

	return Result{FullFetchRequired: true, PagesScanned: res.PagesScanned}, nil
}

func (r Result) withExisting(existing []domain.Record) Result {
	r.Projects = make([]domain.Record, 0, len(r.New)+len(existing))
	r.Projects = append(r.Projects, r.New...)
	r.Projects = append(r.Projects, existing...)
	return r
}

// Package merge joins list summaries with their detail records.
package merge

import "github.com/ps-vitor/offplan-sys/backend/internal/domain"

// Merge attaches to each summary the detail matching its id, or failing that
// its slug, under the "details" key of a shallow copy. Details are indexed
// by fk_project_id when present, else by id; later details win on duplicate
// keys. The output has one record per summary in input order. The returned
// index holds every detail that had an fk_project_id plus every summary id
// that was matched.
func Merge(summaries, details []domain.Record) ([]domain.Record, domain.FkIndex) {
	byID := make(map[int64]domain.Record)
	bySlug := make(map[string]domain.Record)
	byFk := make(domain.FkIndex)

	for _, d := range details {
		if id, ok := d.EffectiveID(); ok {
			byID[id] = d
		}
		if slug, ok := d.Slug(); ok {
			bySlug[slug] = d
		}
		if fk, ok := d.FkProjectID(); ok {
			byFk[fk] = d
		}
	}

	merged := make([]domain.Record, 0, len(summaries))
	for _, s := range summaries {
		id, hasID := s.ID()

		var detail domain.Record
		if hasID {
			detail = byID[id]
		}
		if detail == nil {
			if slug, ok := s.Slug(); ok {
				detail = bySlug[slug]
			}
		}
		if detail == nil {
			merged = append(merged, s)
			continue
		}

		combined := s.Clone()
		combined[domain.FieldDetails] = detail
		merged = append(merged, combined)
		if hasID {
			byFk[id] = detail
		}
	}

	return merged, byFk
}

package dedup

import (
	"sort"

	"github.com/rs/zerolog"

	"comps_dedup/internal/domain"
)

// Restoration records marked properties handed back to a subject to keep it
// at the comparable floor.
type Restoration struct {
	SubjectID   int64   `json:"subject_id"`
	Total       int     `json:"total"`
	WouldRemain int     `json:"would_remain"`
	Restored    []int64 `json:"restored"`
}

// Protect discards members from set so that every subject keeps at least
// floor records where it has enough marked ones to give back. It never adds
// to set. The most complete marked records are restored first (lower ID
// on ties); subjects that still fall short are left for FloorReport.
func Protect(records []domain.PropertyRecord, set *RemovalSet, floor int, log *zerolog.Logger) []Restoration {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	var out []Restoration
	for _, sub := range subjects(records) {
		var marked []domain.PropertyRecord
		for _, r := range sub.records {
			if set.Has(r.PropertyID) {
				marked = append(marked, r)
			}
		}
		wouldRemain := len(sub.records) - len(marked)
		if wouldRemain >= floor || len(marked) == 0 {
			continue
		}

		sort.SliceStable(marked, func(i, j int) bool {
			ci, cj := marked[i].CompletenessScore(), marked[j].CompletenessScore()
			if ci != cj {
				return ci > cj
			}
			return marked[i].PropertyID < marked[j].PropertyID
		})
		needed := floor - wouldRemain
		if needed > len(marked) {
			needed = len(marked)
		}

		rs := Restoration{SubjectID: sub.id, Total: len(sub.records), WouldRemain: wouldRemain}
		for _, r := range marked[:needed] {
			set.Discard(r.PropertyID)
			rs.Restored = append(rs.Restored, r.PropertyID)
		}
		log.Info().
			Int64("subject_id", sub.id).
			Int("total", rs.Total).
			Int("would_remain", wouldRemain).
			Int("restored", len(rs.Restored)).
			Msg("subject protected")
		out = append(out, rs)
	}
	return out
}

// FloorReport lists subjects whose count after removing set is below floor,
// in first-appearance order.
func FloorReport(records []domain.PropertyRecord, set *RemovalSet, floor int) []domain.SubjectCount {
	var out []domain.SubjectCount
	for _, sub := range subjects(records) {
		final := 0
		for _, r := range sub.records {
			if !set.Has(r.PropertyID) {
				final++
			}
		}
		if final < floor {
			out = append(out, domain.SubjectCount{SubjectID: sub.id, Initial: len(sub.records), Final: final})
		}
	}
	return out
}

type subjectGroup struct {
	id      int64
	records []domain.PropertyRecord
}

func subjects(records []domain.PropertyRecord) []subjectGroup {
	index := map[int64]int{}
	var out []subjectGroup
	for _, r := range records {
		i, ok := index[r.SubjectID]
		if !ok {
			i = len(out)
			index[r.SubjectID] = i
			out = append(out, subjectGroup{id: r.SubjectID})
		}
		out[i].records = append(out[i].records, r)
	}
	return out
}

package dedup

import (
	"sort"

	"golang.org/x/sync/errgroup"

	"comps_dedup/internal/domain"
)

// DetectStats counts what the two passes looked at and marked.
type DetectStats struct {
	AddressGroups     int `json:"address_groups"`
	AddressPairs      int `json:"address_pairs"`
	AddressDuplicates int `json:"address_duplicates"`
	GeoPairs          int `json:"geo_pairs"`
	GeoDuplicates     int `json:"geo_duplicates"`
	GeoSkipped        int `json:"geo_skipped"`
}

type Detector struct {
	opts Options
}

func NewDetector(opts Options) *Detector {
	return &Detector{opts: opts.withDefaults()}
}

// groupResult is what one independent group contributes.
type groupResult struct {
	removals []domain.Removal
	pairs    int
	skipped  int
}

// judge compares records i and j (i before j) and names the one to drop.
type judge func(a, b domain.PropertyRecord) (loser int, dup bool, skipped bool)

// Detect builds the unprotected removal set. Records are visited in ascending
// PropertyID order whatever the input order, and "second-encountered" below
// refers to that order.
func (d *Detector) Detect(records []domain.PropertyRecord) (*RemovalSet, []domain.Removal, DetectStats) {
	sorted := canonicalOrder(records)
	set := NewRemovalSet()
	var removals []domain.Removal
	var st DetectStats
	log := d.opts.Logger

	// pass 1: structure type, then normalized address
	addrGroups := groupAddress(sorted)
	st.AddressGroups = len(addrGroups)
	for _, r := range d.sweep(sorted, addrGroups, nil, d.addressJudge, domain.PassAddress) {
		st.AddressPairs += r.pairs
		st.AddressDuplicates += len(r.removals)
		removals = d.collect(set, removals, r.removals)
	}
	log.Info().
		Int("groups", st.AddressGroups).
		Int("pairs", st.AddressPairs).
		Int("duplicates", st.AddressDuplicates).
		Msg("address pass done")

	// pass 2: within each subject, near-identical records a few meters apart
	for _, r := range d.sweep(sorted, groupSubject(sorted), set, d.geoJudge, domain.PassGeographic) {
		st.GeoPairs += r.pairs
		st.GeoSkipped += r.skipped
		st.GeoDuplicates += len(r.removals)
		removals = d.collect(set, removals, r.removals)
	}
	log.Info().
		Int("pairs", st.GeoPairs).
		Int("duplicates", st.GeoDuplicates).
		Int("skipped", st.GeoSkipped).
		Msg("geographic pass done")

	return set, removals, st
}

func (d *Detector) collect(set *RemovalSet, acc, rs []domain.Removal) []domain.Removal {
	for _, rm := range rs {
		set.Add(rm.PropertyID)
		d.opts.Logger.Debug().
			Int64("property_id", rm.PropertyID).
			Int64("kept_id", rm.KeptID).
			Int64("subject_id", rm.SubjectID).
			Str("pass", string(rm.Pass)).
			Msg("duplicate marked")
	}
	return append(acc, rs...)
}

// sweep runs every group through judge. Groups never share a record, so
// they can be evaluated concurrently; results come back in group order.
// Records already in prior are left out of every comparison.
func (d *Detector) sweep(recs []domain.PropertyRecord, groups [][]int, prior *RemovalSet, j judge, pass domain.Pass) []groupResult {
	out := make([]groupResult, len(groups))
	if d.opts.Workers <= 1 || len(groups) < 2 {
		for gi, g := range groups {
			out[gi] = sweepGroup(recs, g, prior, j, pass)
		}
		return out
	}

	var eg errgroup.Group
	eg.SetLimit(d.opts.Workers)
	for gi, g := range groups {
		gi, g := gi, g
		eg.Go(func() error {
			out[gi] = sweepGroup(recs, g, prior, j, pass)
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

func sweepGroup(recs []domain.PropertyRecord, g []int, prior *RemovalSet, j judge, pass domain.Pass) groupResult {
	var res groupResult
	marked := make(map[int]bool, len(g))
	excluded := func(idx int) bool {
		return marked[idx] || (prior != nil && prior.Has(recs[idx].PropertyID))
	}
	for x := 0; x < len(g); x++ {
		for y := x + 1; y < len(g); y++ {
			a, b := g[x], g[y]
			if excluded(a) || excluded(b) {
				continue
			}
			res.pairs++
			loser, dup, skipped := j(recs[a], recs[b])
			if skipped {
				res.skipped++
				continue
			}
			if !dup {
				continue
			}
			lose, keep := b, a
			if loser == 0 {
				lose, keep = a, b
			}
			marked[lose] = true
			res.removals = append(res.removals, domain.Removal{
				PropertyID: recs[lose].PropertyID,
				SubjectID:  recs[lose].SubjectID,
				KeptID:     recs[keep].PropertyID,
				Pass:       pass,
			})
		}
	}
	return res
}

// addressJudge keeps the more complete record; on a tie the second goes.
func (d *Detector) addressJudge(a, b domain.PropertyRecord) (int, bool, bool) {
	if !IsDuplicate(a, b, d.opts.TolerancePct) {
		return 0, false, false
	}
	if a.NullCount() <= b.NullCount() {
		return 1, true, false
	}
	return 0, true, false
}

func (d *Detector) geoJudge(a, b domain.PropertyRecord) (int, bool, bool) {
	if !a.HasCoords() || !b.HasCoords() {
		return 0, false, false
	}
	dist, err := distanceMeters(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude)
	if err != nil {
		d.opts.Logger.Debug().Err(err).
			Int64("a", a.PropertyID).
			Int64("b", b.PropertyID).
			Msg("geographic comparison skipped")
		return 0, false, true
	}
	if dist < d.opts.GeoRadiusMeters && IsDuplicate(a, b, d.opts.GeoTolerancePct) {
		return 1, true, false
	}
	return 0, false, false
}

func canonicalOrder(records []domain.PropertyRecord) []domain.PropertyRecord {
	out := make([]domain.PropertyRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PropertyID < out[j].PropertyID })
	return out
}

// groupAddress partitions by structure type and then normalized address,
// keeping first-appearance order. Untyped records sit this pass out and
// singleton groups are dropped.
func groupAddress(recs []domain.PropertyRecord) [][]int {
	type key struct{ typ, addr string }
	index := map[key]int{}
	var groups [][]int
	var typeOrder []string
	byType := map[string][]key{}
	for i, r := range recs {
		if r.StructureType == nil {
			continue
		}
		k := key{*r.StructureType, NormalizePtr(r.Address)}
		gi, ok := index[k]
		if !ok {
			gi = len(groups)
			index[k] = gi
			groups = append(groups, nil)
			if _, seen := byType[k.typ]; !seen {
				typeOrder = append(typeOrder, k.typ)
			}
			byType[k.typ] = append(byType[k.typ], k)
		}
		groups[gi] = append(groups[gi], i)
	}

	var out [][]int
	for _, t := range typeOrder {
		for _, k := range byType[t] {
			if g := groups[index[k]]; len(g) > 1 {
				out = append(out, g)
			}
		}
	}
	return out
}

func groupSubject(recs []domain.PropertyRecord) [][]int {
	index := map[int64]int{}
	var groups [][]int
	for i, r := range recs {
		gi, ok := index[r.SubjectID]
		if !ok {
			gi = len(groups)
			index[r.SubjectID] = gi
			groups = append(groups, nil)
		}
		groups[gi] = append(groups[gi], i)
	}
	var out [][]int
	for _, g := range groups {
		if len(g) > 1 {
			out = append(out, g)
		}
	}
	return out
}

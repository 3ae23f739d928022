package dedup

import "comps_dedup/internal/domain"

// Apply returns the records not in set, in their original order.
func Apply(records []domain.PropertyRecord, set *RemovalSet) []domain.PropertyRecord {
	out := make([]domain.PropertyRecord, 0, len(records))
	for _, r := range records {
		if !set.Has(r.PropertyID) {
			out = append(out, r)
		}
	}
	return out
}

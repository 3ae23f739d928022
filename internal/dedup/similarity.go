package dedup

import (
	"math"

	"comps_dedup/internal/domain"
)

const (
	CondoStructureType = "Condominium"

	DefaultTolerancePct    = 0.15
	DefaultGeoTolerancePct = 0.02
)

// IsDuplicate decides whether a and b describe the same listing. It leans
// towards "not a duplicate": a removed comparable cannot be recovered later.
//
// Condominiums need two exact matches among price, area and bedrooms, and
// never match across different unit numbers. Other types need an exact price
// and bedroom agreement; area may differ by tolerancePct of the larger value.
func IsDuplicate(a, b domain.PropertyRecord, tolerancePct float64) bool {
	if isCondo(a) || isCondo(b) {
		return condoDuplicate(a, b)
	}

	if a.ClosePrice != nil && b.ClosePrice != nil && *a.ClosePrice != *b.ClosePrice {
		return false
	}
	if a.BedroomsTotal != nil && b.BedroomsTotal != nil && *a.BedroomsTotal != *b.BedroomsTotal {
		return false
	}
	if a.GLASqft != nil && b.GLASqft != nil {
		if relDiff(*a.GLASqft, *b.GLASqft) <= tolerancePct {
			return true
		}
	}
	return exactMatch(a.ClosePrice, b.ClosePrice)
}

func condoDuplicate(a, b domain.PropertyRecord) bool {
	unitA, baseA := ExtractUnit(a.AddressOrEmpty())
	unitB, baseB := ExtractUnit(b.AddressOrEmpty())

	// different units in one building are different listings
	if unitA != "" && unitB != "" && unitA != unitB {
		return false
	}
	if baseA == baseB && unitA != unitB {
		return false
	}

	matches := 0
	for _, ok := range []bool{
		exactMatch(a.ClosePrice, b.ClosePrice),
		exactMatch(a.GLASqft, b.GLASqft),
		exactMatch(a.BedroomsTotal, b.BedroomsTotal),
	} {
		if ok {
			matches++
		}
	}
	return matches >= 2
}

func isCondo(p domain.PropertyRecord) bool {
	return p.StructureType != nil && *p.StructureType == CondoStructureType
}

func exactMatch(a, b *float64) bool {
	return a != nil && b != nil && *a == *b
}

// relDiff is |a-b| / max(a,b). Non-positive areas are not evidence and
// yield NaN, which fails every tolerance check.
func relDiff(a, b float64) float64 {
	hi := math.Max(a, b)
	if !(hi > 0) {
		return math.NaN()
	}
	return math.Abs(a-b) / hi
}

package dedup

import (
	"fmt"

	"comps_dedup/internal/domain"
)

// Result is the outcome of one Run.
type Result struct {
	Cleaned      []domain.PropertyRecord `json:"cleaned"`
	Detected     []int64                 `json:"detected"`
	Removed      []int64                 `json:"removed"`
	Removals     []domain.Removal        `json:"removals"`
	Restorations []Restoration           `json:"restorations,omitempty"`
	BelowFloor   []domain.SubjectCount   `json:"below_floor,omitempty"`
	Stats        DetectStats             `json:"stats"`
}

// Run detects duplicates, protects the comparable floor and filters.
// Only structurally invalid input is an error.
func Run(records []domain.PropertyRecord, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if err := Validate(records); err != nil {
		return Result{}, err
	}

	detected, removals, stats := NewDetector(opts).Detect(records)
	res := Result{Detected: detected.IDs(), Stats: stats}

	final := detected.Clone()
	res.Restorations = Protect(records, final, opts.MinComparables, opts.Logger)
	res.Removed = final.IDs()
	for _, rm := range removals {
		if final.Has(rm.PropertyID) {
			res.Removals = append(res.Removals, rm)
		}
	}
	res.Cleaned = Apply(records, final)
	res.BelowFloor = FloorReport(records, final, opts.MinComparables)

	opts.Logger.Info().
		Int("input", len(records)).
		Int("detected", len(res.Detected)).
		Int("removed", len(res.Removed)).
		Int("kept", len(res.Cleaned)).
		Int("subjects_below_floor", len(res.BelowFloor)).
		Msg("dedup run complete")
	for _, sc := range res.BelowFloor {
		opts.Logger.Warn().
			Int64("subject_id", sc.SubjectID).
			Int("initial", sc.Initial).
			Int("final", sc.Final).
			Int("floor", opts.MinComparables).
			Msg("subject below comparable floor")
	}
	return res, nil
}

// Validate fails fast on records the grouping model cannot handle: a
// missing (non-positive) property ID, a negative subject ID, or a repeated
// property ID.
func Validate(records []domain.PropertyRecord) error {
	seen := make(map[int64]int, len(records))
	for i, r := range records {
		if r.PropertyID <= 0 {
			return fmt.Errorf("row %d: missing property_id: %w", i, domain.ErrInvalidRecord)
		}
		if r.SubjectID < 0 {
			return fmt.Errorf("row %d (property %d): missing subject_id: %w", i, r.PropertyID, domain.ErrInvalidRecord)
		}
		if prev, dup := seen[r.PropertyID]; dup {
			return fmt.Errorf("rows %d and %d share property_id %d: %w", prev, i, r.PropertyID, domain.ErrInvalidRecord)
		}
		seen[r.PropertyID] = i
	}
	return nil
}

package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comps_dedup/internal/domain"
)

func ids(recs []domain.PropertyRecord) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.PropertyID)
	}
	return out
}

func subjectOne() []domain.PropertyRecord {
	return []domain.PropertyRecord{
		at(prop(1, 1, "12 Oak Street", "Detached", 500000, 1500, 3), 43.70, -79.40),
		at(prop(2, 1, "12 Oak St", "Detached", 500000, 1500, 3), 43.70, -79.40),
		at(prop(3, 1, "UNIT 101 - 40 Lake Shore Blvd", "Condominium", 650000, 800, 2), 43.64, -79.37),
		at(prop(4, 1, "UNIT 102 - 40 Lake Shore Boulevard", "Condominium", 650000, 800, 2), 43.64, -79.37),
		at(prop(5, 1, "7 Birch Ave", "Semi-Detached", 420000, 1100, 3), 43.72, -79.45),
	}
}

func TestRun_EndToEnd(t *testing.T) {
	res, err := Run(subjectOne(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []int64{2}, res.Detected)
	assert.Equal(t, []int64{2}, res.Removed)
	assert.Equal(t, []int64{1, 3, 4, 5}, ids(res.Cleaned))
	assert.Empty(t, res.Restorations)
	assert.Empty(t, res.BelowFloor)
}

func TestRun_ProtectionTriggers(t *testing.T) {
	recs := []domain.PropertyRecord{
		at(prop(20, 2, "88 River Road", "Detached", 710000, 2100, 4), 43.80, -79.30),
		prop(21, 2, "88 River Rd", "Detached", 710000, 2100, 4),
		at(prop(22, 2, "3 Hill Cres", "Detached", 690000, 1900, 3), 43.81, -79.31),
	}

	res, err := Run(recs, Options{})
	require.NoError(t, err)

	assert.Equal(t, []int64{21}, res.Detected)
	assert.Empty(t, res.Removed)
	assert.Empty(t, res.Removals)
	require.Len(t, res.Restorations, 1)
	assert.Equal(t, []int64{21}, res.Restorations[0].Restored)
	assert.Len(t, res.Cleaned, 3)
	assert.Empty(t, res.BelowFloor)
}

// Idempotence holds for pools without chained matches; see
// TestRun_GreedyChainCanShiftOnRerun for the known exception.
func TestRun_Idempotent(t *testing.T) {
	for name, recs := range map[string][]domain.PropertyRecord{
		"subject one": subjectOne(),
		"synthetic":   syntheticPool(30, 4),
	} {
		t.Run(name, func(t *testing.T) {
			first, err := Run(recs, Options{})
			require.NoError(t, err)

			second, err := Run(first.Cleaned, Options{})
			require.NoError(t, err)
			assert.Empty(t, second.Removed)
			assert.Equal(t, ids(first.Cleaned), ids(second.Cleaned))
		})
	}
}

// A chain M~W, M~Q with W!~Q: M is dropped for Q and W is restored for its
// short subject. With M gone a second run pairs W with V, which the first
// run never compared, so rerunning is not a no-op.
func TestRun_GreedyChainCanShiftOnRerun(t *testing.T) {
	m := prop(1, 20, "5 Main St", "Detached", 0, 1000, 3)
	m.City = ptr("Toronto")
	q := prop(3, 20, "5 Main St", "Detached", 0, 1140, 3)
	q.City = ptr("Toronto")
	q.Province = ptr("ON")
	recs := []domain.PropertyRecord{
		m,
		prop(2, 10, "5 Main St", "Detached", 0, 880, 3), // W
		q,
		prop(4, 20, "5 Main St", "Detached", 0, 800, 3), // V
		prop(5, 10, "8 Elm St", "Detached", 0, 0, 0),
		prop(6, 10, "9 Pine Ave", "Detached", 0, 0, 0),
		prop(7, 20, "2 Oak Rd", "Detached", 0, 0, 0),
		prop(8, 20, "4 Ash Cres", "Detached", 0, 0, 0),
	}

	first, err := Run(recs, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, first.Detected)
	assert.Equal(t, []int64{1}, first.Removed)

	second, err := Run(first.Cleaned, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, second.Removed)
	assert.Equal(t, int64(2), second.Removals[0].KeptID)
}

func TestRun_FloorGuaranteeAndMonotonicity(t *testing.T) {
	recs := append(syntheticPool(30, 4),
		prop(9001, 900, "1 Lone Rd", "Detached", 1, 100, 1),
		prop(9002, 900, "1 Lone Rd", "Detached", 1, 100, 1),
	)

	res, err := Run(recs, Options{MinComparables: 3})
	require.NoError(t, err)

	detected := NewRemovalSet(res.Detected...)
	assert.True(t, NewRemovalSet(res.Removed...).SubsetOf(detected))
	assert.NotEmpty(t, res.Restorations)

	initial := map[int64]int{}
	for _, r := range recs {
		initial[r.SubjectID]++
	}
	final := map[int64]int{}
	for _, r := range res.Cleaned {
		final[r.SubjectID]++
	}
	for subject, n := range initial {
		if n >= 3 {
			assert.GreaterOrEqualf(t, final[subject], 3, "subject %d", subject)
		}
	}
	assert.Equal(t, []domain.SubjectCount{{SubjectID: 900, Initial: 2, Final: 2}}, res.BelowFloor)
}

func TestRun_PreservesInputOrder(t *testing.T) {
	recs := subjectOne()
	reversed := []domain.PropertyRecord{recs[4], recs[3], recs[2], recs[1], recs[0]}

	res, err := Run(reversed, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4, 3, 1}, ids(res.Cleaned))
}

func TestRun_RejectsStructurallyInvalidInput(t *testing.T) {
	tests := map[string][]domain.PropertyRecord{
		"missing property id": {prop(0, 1, "", "", 0, 0, 0)},
		"negative subject":    {prop(1, -1, "", "", 0, 0, 0)},
		"repeated id":         {prop(1, 1, "", "", 0, 0, 0), prop(1, 2, "", "", 0, 0, 0)},
	}
	for name, recs := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Run(recs, Options{})
			assert.ErrorIs(t, err, domain.ErrInvalidRecord)
		})
	}
}

func TestRun_EmptyInput(t *testing.T) {
	res, err := Run(nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Cleaned)
	assert.Empty(t, res.Removed)
}

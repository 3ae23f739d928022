package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"comps_dedup/internal/app"
	"comps_dedup/internal/dedup"
	"comps_dedup/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	mu      sync.Mutex
	input   []domain.PropertyRecord
	cleaned []domain.PropertyRecord
	runID   string
	runs    map[string]domain.RunSummary
	saveErr error
}

func (f *fakeRepo) LoadProperties(ctx context.Context) ([]domain.PropertyRecord, error) {
	return f.input, nil
}
func (f *fakeRepo) GetRun(ctx context.Context, id string) (domain.RunSummary, error) {
	r, ok := f.runs[id]
	if !ok {
		return domain.RunSummary{}, domain.ErrNotFound
	}
	return r, nil
}
func (f *fakeRepo) ReplaceCleaned(ctx context.Context, runID string, rs []domain.PropertyRecord) error {
	f.runID, f.cleaned = runID, rs
	return nil
}
func (f *fakeRepo) SaveRun(ctx context.Context, run domain.RunSummary) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runs == nil {
		f.runs = map[string]domain.RunSummary{}
	}
	f.runs[run.ID] = run
	return nil
}

type fakeGeocoder struct {
	mu    sync.Mutex
	calls []string
	known map[string]domain.Coords
}

func (g *fakeGeocoder) Geocode(ctx context.Context, address string) (domain.Coords, bool, error) {
	g.mu.Lock()
	g.calls = append(g.calls, address)
	g.mu.Unlock()
	c, ok := g.known[address]
	return c, ok, nil
}

// ---- fixtures ----

func ptr[T any](v T) *T { return &v }

func house(id, subject int64, addr string, price float64) domain.PropertyRecord {
	return domain.PropertyRecord{
		PropertyID:    id,
		SubjectID:     subject,
		Address:       ptr(addr),
		StructureType: ptr("Detached"),
		ClosePrice:    ptr(price),
		GLASqft:       ptr(1500.0),
		BedroomsTotal: ptr(3.0),
	}
}

func dataset() []domain.PropertyRecord {
	return []domain.PropertyRecord{
		house(1, 0, "12 Oak Street", 500000),
		house(2, 0, "12 Oak St", 500000),
		house(3, 0, "3 Elm Ave", 610000),
		house(4, 0, "9 Birch Rd", 455000),
	}
}

// ---- tests ----

func TestClean_RemovesAndPersistsRun(t *testing.T) {
	repo := &fakeRepo{}
	svc := app.NewCleaningService(repo, nil, dedup.Options{}, 1)

	res, err := svc.Clean(context.Background(), dataset(), false)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.RunID == "" {
		t.Fatalf("expected run id")
	}
	if len(res.Removed) != 1 || res.Removed[0] != 2 || len(res.Cleaned) != 3 {
		t.Fatalf("unexpected result: removed=%v cleaned=%d", res.Removed, len(res.Cleaned))
	}

	run, err := svc.GetRun(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.InputCount != 4 || run.OutputCount != 3 || run.DetectedCount != 1 || len(run.Removals) != 1 {
		t.Fatalf("unexpected run summary: %+v", run)
	}
	if run.Removals[0].KeptID != 1 || run.Removals[0].Pass != domain.PassAddress {
		t.Fatalf("unexpected removal: %+v", run.Removals[0])
	}
}

func TestClean_GeocodesMissingCoordinates(t *testing.T) {
	geo := &fakeGeocoder{known: map[string]domain.Coords{"3 Elm Ave": {Lat: 43.7, Lon: -79.4}}}
	svc := app.NewCleaningService(nil, geo, dedup.Options{}, 4)

	in := dataset()
	in[3].Latitude, in[3].Longitude = ptr(43.8), ptr(-79.5)

	res, err := svc.Clean(context.Background(), in, true)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.Geocoded != 1 {
		t.Fatalf("expected one filled record, got %d", res.Geocoded)
	}
	// record 4 already had coordinates, so three lookups
	if len(geo.calls) != 3 {
		t.Fatalf("expected 3 geocode calls, got %v", geo.calls)
	}
	if in[2].Latitude != nil {
		t.Fatalf("caller's records must not be modified")
	}
	for _, r := range res.Cleaned {
		if r.PropertyID == 3 && !r.HasCoords() {
			t.Fatalf("expected coordinates on property 3")
		}
	}
}

func TestClean_SkipsGeocodingWhenNotAsked(t *testing.T) {
	geo := &fakeGeocoder{}
	svc := app.NewCleaningService(nil, geo, dedup.Options{}, 1)
	if _, err := svc.Clean(context.Background(), dataset(), false); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(geo.calls) != 0 {
		t.Fatalf("unexpected geocode calls: %v", geo.calls)
	}
}

func TestClean_InvalidInput(t *testing.T) {
	svc := app.NewCleaningService(nil, nil, dedup.Options{}, 1)
	in := dataset()
	in[1].PropertyID = 1

	if _, err := svc.Clean(context.Background(), in, false); !errors.Is(err, domain.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestClean_SaveRunFailure(t *testing.T) {
	boom := errors.New("boom")
	svc := app.NewCleaningService(&fakeRepo{saveErr: boom}, nil, dedup.Options{}, 1)
	if _, err := svc.Clean(context.Background(), dataset(), false); !errors.Is(err, boom) {
		t.Fatalf("expected save error, got %v", err)
	}
}

func TestCleanStored_ReplacesOutputTable(t *testing.T) {
	repo := &fakeRepo{input: dataset()}
	svc := app.NewCleaningService(repo, nil, dedup.Options{}, 1)

	res, err := svc.CleanStored(context.Background(), false)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if repo.runID != res.RunID || len(repo.cleaned) != 3 {
		t.Fatalf("cleaned table not replaced: run=%s rows=%d", repo.runID, len(repo.cleaned))
	}
}

func TestWithoutStore(t *testing.T) {
	svc := app.NewCleaningService(nil, nil, dedup.Options{}, 1)
	if _, err := svc.CleanStored(context.Background(), false); !errors.Is(err, app.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if _, err := svc.GetRun(context.Background(), "x"); !errors.Is(err, app.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

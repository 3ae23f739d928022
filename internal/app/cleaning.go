package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"comps_dedup/internal/adapters/observability"
	"comps_dedup/internal/dedup"
	"comps_dedup/internal/domain"
)

// ErrNoStore is returned by operations that need a repository when none is configured.
var ErrNoStore = errors.New("no property store configured")

// CleanResult is one dedup run plus what the service did around it.
type CleanResult struct {
	RunID string `json:"run_id"`
	dedup.Result
	Geocoded int `json:"geocoded"`
}

// CleaningService runs the dedup engine over a dataset. Repository and
// geocoder are optional; without them runs are neither persisted nor
// geocoded.
type CleaningService struct {
	repo       domain.PropertyRepository
	geo        domain.Geocoder
	opts       dedup.Options
	geoWorkers int64
}

func NewCleaningService(r domain.PropertyRepository, g domain.Geocoder, opts dedup.Options, geoWorkers int) *CleaningService {
	if geoWorkers <= 0 {
		geoWorkers = 1
	}
	return &CleaningService{repo: r, geo: g, opts: opts, geoWorkers: int64(geoWorkers)}
}

// Clean deduplicates records. When geocode is set and a geocoder is
// configured, records without coordinates are looked up first; failed
// lookups leave them without coordinates. The caller's slice is not modified.
func (s *CleaningService) Clean(ctx context.Context, records []domain.PropertyRecord, geocode bool) (CleanResult, error) {
	started := time.Now()
	out := CleanResult{RunID: uuid.NewString()}

	recs := make([]domain.PropertyRecord, len(records))
	copy(recs, records)

	if geocode && s.geo != nil {
		n, err := s.fillCoordinates(ctx, recs)
		if err != nil {
			return CleanResult{}, err
		}
		out.Geocoded = n
	}

	opts := s.opts
	if opts.Logger == nil {
		l := log.Logger.With().Str("run_id", out.RunID).Logger()
		opts.Logger = &l
	}
	res, err := dedup.Run(recs, opts)
	if err != nil {
		return CleanResult{}, fmt.Errorf("dedup run %s: %w", out.RunID, err)
	}
	out.Result = res
	dur := time.Since(started)
	observability.ObserveRun(res, dur)

	if s.repo != nil {
		if err := s.repo.SaveRun(ctx, summarize(out, len(records), started, dur)); err != nil {
			return CleanResult{}, fmt.Errorf("save run %s: %w", out.RunID, err)
		}
	}
	return out, nil
}

// CleanStored cleans the stored input table and replaces the stored output table.
func (s *CleaningService) CleanStored(ctx context.Context, geocode bool) (CleanResult, error) {
	if s.repo == nil {
		return CleanResult{}, ErrNoStore
	}
	records, err := s.repo.LoadProperties(ctx)
	if err != nil {
		return CleanResult{}, fmt.Errorf("load properties: %w", err)
	}
	res, err := s.Clean(ctx, records, geocode)
	if err != nil {
		return CleanResult{}, err
	}
	if err := s.repo.ReplaceCleaned(ctx, res.RunID, res.Cleaned); err != nil {
		return CleanResult{}, fmt.Errorf("write cleaned table: %w", err)
	}
	log.Info().Str("run_id", res.RunID).Int("rows", len(res.Cleaned)).Msg("cleaned table replaced")
	return res, nil
}

func (s *CleaningService) GetRun(ctx context.Context, id string) (domain.RunSummary, error) {
	if s.repo == nil {
		return domain.RunSummary{}, ErrNoStore
	}
	return s.repo.GetRun(ctx, id)
}

// fillCoordinates geocodes records that have an address but no coordinates.
// Only cancellation is an error.
func (s *CleaningService) fillCoordinates(ctx context.Context, recs []domain.PropertyRecord) (int, error) {
	sem := semaphore.NewWeighted(s.geoWorkers)
	var wg sync.WaitGroup
	var filled atomic.Int64
	var acquireErr error

	for i := range recs {
		if recs[i].HasCoords() || recs[i].AddressOrEmpty() == "" {
			continue
		}

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			addr := recs[i].AddressOrEmpty()
			c, ok, err := s.geo.Geocode(ctx, addr)
			if err != nil {
				log.Warn().Err(err).Int64("property_id", recs[i].PropertyID).Msg("geocode failed")
				return
			}
			if !ok {
				log.Debug().Int64("property_id", recs[i].PropertyID).Str("address", addr).Msg("geocode: no match")
				return
			}
			lat, lon := c.Lat, c.Lon
			recs[i].Latitude, recs[i].Longitude = &lat, &lon
			filled.Add(1)
		}(i)
	}

	wg.Wait()
	if acquireErr != nil {
		return 0, acquireErr
	}
	log.Info().Int64("filled", filled.Load()).Msg("coordinates filled")
	return int(filled.Load()), nil
}

func summarize(r CleanResult, input int, started time.Time, dur time.Duration) domain.RunSummary {
	restored := 0
	for _, rs := range r.Restorations {
		restored += len(rs.Restored)
	}
	return domain.RunSummary{
		ID:            r.RunID,
		StartedAt:     started.UTC(),
		Duration:      dur,
		InputCount:    input,
		OutputCount:   len(r.Cleaned),
		DetectedCount: len(r.Detected),
		RestoredCount: restored,
		Geocoded:      r.Geocoded,
		Removals:      r.Removals,
		BelowFloor:    r.BelowFloor,
	}
}

package domain

import (
	"context"
	"time"
)

type PropertyRepository interface {
	// Read paths
	LoadProperties(ctx context.Context) ([]PropertyRecord, error)
	GetRun(ctx context.Context, id string) (RunSummary, error)

	// Write paths
	ReplaceCleaned(ctx context.Context, runID string, rs []PropertyRecord) error
	SaveRun(ctx context.Context, run RunSummary) error
}

// Geocoder resolves a free-text address. ok=false means the service had no
// answer; err is reserved for transport failures.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (c Coords, ok bool, err error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// RunSummary is the persisted audit of one dedup run.
type RunSummary struct {
	ID            string         `json:"id"`
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration_ns"`
	InputCount    int            `json:"input_count"`
	OutputCount   int            `json:"output_count"`
	DetectedCount int            `json:"detected_count"`
	RestoredCount int            `json:"restored_count"`
	Geocoded      int            `json:"geocoded"`
	Removals      []Removal      `json:"removals,omitempty"`
	BelowFloor    []SubjectCount `json:"below_floor,omitempty"`
}

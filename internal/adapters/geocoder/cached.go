package geocoder

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"comps_dedup/internal/adapters/observability"
	"comps_dedup/internal/domain"
)

const cachePrefix = "geocode:v1:"

// entry is what the cache holds. Found=false is a remembered miss so the
// same unknown address is not asked twice.
type entry struct {
	Found bool    `json:"found"`
	Lat   float64 `json:"lat,omitempty"`
	Lon   float64 `json:"lon,omitempty"`
}

// Cached puts a domain.Cache in front of another Geocoder. Transport errors
// are returned and not cached; cache errors degrade to a direct lookup.
type Cached struct {
	next   domain.Geocoder
	cache  domain.Cache
	ttlSec int
}

func NewCached(next domain.Geocoder, cache domain.Cache, ttlSec int) *Cached {
	return &Cached{next: next, cache: cache, ttlSec: ttlSec}
}

func cacheKey(address string) string {
	return cachePrefix + strings.ToUpper(strings.Join(strings.Fields(address), " "))
}

func (c *Cached) Geocode(ctx context.Context, address string) (domain.Coords, bool, error) {
	if strings.TrimSpace(address) == "" {
		return domain.Coords{}, false, nil
	}
	key := cacheKey(address)

	var e entry
	hit, err := c.cache.Get(ctx, key, &e)
	if err != nil {
		log.Warn().Err(err).Str("err_type", observability.LabelErr(err)).Str("key", key).Msg("geocode cache read failed")
	}
	if hit {
		return domain.Coords{Lat: e.Lat, Lon: e.Lon}, e.Found, nil
	}

	coords, ok, err := c.next.Geocode(ctx, address)
	if err != nil {
		return domain.Coords{}, false, err
	}
	e = entry{Found: ok, Lat: coords.Lat, Lon: coords.Lon}
	if err := c.cache.Set(ctx, key, e, c.ttlSec); err != nil {
		log.Warn().Err(err).Str("err_type", observability.LabelErr(err)).Str("key", key).Msg("geocode cache write failed")
	}
	return coords, ok, nil
}

// Forget drops a cached answer, remembered misses included.
func (c *Cached) Forget(ctx context.Context, address string) error {
	return c.cache.Del(ctx, cacheKey(address))
}

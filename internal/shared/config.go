package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"comps_dedup/internal/dedup"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	GeocoderBase   string
	GeocoderAgent  string
	GeocoderRPS    float64
	GeocodeWorkers int
	GeocodeTTL     time.Duration

	TolerancePct    float64
	GeoTolerancePct float64
	MinComparables  int
	GeoRadiusMeters float64
	DedupWorkers    int
	RequestTimeout  time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer setting")
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-numeric setting")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/comps?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		GeocoderBase:   env("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderAgent:  env("GEOCODER_USER_AGENT", "comps-dedup/1.0"),
		GeocoderRPS:    atof("GEOCODER_RPS", 1),
		GeocodeWorkers: atoi("GEOCODE_WORKERS", 4),
		GeocodeTTL:     time.Duration(atoi("GEOCODE_CACHE_TTL_SECONDS", 30*24*3600)) * time.Second,

		TolerancePct:    atof("DEDUP_TOLERANCE_PCT", dedup.DefaultTolerancePct),
		GeoTolerancePct: atof("DEDUP_GEO_TOLERANCE_PCT", dedup.DefaultGeoTolerancePct),
		MinComparables:  atoi("DEDUP_MIN_COMPARABLES", dedup.DefaultMinComparables),
		GeoRadiusMeters: atof("DEDUP_GEO_RADIUS_M", dedup.DefaultGeoRadiusMeters),
		DedupWorkers:    atoi("DEDUP_WORKERS", 1),
		RequestTimeout:  time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
	}
	if c.TolerancePct <= 0 || c.GeoTolerancePct <= 0 {
		log.Warn().Float64("tolerance", c.TolerancePct).Float64("geo_tolerance", c.GeoTolerancePct).Msg("non-positive tolerance falls back to default")
	}
	return c
}

// DedupOptions is the engine configuration carried by c.
func (c Config) DedupOptions() dedup.Options {
	return dedup.Options{
		TolerancePct:    c.TolerancePct,
		GeoTolerancePct: c.GeoTolerancePct,
		MinComparables:  c.MinComparables,
		GeoRadiusMeters: c.GeoRadiusMeters,
		Workers:         c.DedupWorkers,
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

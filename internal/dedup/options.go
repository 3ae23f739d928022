package dedup

import "github.com/rs/zerolog"

const (
	DefaultMinComparables  = 3
	DefaultGeoRadiusMeters = 10.0
)

// Options tunes one dedup run. Zero values fall back to the defaults.
type Options struct {
	// TolerancePct is the relative area tolerance of the address pass.
	TolerancePct float64
	// GeoTolerancePct is the (tighter) area tolerance of the geographic pass.
	GeoTolerancePct float64
	MinComparables  int
	GeoRadiusMeters float64
	// Workers > 1 evaluates independent groups concurrently. Output does
	// not depend on it.
	Workers int
	Logger  *zerolog.Logger
}

func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.TolerancePct <= 0 {
		o.TolerancePct = DefaultTolerancePct
	}
	if o.GeoTolerancePct <= 0 {
		o.GeoTolerancePct = DefaultGeoTolerancePct
	}
	if o.MinComparables <= 0 {
		o.MinComparables = DefaultMinComparables
	}
	if o.GeoRadiusMeters <= 0 {
		o.GeoRadiusMeters = DefaultGeoRadiusMeters
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

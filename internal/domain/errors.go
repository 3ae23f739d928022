package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRecord      = errors.New("invalid property record")
	ErrGeocodeUnavailable = errors.New("geocoder unavailable")
)

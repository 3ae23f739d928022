package dedup

import (
	"fmt"
	"math"

	"github.com/tidwall/geodesic"
)

// distanceMeters is the WGS84 geodesic distance between two points.
func distanceMeters(lat1, lon1, lat2, lon2 float64) (float64, error) {
	for _, c := range [][2]float64{{lat1, lon1}, {lat2, lon2}} {
		if err := checkCoord(c[0], c[1]); err != nil {
			return 0, err
		}
	}
	var d float64
	geodesic.WGS84.Inverse(lat1, lon1, lat2, lon2, &d, nil, nil)
	if math.IsNaN(d) {
		return 0, fmt.Errorf("geodesic inverse failed for (%v,%v)-(%v,%v)", lat1, lon1, lat2, lon2)
	}
	return d, nil
}

func checkCoord(lat, lon float64) error {
	switch {
	case math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0):
		return fmt.Errorf("non-finite coordinate (%v,%v)", lat, lon)
	case lat < -90 || lat > 90:
		return fmt.Errorf("latitude %v out of range", lat)
	case lon < -180 || lon > 180:
		return fmt.Errorf("longitude %v out of range", lon)
	}
	return nil
}

package valueobject

import (
	"math"

	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

const earthRadiusKm = 6371.0

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func NewGeoPoint(lat, lon float64) (GeoPoint, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return GeoPoint{}, apperror.New(apperror.ErrCodeValidation, "координаты вне допустимого диапазона")
	}
	return GeoPoint{Lat: lat, Lon: lon}, nil
}

// IsZero точка (0, 0) означает, что координаты не переданы.
func (p GeoPoint) IsZero() bool {
	return p == GeoPoint{}
}

// DistanceKm расстояние по большому кругу (haversine).
func (p GeoPoint) DistanceKm(other GeoPoint) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(other.Lat - p.Lat)
	dLon := toRad(other.Lon - p.Lon)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(p.Lat))*math.Cos(toRad(other.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

type Location struct {
	Point   GeoPoint `json:"point"`
	Address string   `json:"address"`
	Region  string   `json:"region"`
}

package geo

import (
	"math"
	"math/rand"
)

const earthRadiusKm = 6371.0

type Point struct {
	Lat float64
	Lon float64
}

// Haversine returns the great-circle distance between two points in km.
func Haversine(a, b Point) float64 {
	dlat := radians(b.Lat - a.Lat)
	dlon := radians(b.Lon - a.Lon)
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	h := math.Pow(math.Sin(dlat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Lerp interpolates linearly between a and b at fraction t in [0,1].
func Lerp(a, b Point, t float64) Point {
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lon: a.Lon + (b.Lon-a.Lon)*t,
	}
}

// Jitter scatters a point around center with a gaussian spread of spreadKm,
// used to place couriers on startup. One degree of latitude is ~111 km; the
// longitude correction degrades near the poles, clamped like the original
// simulation.
func Jitter(center Point, spreadKm float64, rng *rand.Rand) Point {
	dlat := rng.NormFloat64() * spreadKm / 111.0
	dlon := rng.NormFloat64() * spreadKm / (111.0 * math.Max(0.1, math.Cos(radians(center.Lat))))
	return Point{Lat: center.Lat + dlat, Lon: center.Lon + dlon}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

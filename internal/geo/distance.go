package geo

import "math"

// EarthRadiusKm средний радиус Земли, используемый формулой гаверсинуса
const EarthRadiusKm = 6371.0

// Point: координаты в десятичных градусах
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewPoint собирает точку из необязательных координат; ok=false, если хотя бы одной нет.
func NewPoint(lat, lon *float64) (Point, bool) {
	if lat == nil || lon == nil {
		return Point{}, false
	}
	return Point{Lat: *lat, Lon: *lon}, true
}

// Distance вычисляет расстояние между двумя точками по формуле гаверсинуса (в км)
func Distance(a, b Point) float64 {
	lat1Rad := a.Lat * math.Pi / 180.0
	lon1Rad := a.Lon * math.Pi / 180.0
	lat2Rad := b.Lat * math.Pi / 180.0
	lon2Rad := b.Lon * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// округление может дать h чуть больше 1 для антиподов
	if h > 1 {
		h = 1
	}
	c := 2 * math.Asin(math.Sqrt(h))

	return EarthRadiusKm * c
}

// Within сообщает, лежит ли b не дальше maxKm от a
func Within(a, b Point, maxKm float64) bool {
	return Distance(a, b) <= maxKm
}

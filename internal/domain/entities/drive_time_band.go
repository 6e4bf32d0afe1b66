package entities

// Point is a longitude/latitude pair in GeoJSON order
type Point [2]float64

// DriveTimeBand is a pre-computed area reachable from a facility within a
// travel-time range.
type DriveTimeBand struct {
	ID         string    `json:"id"`
	FacilityID string    `json:"facility_id"`
	MinMinutes int       `json:"min"`
	MaxMinutes int       `json:"max"`
	MinLat     float64   `json:"min_lat"`
	MaxLat     float64   `json:"max_lat"`
	MinLon     float64   `json:"min_lon"`
	MaxLon     float64   `json:"max_lon"`
	Rings      [][]Point `json:"rings"`
	Version    string    `json:"version"`
}

// InBounds reports whether the point lies in the band's bounding box
func (b *DriveTimeBand) InBounds(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Contains reports whether the point lies inside the band. Rings are combined
// with the even-odd rule, so inner rings act as holes.
func (b *DriveTimeBand) Contains(lat, lon float64) bool {
	if !b.InBounds(lat, lon) {
		return false
	}
	inside := false
	for _, ring := range b.Rings {
		n := len(ring)
		for i, j := 0, n-1; i < n; j, i = i, i+1 {
			xi, yi := ring[i][0], ring[i][1]
			xj, yj := ring[j][0], ring[j][1]
			if (yi > lat) != (yj > lat) && lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
				inside = !inside
			}
		}
	}
	return inside
}

// ComputeBounds sets the bounding box from the rings
func (b *DriveTimeBand) ComputeBounds() {
	first := true
	for _, ring := range b.Rings {
		for _, p := range ring {
			lon, lat := p[0], p[1]
			if first {
				b.MinLon, b.MaxLon, b.MinLat, b.MaxLat = lon, lon, lat, lat
				first = false
				continue
			}
			b.MinLon = min(b.MinLon, lon)
			b.MaxLon = max(b.MaxLon, lon)
			b.MinLat = min(b.MinLat, lat)
			b.MaxLat = max(b.MaxLat, lat)
		}
	}
}

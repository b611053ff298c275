package preprocess

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthSurfaceAreaM2 is the total surface area of the earth, the
// denominator of the explored-percentage metric.
const EarthSurfaceAreaM2 = 510072000e6

const earthRadiusM = 6371e3
const metersPerDegree = 111000

// haversineMeters returns the great-circle distance between two
// lon/lat points.
func haversineMeters(a, b orb.Point) float64 {
	lat1 := a[1] * math.Pi / 180
	lat2 := b[1] * math.Pi / 180
	dlat := (b[1] - a[1]) * math.Pi / 180
	dlon := (b[0] - a[0]) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

type gridKey struct {
	lat, lon int
}

// dedupeIndices returns the indices of points that survive min-distance
// deduplication, in input order. A spatial hash sized at 1.5x the
// minimum distance keeps the scan linear: a candidate only has to be
// checked against points in its own and the eight neighbouring cells.
func dedupeIndices(points []orb.Point, minDistance float64) []int {
	if len(points) == 0 {
		return nil
	}

	cellSize := minDistance * 1.5
	cells := make(map[gridKey][]orb.Point)
	kept := make([]int, 0, len(points))

	for i, p := range points {
		key := cellOf(p, cellSize)

		duplicate := false
	scan:
		for dlat := -1; dlat <= 1; dlat++ {
			for dlon := -1; dlon <= 1; dlon++ {
				neighbours := cells[gridKey{key.lat + dlat, key.lon + dlon}]
				for _, existing := range neighbours {
					if haversineMeters(p, existing) <= minDistance {
						duplicate = true
						break scan
					}
				}
			}
		}

		if !duplicate {
			kept = append(kept, i)
			cells[key] = append(cells[key], p)
		}
	}

	return kept
}

func cellOf(p orb.Point, cellSize float64) gridKey {
	return gridKey{
		lat: int(p[1] * metersPerDegree / cellSize),
		lon: int(p[0] * metersPerDegree * math.Cos(p[1]*math.Pi/180) / cellSize),
	}
}

// gridCellCount maps every point to a gridSize x gridSize meter cell and
// counts distinct cells. Cell count times cell area approximates the
// explored surface.
func gridCellCount(points []orb.Point, gridSize float64) int {
	cells := make(map[gridKey]struct{}, len(points))
	for _, p := range points {
		latPerCell := gridSize / metersPerDegree
		lonPerCell := gridSize / (metersPerDegree * math.Cos(p[1]*math.Pi/180))
		cells[gridKey{
			lat: int(p[1] / latPerCell),
			lon: int(p[0] / lonPerCell),
		}] = struct{}{}
	}
	return len(cells)
}

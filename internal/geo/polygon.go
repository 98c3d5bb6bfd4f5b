// Package geo provides the coordinate, polygon, and bounding-box value types
// used by the discovery engine, plus the deterministic quadrant splitter.
// All coordinates are WGS84 degrees.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGeometry is returned when a polygon violates the engine's
// preconditions: fewer than 3 points, non-finite coordinates, or a
// self-intersecting ring (e.g. a bowtie).
var ErrInvalidGeometry = errors.New("invalid geometry")

// metersPerDegreeLat is the approximate north-south distance of one degree
// of latitude. Longitude degrees shrink with cos(latitude).
const metersPerDegreeLat = 111320.0

// minCoverRadiusMeters is the floor applied to cover-circle radii so that
// degenerate boxes still produce a valid remote query.
const minCoverRadiusMeters = 50.0

// Coordinate is an immutable latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Polygon is an ordered ring of at least 3 coordinates. The ring is not
// explicitly closed; the closing point is appended only at the API-call
// boundary (see Closed).
type Polygon []Coordinate

// BoundingBox is an axis-aligned lat/lng rectangle.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// Validate checks the splitter's preconditions. Winding order is not
// normalized; callers must supply a consistent order. A self-intersecting
// ring is rejected outright rather than silently producing wrong results.
func (p Polygon) Validate() error {
	if len(p) < 3 {
		return fmt.Errorf("%w: ring has %d points, need at least 3", ErrInvalidGeometry, len(p))
	}
	for i, c := range p {
		if !isFinite(c.Latitude) || !isFinite(c.Longitude) {
			return fmt.Errorf("%w: non-finite coordinate at index %d", ErrInvalidGeometry, i)
		}
	}
	if p.selfIntersects() {
		return fmt.Errorf("%w: ring is self-intersecting", ErrInvalidGeometry)
	}
	return nil
}

// Bounds returns the axis-aligned bounding box of the ring's points.
func (p Polygon) Bounds() BoundingBox {
	b := BoundingBox{
		North: math.Inf(-1),
		South: math.Inf(1),
		West:  math.Inf(1),
		East:  math.Inf(-1),
	}
	for _, c := range p {
		b.North = math.Max(b.North, c.Latitude)
		b.South = math.Min(b.South, c.Latitude)
		b.West = math.Min(b.West, c.Longitude)
		b.East = math.Max(b.East, c.Longitude)
	}
	return b
}

// Closed returns the ring with the first point appended, for use at the
// API-call boundary. The working representation stays open.
func (p Polygon) Closed() Polygon {
	if len(p) == 0 {
		return p
	}
	if p[0] == p[len(p)-1] {
		return p
	}
	closed := make(Polygon, len(p)+1)
	copy(closed, p)
	closed[len(p)] = p[0]
	return closed
}

// Split quarters the polygon's bounding box at its midpoints and returns the
// four rectangular quadrants in fixed NW, NE, SW, SE order. The ordering is
// part of the contract: repeated runs on identical input must push identical
// work, so results are reproducible. Pure and deterministic.
//
// Quartering at the bbox midpoint regardless of density is the baseline
// policy; a density-proportional split would be an explicit alternative
// policy, not a drop-in change.
func (p Polygon) Split() [4]Polygon {
	return p.Bounds().Split()
}

// Split quarters the box at its midpoints, NW, NE, SW, SE.
func (b BoundingBox) Split() [4]Polygon {
	midLat := (b.North + b.South) / 2.0
	midLng := (b.West + b.East) / 2.0

	return [4]Polygon{
		BoundingBox{North: b.North, South: midLat, West: b.West, East: midLng}.Ring(), // NW
		BoundingBox{North: b.North, South: midLat, West: midLng, East: b.East}.Ring(), // NE
		BoundingBox{North: midLat, South: b.South, West: b.West, East: midLng}.Ring(), // SW
		BoundingBox{North: midLat, South: b.South, West: midLng, East: b.East}.Ring(), // SE
	}
}

// Ring returns the box as a 4-point rectangular ring, clockwise from the
// north-west corner.
func (b BoundingBox) Ring() Polygon {
	return Polygon{
		{Latitude: b.North, Longitude: b.West},
		{Latitude: b.North, Longitude: b.East},
		{Latitude: b.South, Longitude: b.East},
		{Latitude: b.South, Longitude: b.West},
	}
}

// Width returns the box's longitudinal extent in degrees.
func (b BoundingBox) Width() float64 {
	return b.East - b.West
}

// Height returns the box's latitudinal extent in degrees.
func (b BoundingBox) Height() float64 {
	return b.North - b.South
}

// Center returns the box's midpoint.
func (b BoundingBox) Center() Coordinate {
	return Coordinate{
		Latitude:  (b.North + b.South) / 2.0,
		Longitude: (b.West + b.East) / 2.0,
	}
}

// CoverRadiusMeters returns the radius of the circle centered on the box's
// midpoint that covers the whole box: the half-diagonal in meters, with a
// 50m floor so degenerate boxes remain queryable.
func (b BoundingBox) CoverRadiusMeters() float64 {
	center := b.Center()
	latDelta := b.Height() / 2.0
	lngDelta := b.Width() / 2.0
	mPerDegLng := metersPerDegreeLat * math.Cos(center.Latitude*math.Pi/180.0)
	r := math.Sqrt(math.Pow(latDelta*metersPerDegreeLat, 2) + math.Pow(lngDelta*mPerDegLng, 2))
	return math.Max(r, minCoverRadiusMeters)
}

// selfIntersects reports whether any two non-adjacent edges of the closed
// ring cross. O(n^2), fine for the small rings this service handles.
func (p Polygon) selfIntersects() bool {
	ring := p.Closed()
	n := len(ring) - 1 // number of edges
	if n < 4 {
		return false // a triangle cannot self-intersect
	}
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			// Skip adjacent edges, including the wrap-around pair.
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports proper intersection of segments ab and cd.
func segmentsCross(a, b, c, d Coordinate) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// cross returns the z-component of (b-a) x (p-a) in lng/lat space.
func cross(a, b, p Coordinate) float64 {
	return (b.Longitude-a.Longitude)*(p.Latitude-a.Latitude) -
		(b.Latitude-a.Latitude)*(p.Longitude-a.Longitude)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

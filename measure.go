/*
Copyright © 2026 the overlay authors.
This file is part of overlay.

overlay is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

overlay is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with overlay.  If not, see <http://www.gnu.org/licenses/>.
*/

package overlay

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// A Measurer calculates the area (m²) and perimeter (m) of a geometry
// whose coordinates are longitude and latitude in degrees.
type Measurer interface {
	Measure(g geom.Polygonal) (area, perimeter float64)
}

// GeodesicMeasurer measures geometries on the earth's surface.
// Rings are grouped into shells and holes by Polygons, so polygons whose
// outer boundaries and holes are stored in arbitrary order (as produced
// by polygon clipping) are measured correctly.
type GeodesicMeasurer struct{}

// Measure implements Measurer.
func (GeodesicMeasurer) Measure(g geom.Polygonal) (area, perimeter float64) {
	for _, p := range Polygons(g) {
		for i, r := range p {
			a := math.Abs(geo.Area(r))
			if i > 0 {
				a = -a
			}
			area += a
			perimeter += geo.Length(r)
		}
	}
	return math.Abs(area), perimeter
}

// Polygons groups the rings of g into polygons made of a
// counter-clockwise shell followed by its clockwise holes. A ring is a
// hole when it lies inside an odd number of the other rings; it belongs
// to the innermost of them. Rings with fewer than three points are
// dropped.
func Polygons(g geom.Polygonal) orb.MultiPolygon {
	if g == nil {
		return nil
	}
	var rings []orb.Ring
	for _, p := range g.Polygons() {
		for _, r := range p {
			if len(r) < 3 {
				continue
			}
			rings = append(rings, toRing(r))
		}
	}

	// within[i] lists the rings that contain ring i.
	within := make([][]int, len(rings))
	for i := range rings {
		for j := range rings {
			if i != j && inside(rings[i], rings[j]) {
				within[i] = append(within[i], j)
			}
		}
	}

	var mp orb.MultiPolygon
	shell := make(map[int]int) // ring index to polygon index
	for i, r := range rings {
		if len(within[i])%2 == 1 {
			continue
		}
		if r.Orientation() != orb.CCW {
			r.Reverse()
		}
		shell[i] = len(mp)
		mp = append(mp, orb.Polygon{r})
	}
	for i, r := range rings {
		d := len(within[i])
		if d%2 == 0 {
			continue
		}
		if r.Orientation() != orb.CW {
			r.Reverse()
		}
		parent := -1
		for _, j := range within[i] {
			if len(within[j]) == d-1 {
				parent = j
				break
			}
		}
		if k, ok := shell[parent]; ok {
			mp[k] = append(mp[k], r)
			continue
		}
		// Overlapping rather than nested rings.
		r.Reverse()
		mp = append(mp, orb.Polygon{r})
	}
	return mp
}

// toRing converts a geom ring to a closed orb ring.
func toRing(r []geom.Point) orb.Ring {
	o := make(orb.Ring, len(r), len(r)+1)
	for i, p := range r {
		o[i] = orb.Point{p.X, p.Y}
	}
	if !o.Closed() {
		o = append(o, o[0])
	}
	return o
}

// inside reports whether ring r lies inside ring other. It is decided by
// the first vertex of r, or failing that the first edge midpoint, that is
// not on the boundary of other, so rings that only touch are not nested.
func inside(r, other orb.Ring) bool {
	for _, p := range r {
		if !onRing(other, p) {
			return planar.RingContains(other, p)
		}
	}
	for i := 0; i+1 < len(r); i++ {
		p := orb.Point{(r[i][0] + r[i+1][0]) / 2, (r[i][1] + r[i+1][1]) / 2}
		if !onRing(other, p) {
			return planar.RingContains(other, p)
		}
	}
	return false
}

// onRing reports whether p lies on an edge of the closed ring r.
func onRing(r orb.Ring, p orb.Point) bool {
	q := geom.Point{X: p[0], Y: p[1]}
	for i := 0; i+1 < len(r); i++ {
		a := geom.Point{X: r[i][0], Y: r[i][1]}
		b := geom.Point{X: r[i+1][0], Y: r[i+1][1]}
		if orientation(a, b, q) == 0 && onSegment(a, q, b) {
			return true
		}
	}
	return false
}

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
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// isEmpty reports whether g has no ring with at least three points.
func isEmpty(g geom.Polygonal) bool {
	if g == nil {
		return true
	}
	for _, p := range g.Polygons() {
		for _, r := range p {
			if len(r) >= 3 {
				return false
			}
		}
	}
	return true
}

// transformPolygonal transforms g with t. A nil t returns g unchanged.
func transformPolygonal(g geom.Polygonal, t proj.Transformer) (geom.Polygonal, error) {
	if t == nil {
		return g, nil
	}
	gg, err := g.Transform(t)
	if err != nil {
		return nil, err
	}
	p, ok := gg.(geom.Polygonal)
	if !ok {
		return nil, fmt.Errorf("overlay: transform returned %T, not a polygon", gg)
	}
	if b := p.Bounds(); !isEmpty(p) && (math.IsNaN(b.Min.X) || math.IsNaN(b.Min.Y) ||
		math.IsNaN(b.Max.X) || math.IsNaN(b.Max.Y) ||
		math.IsInf(b.Min.X, 0) || math.IsInf(b.Min.Y, 0) ||
		math.IsInf(b.Max.X, 0) || math.IsInf(b.Max.Y, 0)) {
		return nil, fmt.Errorf("overlay: transform produced non-finite coordinates")
	}
	return p, nil
}

// intersects reports whether a and b share at least one point.
func intersects(a, b geom.Polygonal) bool {
	if !a.Bounds().Overlaps(b.Bounds()) {
		return false
	}
	pa, pb := a.Polygons(), b.Polygons()
	for _, p1 := range pa {
		for _, r1 := range p1 {
			for _, p2 := range pb {
				for _, r2 := range p2 {
					if ringsCross(r1, r2) {
						return true
					}
				}
			}
		}
	}
	// No edges cross, so either one contains the other or they are
	// disjoint.
	return vertexWithin(pa, b) || vertexWithin(pb, a)
}

// vertexWithin reports whether the first vertex of any ring in ps lies
// inside or on the edge of g.
func vertexWithin(ps []geom.Polygon, g geom.Polygonal) bool {
	for _, p := range ps {
		for _, r := range p {
			if len(r) == 0 {
				continue
			}
			if r[0].Within(g) != geom.Outside {
				return true
			}
		}
	}
	return false
}

// ringsCross reports whether any edge of r1 touches any edge of r2.
// Rings are treated as closed whether or not the last point repeats the
// first.
func ringsCross(r1, r2 []geom.Point) bool {
	n1, n2 := len(r1), len(r2)
	if n1 < 2 || n2 < 2 {
		return false
	}
	for i := 0; i < n1; i++ {
		a, b := r1[i], r1[(i+1)%n1]
		for j := 0; j < n2; j++ {
			if segmentsIntersect(a, b, r2[j], r2[(j+1)%n2]) {
				return true
			}
		}
	}
	return false
}

// segmentsIntersect reports whether segments ab and cd share a point.
func segmentsIntersect(a, b, c, d geom.Point) bool {
	o1 := orientation(a, b, c)
	o2 := orientation(a, b, d)
	o3 := orientation(c, d, a)
	o4 := orientation(c, d, b)
	if o1 != o2 && o3 != o4 {
		return true
	}
	return (o1 == 0 && onSegment(a, c, b)) ||
		(o2 == 0 && onSegment(a, d, b)) ||
		(o3 == 0 && onSegment(c, a, d)) ||
		(o4 == 0 && onSegment(c, b, d))
}

// orientation returns 0 if p, q and r are collinear, 1 if they turn
// clockwise and 2 if counter-clockwise.
func orientation(p, q, r geom.Point) int {
	v := (q.Y-p.Y)*(r.X-q.X) - (q.X-p.X)*(r.Y-q.Y)
	switch {
	case v > 0:
		return 1
	case v < 0:
		return 2
	}
	return 0
}

// onSegment reports whether q lies within the bounding box of pr. It is
// only meaningful when p, q and r are collinear.
func onSegment(p, q, r geom.Point) bool {
	return q.X <= max(p.X, r.X) && q.X >= min(p.X, r.X) &&
		q.Y <= max(p.Y, r.Y) && q.Y >= min(p.Y, r.Y)
}

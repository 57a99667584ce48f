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
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
)

// indexEntry is a feature geometry stored in the rtree.
type indexEntry struct {
	geom.Polygonal
	id FeatureID
}

// Index is a spatial index over the geometries of a feature set,
// optionally transformed into another reference system. It is read-only
// once built and safe for concurrent queries.
type Index struct {
	tree  *rtree.Rtree
	geoms map[FeatureID]geom.Polygonal

	// selection, if not nil, restricts query results.
	selection map[FeatureID]bool

	// Failed holds the ids of features whose geometry could not be
	// transformed. They are not indexed.
	Failed []FeatureID

	// Empty holds the ids of features with null or empty geometry.
	// They are not indexed.
	Empty []FeatureID
}

// NewIndex builds an index over features. If t is not nil, every
// geometry is transformed with t before it is indexed, and the
// transformed geometry is what Geometry returns. If selection is not
// nil, Query only returns ids in it.
func NewIndex(features []*Feature, t proj.Transformer, selection map[FeatureID]bool) *Index {
	idx := &Index{
		tree:      rtree.NewTree(25, 50),
		geoms:     make(map[FeatureID]geom.Polygonal, len(features)),
		selection: selection,
	}
	for _, f := range features {
		if isEmpty(f.Geom) {
			idx.Empty = append(idx.Empty, f.ID)
			continue
		}
		g, err := transformPolygonal(f.Geom, t)
		if err != nil || isEmpty(g) {
			idx.Failed = append(idx.Failed, f.ID)
			continue
		}
		idx.geoms[f.ID] = g
		idx.tree.Insert(&indexEntry{Polygonal: g, id: f.ID})
	}
	return idx
}

// Len returns the number of indexed features.
func (idx *Index) Len() int { return len(idx.geoms) }

// Query returns, in ascending order, the ids of the indexed features
// whose bounds intersect b.
func (idx *Index) Query(b *geom.Bounds) []FeatureID {
	var ids []FeatureID
	for _, gI := range idx.tree.SearchIntersect(b) {
		e := gI.(*indexEntry)
		if idx.selection != nil && !idx.selection[e.id] {
			continue
		}
		ids = append(ids, e.id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Geometry returns the indexed geometry of feature id.
func (idx *Index) Geometry(id FeatureID) (geom.Polygonal, bool) {
	g, ok := idx.geoms[id]
	return g, ok
}

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
	"sort"

	"github.com/ctessum/geom"
)

// FeatureID identifies a feature within its feature set.
type FeatureID int64

// Feature is a polygonal feature. Geom may be nil.
type Feature struct {
	ID         FeatureID
	Geom       geom.Polygonal
	Attributes map[string]float64
}

// GeometryType is the geometry classification of a feature set.
type GeometryType int

// Geometry types.
const (
	UnknownGeometry GeometryType = iota
	PointGeometry
	LineGeometry
	PolygonGeometry
)

func (t GeometryType) String() string {
	switch t {
	case PointGeometry:
		return "point"
	case LineGeometry:
		return "line"
	case PolygonGeometry:
		return "polygon"
	default:
		return "unknown"
	}
}

// Layer is the view of a feature set that the overlay engine needs.
type Layer interface {
	Name() string
	CRS() *CRS
	Valid() bool
	GeometryType() GeometryType

	// Features returns all features in iteration order.
	Features() []*Feature

	// SelectedFeatures returns the selected features in iteration order.
	SelectedFeatures() []*Feature

	SelectedCount() int

	// Feature returns the feature with the given id.
	Feature(id FeatureID) (*Feature, bool)
}

// FeatureSet is an in-memory Layer. It is also the container the
// overlay engine produces its output in.
type FeatureSet struct {
	name     string
	crs      *CRS
	geomType GeometryType

	// Fields is the attribute schema of the features.
	Fields []Field

	features []*Feature
	byID     map[FeatureID]int
	selected map[FeatureID]bool
	extent   *geom.Bounds
}

// NewFeatureSet creates an empty polygon feature set.
func NewFeatureSet(name string, crs *CRS) *FeatureSet {
	return &FeatureSet{
		name:     name,
		crs:      crs,
		geomType: PolygonGeometry,
		byID:     make(map[FeatureID]int),
		selected: make(map[FeatureID]bool),
	}
}

// SetGeometryType overrides the declared geometry type of the set.
func (fs *FeatureSet) SetGeometryType(t GeometryType) { fs.geomType = t }

func (fs *FeatureSet) Name() string               { return fs.name }
func (fs *FeatureSet) CRS() *CRS                  { return fs.crs }
func (fs *FeatureSet) GeometryType() GeometryType { return fs.geomType }
func (fs *FeatureSet) Features() []*Feature       { return fs.features }
func (fs *FeatureSet) Len() int                   { return len(fs.features) }
func (fs *FeatureSet) SelectedCount() int         { return len(fs.selected) }

// Valid reports whether the set is usable: it must have a declared
// geometry type and no duplicate feature ids.
func (fs *FeatureSet) Valid() bool {
	return fs != nil && fs.geomType != UnknownGeometry && len(fs.byID) == len(fs.features)
}

// Add appends features to the set. Features with an id already in the
// set make the set invalid.
func (fs *FeatureSet) Add(features ...*Feature) {
	for _, f := range features {
		fs.byID[f.ID] = len(fs.features)
		fs.features = append(fs.features, f)
	}
}

// Feature returns the feature with the given id.
func (fs *FeatureSet) Feature(id FeatureID) (*Feature, bool) {
	i, ok := fs.byID[id]
	if !ok {
		return nil, false
	}
	return fs.features[i], true
}

// Select adds ids to the selection. Ids not in the set are an error.
func (fs *FeatureSet) Select(ids ...FeatureID) error {
	for _, id := range ids {
		if _, ok := fs.byID[id]; !ok {
			return fmt.Errorf("overlay: feature %d is not in %s", id, fs.name)
		}
		fs.selected[id] = true
	}
	return nil
}

// ClearSelection removes all ids from the selection.
func (fs *FeatureSet) ClearSelection() {
	fs.selected = make(map[FeatureID]bool)
}

// SelectedIDs returns the selected ids in ascending order.
func (fs *FeatureSet) SelectedIDs() []FeatureID {
	ids := make([]FeatureID, 0, len(fs.selected))
	for id := range fs.selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SelectedFeatures returns the selected features in iteration order.
func (fs *FeatureSet) SelectedFeatures() []*Feature {
	var o []*Feature
	for _, f := range fs.features {
		if fs.selected[f.ID] {
			o = append(o, f)
		}
	}
	return o
}

// UpdateExtent recomputes the spatial extent of the set.
func (fs *FeatureSet) UpdateExtent() {
	b := geom.NewBounds()
	for _, f := range fs.features {
		if f.Geom == nil || isEmpty(f.Geom) {
			continue
		}
		b.Extend(f.Geom.Bounds())
	}
	fs.extent = b
}

// Extent returns the extent computed by the last call to UpdateExtent.
// It is nil if UpdateExtent has never been called and empty if the set
// holds no geometry.
func (fs *FeatureSet) Extent() *geom.Bounds { return fs.extent }

// Validate checks that l can take part in an overlay. set names the
// role of the layer in error messages.
func Validate(l Layer, set string) error {
	if l == nil || !l.Valid() {
		return newError(NotPolygonal, set, fmt.Errorf("invalid feature set"))
	}
	if t := l.GeometryType(); t != PolygonGeometry {
		return newError(NotPolygonal, set, fmt.Errorf("%s has %s geometry", l.Name(), t))
	}
	if !l.CRS().Valid() {
		return newError(InvalidCRS, set, fmt.Errorf("%s has no reference system", l.Name()))
	}
	return nil
}

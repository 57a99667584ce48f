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

	"github.com/ctessum/geom"
)

// FieldType is the type of an attribute field.
type FieldType int

// Field types.
const (
	Float64 FieldType = iota
)

// Field describes an attribute column.
type Field struct {
	Name string
	Type FieldType
}

// Names of the output attributes.
const (
	AreaM2   = "area_m2"
	AreaHa   = "area_ha"
	PerimM   = "perim_m"
	PercOver = "perc_over"
)

// OutputFields is the fixed schema of the output set.
var OutputFields = []Field{
	{Name: AreaM2, Type: Float64},
	{Name: AreaHa, Type: Float64},
	{Name: PerimM, Type: Float64},
	{Name: PercOver, Type: Float64},
}

// OutputName is the default name of the output set.
const OutputName = "intersection"

// Record is one intersection of a BASE feature with an OVERLAY feature.
type Record struct {
	// Geom is the intersection in BASE's reference system.
	Geom geom.Polygon

	BaseID, OverlayID FeatureID

	AreaM2, AreaHa, PerimM, PercOver float64
}

// newRecord calculates the derived attributes of an intersection.
func newRecord(g geom.Polygon, baseID, overlayID FeatureID, areaM2, perimM, baseAreaM2 float64) *Record {
	return &Record{
		Geom:      g,
		BaseID:    baseID,
		OverlayID: overlayID,
		AreaM2:    areaM2,
		AreaHa:    areaM2 / 10000,
		PerimM:    perimM,
		PercOver:  100 * areaM2 / baseAreaM2,
	}
}

// Attributes returns the record's values keyed by output field name.
func (r *Record) Attributes() map[string]float64 {
	return map[string]float64{
		AreaM2:   r.AreaM2,
		AreaHa:   r.AreaHa,
		PerimM:   r.PerimM,
		PercOver: r.PercOver,
	}
}

// NewOutputSet creates an empty output set in reference system crs.
func NewOutputSet(name string, crs *CRS) (*FeatureSet, error) {
	if !crs.Valid() {
		return nil, newError(EngineFailure, "", fmt.Errorf("cannot create %s without a reference system", name))
	}
	fs := NewFeatureSet(name, crs)
	fs.Fields = append([]Field(nil), OutputFields...)
	return fs, nil
}

// appendRecords adds records to fs as new features, numbered from the
// current length of fs, and recomputes the extent.
func appendRecords(fs *FeatureSet, records []*Record) {
	features := make([]*Feature, len(records))
	for i, r := range records {
		features[i] = &Feature{
			ID:         FeatureID(fs.Len() + i),
			Geom:       r.Geom,
			Attributes: r.Attributes(),
		}
	}
	fs.Add(features...)
	fs.UpdateExtent()
}

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

package overlayutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spatialmodel/overlay"
	"github.com/spf13/cast"
)

// File formats.
const (
	formatShapefile = "shapefile"
	formatGeoJSON   = "geojson"
)

// fileFormat returns the format of a layer file from its extension.
func fileFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return formatShapefile, nil
	case ".geojson", ".json":
		return formatGeoJSON, nil
	default:
		return "", fmt.Errorf("overlay: unsupported file type %q; use .shp, .geojson or .json", filepath.Ext(path))
	}
}

// ReadLayer reads the feature set in path. If projDef is not empty it
// overrides the reference system stored with the file.
func ReadLayer(path, projDef string) (*overlay.FeatureSet, error) {
	format, err := fileFormat(path)
	if err != nil {
		return nil, err
	}
	var crs *overlay.CRS
	if projDef != "" {
		if crs, err = overlay.ParseCRS(projDef); err != nil {
			return nil, err
		}
	}
	if format == formatShapefile {
		return readShapefile(path, crs)
	}
	return readGeoJSON(path, crs)
}

// readShapefile reads a shapefile. Feature ids are record numbers
// starting at zero. Numeric attributes are kept; others are dropped.
// If crs is nil, the reference system is read from the .prj file and
// is left undefined if there is none.
func readShapefile(path string, crs *overlay.CRS) (*overlay.FeatureSet, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("overlay: opening %s: %v", path, err)
	}
	defer d.Close()

	if crs == nil {
		crs = shapefileCRS(d, path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	fs := overlay.NewFeatureSet(name, crs)
	fs.SetGeometryType(shapeGeometryType(d.GeometryType))

	var fieldNames []string
	for _, f := range d.Fields() {
		fieldNames = append(fieldNames, f.String())
		fs.Fields = append(fs.Fields, overlay.Field{Name: f.String(), Type: overlay.Float64})
	}

	for id := overlay.FeatureID(0); ; id++ {
		g, fields, more := d.DecodeRowFields(fieldNames...)
		if !more {
			break
		}
		if err := d.Error(); err != nil {
			return nil, fmt.Errorf("overlay: reading %s record %d: %v", path, id, err)
		}
		f := &overlay.Feature{ID: id, Attributes: make(map[string]float64)}
		if p, ok := g.(geom.Polygonal); ok {
			f.Geom = p
		}
		for k, v := range fields {
			if x, err := cast.ToFloat64E(strings.TrimSpace(v)); err == nil {
				f.Attributes[k] = x
			}
		}
		fs.Add(f)
	}
	fs.UpdateExtent()
	return fs, nil
}

// shapefileCRS returns the reference system in the .prj file that
// accompanies path, or nil if there is none or it cannot be parsed.
func shapefileCRS(d *shp.Decoder, path string) *overlay.CRS {
	sr, err := d.SR()
	if err != nil {
		return nil
	}
	def, err := os.ReadFile(strings.TrimSuffix(path, filepath.Ext(path)) + ".prj")
	if err != nil {
		return nil
	}
	return overlay.NewCRS(sr, strings.TrimSpace(string(def)))
}

func shapeGeometryType(t goshp.ShapeType) overlay.GeometryType {
	switch t {
	case goshp.POLYGON, goshp.POLYGONM, goshp.POLYGONZ:
		return overlay.PolygonGeometry
	case goshp.POLYLINE, goshp.POLYLINEM, goshp.POLYLINEZ:
		return overlay.LineGeometry
	case goshp.POINT, goshp.POINTM, goshp.POINTZ,
		goshp.MULTIPOINT, goshp.MULTIPOINTM, goshp.MULTIPOINTZ:
		return overlay.PointGeometry
	default:
		return overlay.UnknownGeometry
	}
}

// readGeoJSON reads a GeoJSON feature collection. Feature ids are
// positions in the collection. If crs is nil, the collection's named
// "crs" member is used if present and EPSG:4326 otherwise.
func readGeoJSON(path string, crs *overlay.CRS) (*overlay.FeatureSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("overlay: opening %s: %v", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("overlay: reading %s: %v", path, err)
	}
	if crs == nil {
		if crs, err = overlay.ParseCRS(geoJSONCRSName(fc)); err != nil {
			return nil, err
		}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	fs := overlay.NewFeatureSet(name, crs)
	fs.SetGeometryType(overlay.UnknownGeometry)
	fields := make(map[string]bool)
	for i, feat := range fc.Features {
		f := &overlay.Feature{ID: overlay.FeatureID(i), Attributes: make(map[string]float64)}
		if feat.Geometry != nil {
			t, g := fromOrb(feat.Geometry)
			if fs.GeometryType() == overlay.UnknownGeometry {
				fs.SetGeometryType(t)
			} else if t != fs.GeometryType() {
				fs.SetGeometryType(overlay.UnknownGeometry)
				return fs, nil
			}
			f.Geom = g
		}
		for k, v := range feat.Properties {
			if x, err := cast.ToFloat64E(v); err == nil {
				f.Attributes[k] = x
				fields[k] = true
			}
		}
		fs.Add(f)
	}
	if fs.GeometryType() == overlay.UnknownGeometry && allNull(fs) {
		// Nothing to intersect, but not an error.
		fs.SetGeometryType(overlay.PolygonGeometry)
	}
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fs.Fields = append(fs.Fields, overlay.Field{Name: k, Type: overlay.Float64})
	}
	fs.UpdateExtent()
	return fs, nil
}

func allNull(fs *overlay.FeatureSet) bool {
	for _, f := range fs.Features() {
		if f.Geom != nil {
			return false
		}
	}
	return true
}

// geoJSONCRSName returns the name in a legacy "crs" member of fc.
func geoJSONCRSName(fc *geojson.FeatureCollection) string {
	crs, ok := fc.ExtraMembers["crs"].(map[string]interface{})
	if !ok {
		return overlay.GeodeticDef
	}
	props, ok := crs["properties"].(map[string]interface{})
	if !ok {
		return overlay.GeodeticDef
	}
	name := cast.ToString(props["name"])
	// urn:ogc:def:crs:EPSG::3857 and similar.
	if i := strings.LastIndex(name, "EPSG::"); i >= 0 {
		name = "EPSG:" + name[i+len("EPSG::"):]
	}
	if strings.HasSuffix(name, "CRS84") || name == "" {
		return overlay.GeodeticDef
	}
	return name
}

// fromOrb converts an orb geometry. Only polygons and multipolygons
// produce a geometry.
func fromOrb(g orb.Geometry) (overlay.GeometryType, geom.Polygonal) {
	switch g := g.(type) {
	case orb.Polygon:
		return overlay.PolygonGeometry, fromOrbPolygon(g)
	case orb.MultiPolygon:
		mp := make(geom.MultiPolygon, len(g))
		for i, p := range g {
			mp[i] = fromOrbPolygon(p)
		}
		return overlay.PolygonGeometry, mp
	case orb.Point, orb.MultiPoint:
		return overlay.PointGeometry, nil
	case orb.LineString, orb.MultiLineString:
		return overlay.LineGeometry, nil
	default:
		return overlay.UnknownGeometry, nil
	}
}

func fromOrbPolygon(p orb.Polygon) geom.Polygon {
	o := make(geom.Polygon, len(p))
	for i, r := range p {
		o[i] = make(geom.Path, len(r))
		for j, pt := range r {
			o[i][j] = geom.Point{X: pt[0], Y: pt[1]}
		}
	}
	return o
}

// toOrb converts a polygonal geometry whose shells and holes may be
// stored in any order into GeoJSON-style polygons, where each polygon
// is a shell followed by its holes.
func toOrb(g geom.Polygonal) orb.Geometry {
	mp := overlay.Polygons(g)
	if len(mp) == 1 {
		return mp[0]
	}
	return mp
}

// WriteLayer writes fs to path as a shapefile or GeoJSON file,
// depending on the extension of path.
func WriteLayer(path string, fs *overlay.FeatureSet) error {
	format, err := fileFormat(path)
	if err != nil {
		return err
	}
	if format == formatShapefile {
		return writeShapefile(path, fs)
	}
	return writeGeoJSON(path, fs)
}

// writeShapefile writes fs as a polygon shapefile with a .prj file.
func writeShapefile(path string, fs *overlay.FeatureSet) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(base + ext)
	}
	fields := make([]goshp.Field, len(fs.Fields))
	for i, f := range fs.Fields {
		fields[i] = goshp.FloatField(f.Name, 24, 8)
	}
	e, err := shp.NewEncoderFromFields(base+".shp", goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("overlay: creating %s: %v", path, err)
	}
	for _, f := range fs.Features() {
		vals := make([]interface{}, len(fs.Fields))
		for i, fld := range fs.Fields {
			vals[i] = f.Attributes[fld.Name]
		}
		if err := e.EncodeFields(flatten(f.Geom), vals...); err != nil {
			e.Close()
			return fmt.Errorf("overlay: writing %s: %v", path, err)
		}
	}
	e.Close()
	if def := fs.CRS().Definition(); def != "" {
		if err := os.WriteFile(base+".prj", []byte(def), 0644); err != nil {
			return fmt.Errorf("overlay: writing projection for %s: %v", path, err)
		}
	}
	return nil
}

// flatten returns the rings of g as a single polygon, which is what the
// shapefile encoder accepts.
func flatten(g geom.Polygonal) geom.Polygon {
	if g == nil {
		return nil
	}
	if p, ok := g.(geom.Polygon); ok {
		return p
	}
	var o geom.Polygon
	for _, p := range g.Polygons() {
		o = append(o, p...)
	}
	return o
}

// writeGeoJSON writes fs as a GeoJSON feature collection. If fs is not
// in EPSG:4326, its reference system is recorded in a "crs" member.
func writeGeoJSON(path string, fs *overlay.FeatureSet) error {
	fc := geojson.NewFeatureCollection()
	for _, f := range fs.Features() {
		var g orb.Geometry
		if !isNull(f.Geom) {
			g = toOrb(f.Geom)
		}
		feat := geojson.NewFeature(g)
		feat.ID = int64(f.ID)
		for _, fld := range fs.Fields {
			feat.Properties[fld.Name] = f.Attributes[fld.Name]
		}
		fc.Append(feat)
	}
	if !fs.CRS().Equal(overlay.Geodetic) {
		fc.ExtraMembers = geojson.Properties{
			"crs": map[string]interface{}{
				"type":       "name",
				"properties": map[string]interface{}{"name": fs.CRS().String()},
			},
		}
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("overlay: encoding %s: %v", path, err)
	}
	return os.WriteFile(path, b, 0644)
}

func isNull(g geom.Polygonal) bool {
	if g == nil {
		return true
	}
	for _, p := range g.Polygons() {
		if len(p) > 0 {
			return false
		}
	}
	return true
}

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
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/overlay/internal/hash"
)

func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}}
}

// newSet creates a polygon feature set whose feature ids are the
// positions of geoms.
func newSet(t *testing.T, name, crs string, geoms ...geom.Polygonal) *FeatureSet {
	t.Helper()
	c, err := ParseCRS(crs)
	if err != nil {
		t.Fatal(err)
	}
	fs := NewFeatureSet(name, c)
	for i, g := range geoms {
		fs.Add(&Feature{ID: FeatureID(i), Geom: g})
	}
	fs.UpdateExtent()
	return fs
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sameBounds(a, b *geom.Bounds) bool {
	return a.Min == b.Min && a.Max == b.Max
}

func different(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance*math.Max(math.Abs(a), math.Abs(b))
}

func TestIntersectUnitSquare(t *testing.T) {
	base := newSet(t, "base", "EPSG:3857", square(0, 0, 1, 1))
	over := newSet(t, "overlay", "EPSG:3857", square(0.5, 0.5, 1.5, 1.5))

	res, err := Intersect(context.Background(), base, over, Options{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 1 || res.Output.Len() != 1 {
		t.Fatalf("have %d records and %d output features, want 1", len(res.Records), res.Output.Len())
	}
	r := res.Records[0]
	if r.BaseID != 0 || r.OverlayID != 0 {
		t.Errorf("ids: have %d, %d; want 0, 0", r.BaseID, r.OverlayID)
	}
	wantBounds := &geom.Bounds{Min: geom.Point{X: 0.5, Y: 0.5}, Max: geom.Point{X: 1, Y: 1}}
	if b := r.Geom.Bounds(); !sameBounds(b, wantBounds) {
		t.Errorf("bounds: have %v, want %v", b, wantBounds)
	}
	if a := r.Geom.Area(); different(a, 0.25, 1e-9) {
		t.Errorf("planar area: have %g, want 0.25", a)
	}

	baseGeo, err := transformPolygonal(base.Features()[0].Geom, res.Reconciliation.BaseToGeodetic)
	if err != nil {
		t.Fatal(err)
	}
	baseArea, _ := GeodesicMeasurer{}.Measure(baseGeo)
	if different(r.PercOver, 100*r.AreaM2/baseArea, 1e-9) {
		t.Errorf("perc_over: have %g, want %g", r.PercOver, 100*r.AreaM2/baseArea)
	}
	if different(r.PercOver, 25, 1e-3) {
		t.Errorf("perc_over: have %g, want about 25", r.PercOver)
	}
	if different(r.AreaM2, 0.25, 1e-3) {
		t.Errorf("area_m2: have %g, want about 0.25", r.AreaM2)
	}
	if r.AreaHa != r.AreaM2/10000 {
		t.Errorf("area_ha: have %g, want %g", r.AreaHa, r.AreaM2/10000)
	}
	if different(r.PerimM, 2, 1e-3) {
		t.Errorf("perim_m: have %g, want about 2", r.PerimM)
	}

	f := res.Output.Features()[0]
	want := map[string]float64{AreaM2: r.AreaM2, AreaHa: r.AreaHa, PerimM: r.PerimM, PercOver: r.PercOver}
	if diff := pretty.Diff(f.Attributes, want); len(diff) != 0 {
		t.Errorf("attributes: %v", diff)
	}
	if !res.Output.CRS().Equal(base.CRS()) {
		t.Errorf("output reference system %s, want %s", res.Output.CRS(), base.CRS())
	}
	if diff := pretty.Diff(res.Output.Fields, OutputFields); len(diff) != 0 {
		t.Errorf("fields: %v", diff)
	}
	if !sameBounds(res.Output.Extent(), wantBounds) {
		t.Errorf("extent: have %v, want %v", res.Output.Extent(), wantBounds)
	}
}

func TestIntersectDisjoint(t *testing.T) {
	base := newSet(t, "base", "EPSG:4326", square(0, 0, 1, 1))
	over := newSet(t, "overlay", "EPSG:4326", square(5, 5, 6, 6))
	res, err := Intersect(context.Background(), base, over, Options{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	if res.Output.Len() != 0 {
		t.Errorf("have %d output features, want 0", res.Output.Len())
	}
	if res.Stats.NoCandidates != 1 {
		t.Errorf("NoCandidates: have %d, want 1", res.Stats.NoCandidates)
	}
}

func TestIntersectNullGeometry(t *testing.T) {
	base := newSet(t, "base", "EPSG:4326", nil, square(0, 0, 1, 1), geom.Polygon{})
	over := newSet(t, "overlay", "EPSG:4326", square(-1, -1, 2, 2), nil)
	res, err := Intersect(context.Background(), base, over, Options{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("have %d records, want 1", len(res.Records))
	}
	if res.Records[0].BaseID != 1 {
		t.Errorf("record from base feature %d, want 1", res.Records[0].BaseID)
	}
	if res.Stats.EmptyBase != 2 {
		t.Errorf("EmptyBase: have %d, want 2", res.Stats.EmptyBase)
	}
	if res.Stats.EmptyOverlay != 1 {
		t.Errorf("EmptyOverlay: have %d, want 1", res.Stats.EmptyOverlay)
	}
	if different(res.Records[0].PercOver, 100, 1e-9) {
		t.Errorf("perc_over: have %g, want 100", res.Records[0].PercOver)
	}
}

func TestIntersectEmptySelection(t *testing.T) {
	base := newSet(t, "base", "EPSG:4326", square(0, 0, 1, 1))
	over := newSet(t, "overlay", "EPSG:4326", square(0, 0, 1, 1))

	for _, test := range []struct {
		name string
		opts Options
		set  string
	}{
		{name: "base", opts: Options{OnlySelectedBase: true}, set: "base"},
		{name: "overlay", opts: Options{OnlySelectedOverlay: true}, set: "overlay"},
	} {
		t.Run(test.name, func(t *testing.T) {
			test.opts.Log = quietLog()
			res, err := Intersect(context.Background(), base, over, test.opts)
			if !errors.Is(err, ErrEmptySelection) {
				t.Fatalf("have error %v, want EmptySelection", err)
			}
			if res != nil {
				t.Errorf("have a result with an error")
			}
			var oe *Error
			if !errors.As(err, &oe) || oe.Set != test.set {
				t.Errorf("error set: have %v, want %s", err, test.set)
			}
		})
	}
}

func TestIntersectNotPolygonal(t *testing.T) {
	base := newSet(t, "base", "EPSG:4326", square(0, 0, 1, 1))
	over := newSet(t, "overlay", "EPSG:4326", square(0, 0, 1, 1))
	over.SetGeometryType(PointGeometry)
	_, err := Intersect(context.Background(), base, over, Options{Log: quietLog()})
	if !errors.Is(err, ErrNotPolygonal) {
		t.Errorf("have error %v, want NotPolygonal", err)
	}
	_, err = Intersect(context.Background(), nil, over, Options{Log: quietLog()})
	if !errors.Is(err, ErrNotPolygonal) {
		t.Errorf("nil base: have error %v, want NotPolygonal", err)
	}

	dup := newSet(t, "dup", "EPSG:4326", square(0, 0, 1, 1))
	dup.Add(&Feature{ID: 0, Geom: square(1, 1, 2, 2)})
	_, err = Intersect(context.Background(), dup, newSet(t, "overlay", "EPSG:4326"), Options{Log: quietLog()})
	if !errors.Is(err, ErrNotPolygonal) {
		t.Errorf("duplicate ids: have error %v, want NotPolygonal", err)
	}
}

func TestIntersectInvalidCRS(t *testing.T) {
	base := NewFeatureSet("base", nil)
	base.Add(&Feature{ID: 0, Geom: square(0, 0, 1, 1)})
	over := newSet(t, "overlay", "EPSG:4326", square(0, 0, 1, 1))
	_, err := Intersect(context.Background(), base, over, Options{Log: quietLog()})
	if !errors.Is(err, ErrInvalidCRS) {
		t.Errorf("have error %v, want InvalidCRS", err)
	}
	_, err = Intersect(context.Background(), over, base, Options{Log: quietLog()})
	var oe *Error
	if !errors.As(err, &oe) || oe.Kind != InvalidCRS || oe.Set != "overlay" {
		t.Errorf("have error %v, want InvalidCRS for overlay", err)
	}
}

// grid returns n×n unit squares starting at (x0, y0).
func grid(x0, y0 float64, n int) []geom.Polygonal {
	var o []geom.Polygonal
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			x, y := x0+float64(i), y0+float64(j)
			o = append(o, square(x, y, x+1, y+1))
		}
	}
	return o
}

func TestIntersectIdentityTransform(t *testing.T) {
	base := newSet(t, "base", "EPSG:4326", grid(-100, 40, 3)...)
	over := newSet(t, "overlay", "EPSG:4326", grid(-99.5, 40.25, 3)...)

	direct, err := Intersect(context.Background(), base, over, Options{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	if direct.Reconciliation.OverlayToBase != nil || direct.Reconciliation.BaseToGeodetic != nil {
		t.Fatal("transforms were built for identical reference systems")
	}
	viaIdentity, err := Intersect(context.Background(), base, over, Options{Log: quietLog(), AlwaysTransform: true})
	if err != nil {
		t.Fatal(err)
	}
	if viaIdentity.Reconciliation.OverlayToBase == nil {
		t.Fatal("no transform built with AlwaysTransform")
	}
	if len(direct.Records) == 0 || len(direct.Records) != len(viaIdentity.Records) {
		t.Fatalf("have %d and %d records", len(direct.Records), len(viaIdentity.Records))
	}
	for i, a := range direct.Records {
		b := viaIdentity.Records[i]
		if a.BaseID != b.BaseID || a.OverlayID != b.OverlayID {
			t.Errorf("record %d: ids (%d, %d) != (%d, %d)", i, a.BaseID, a.OverlayID, b.BaseID, b.OverlayID)
		}
		if different(a.AreaM2, b.AreaM2, 1e-9) || different(a.PerimM, b.PerimM, 1e-9) ||
			different(a.PercOver, b.PercOver, 1e-9) {
			t.Errorf("record %d: %+v != %+v", i, a, b)
		}
	}
}

func TestIntersectReprojected(t *testing.T) {
	base := newSet(t, "base", "EPSG:4326", square(0, 0, 1, 1))
	geodetic := newSet(t, "overlay", "EPSG:4326", square(0.5, 0, 1.5, 1))

	// The same square in web mercator.
	c, err := ParseCRS("EPSG:3857")
	if err != nil {
		t.Fatal(err)
	}
	t2m, err := Geodetic.NewTransform(c)
	if err != nil {
		t.Fatal(err)
	}
	g, err := transformPolygonal(square(0.5, 0, 1.5, 1), t2m)
	if err != nil {
		t.Fatal(err)
	}
	mercator := NewFeatureSet("overlay", c)
	mercator.Add(&Feature{ID: 0, Geom: g})

	want, err := Intersect(context.Background(), base, geodetic, Options{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	have, err := Intersect(context.Background(), base, mercator, Options{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	if have.Reconciliation.SameCRS {
		t.Error("reference systems reported as identical")
	}
	if len(have.Records) != 1 || len(want.Records) != 1 {
		t.Fatalf("have %d and %d records, want 1", len(have.Records), len(want.Records))
	}
	if different(have.Records[0].AreaM2, want.Records[0].AreaM2, 1e-6) {
		t.Errorf("area: have %g, want %g", have.Records[0].AreaM2, want.Records[0].AreaM2)
	}
	if different(have.Records[0].PercOver, 50, 1e-6) {
		t.Errorf("perc_over: have %g, want 50", have.Records[0].PercOver)
	}
}

func TestIntersectIdempotent(t *testing.T) {
	base := newSet(t, "base", "EPSG:4326", grid(10, 10, 4)...)
	over := newSet(t, "overlay", "EPSG:4326", grid(10.3, 10.6, 4)...)

	var keys []string
	var results []*Result
	for _, workers := range []int{1, 1, 4, 16} {
		res, err := Intersect(context.Background(), base, over, Options{Workers: workers, Log: quietLog()})
		if err != nil {
			t.Fatal(err)
		}
		items := make([]interface{}, len(res.Records))
		for i, r := range res.Records {
			items[i] = r
		}
		keys = append(keys, hash.Unordered(items...))
		if res.Fingerprint != keys[len(keys)-1] {
			t.Errorf("%d workers: fingerprint %s, want %s", workers, res.Fingerprint, keys[len(keys)-1])
		}
		results = append(results, res)
	}
	for i := 1; i < len(keys); i++ {
		if keys[i] != keys[0] {
			t.Errorf("run %d: output hash %s != %s", i, keys[i], keys[0])
		}
		if diff := pretty.Diff(results[i].Records, results[0].Records); len(diff) != 0 {
			t.Errorf("run %d: records differ: %v", i, diff)
		}
	}
}

func TestIntersectOrder(t *testing.T) {
	base := newSet(t, "base", "EPSG:4326", grid(0, 0, 3)...)
	over := newSet(t, "overlay", "EPSG:4326", grid(0.5, 0.5, 3)...)
	res, err := Intersect(context.Background(), base, over, Options{Workers: 8, Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(res.Records); i++ {
		a, b := res.Records[i-1], res.Records[i]
		if a.BaseID > b.BaseID || (a.BaseID == b.BaseID && a.OverlayID >= b.OverlayID) {
			t.Errorf("records %d and %d out of order: (%d, %d), (%d, %d)",
				i-1, i, a.BaseID, a.OverlayID, b.BaseID, b.OverlayID)
		}
	}
	for i, f := range res.Output.Features() {
		if f.ID != FeatureID(i) {
			t.Errorf("output feature %d has id %d", i, f.ID)
		}
	}
}

func TestIntersectCoverage(t *testing.T) {
	// Four quadrants that cover the base square exactly.
	base := newSet(t, "base", "EPSG:4326", square(20, 20, 22, 22))
	over := newSet(t, "overlay", "EPSG:4326", grid(20, 20, 2)...)
	res, err := Intersect(context.Background(), base, over, Options{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 4 {
		t.Fatalf("have %d records, want 4", len(res.Records))
	}
	var perc, area float64
	for _, r := range res.Records {
		perc += r.PercOver
		area += r.AreaM2
		if r.AreaHa != r.AreaM2/10000 {
			t.Errorf("area_ha %g != area_m2/10000 (%g)", r.AreaHa, r.AreaM2/10000)
		}
	}
	if different(perc, 100, 1e-9) {
		t.Errorf("perc_over sums to %g, want 100", perc)
	}
	baseArea, _ := GeodesicMeasurer{}.Measure(base.Features()[0].Geom)
	if different(area, baseArea, 1e-9) {
		t.Errorf("area sums to %g, want %g", area, baseArea)
	}
}

func TestIntersectTouching(t *testing.T) {
	base := newSet(t, "base", "EPSG:4326", square(0, 0, 1, 1))
	over := newSet(t, "overlay", "EPSG:4326", square(1, 0, 2, 1), square(1, 1, 2, 2))
	res, err := Intersect(context.Background(), base, over, Options{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 0 {
		t.Errorf("have %d records for squares sharing only an edge or corner, want 0", len(res.Records))
	}
}

func TestIntersectSelection(t *testing.T) {
	base := newSet(t, "base", "EPSG:4326", grid(0, 0, 2)...)
	over := newSet(t, "overlay", "EPSG:4326", grid(0, 0, 2)...)
	if err := base.Select(0, 3); err != nil {
		t.Fatal(err)
	}
	if err := over.Select(3); err != nil {
		t.Fatal(err)
	}

	type pair struct{ Base, Overlay FeatureID }
	pairs := func(res *Result) []pair {
		var o []pair
		for _, r := range res.Records {
			o = append(o, pair{r.BaseID, r.OverlayID})
		}
		return o
	}

	for _, test := range []struct {
		name string
		opts Options
		want []pair
	}{
		{
			name: "all",
			want: []pair{{0, 0}, {1, 1}, {2, 2}, {3, 3}},
		},
		{
			name: "base",
			opts: Options{OnlySelectedBase: true},
			want: []pair{{0, 0}, {3, 3}},
		},
		{
			name: "overlay",
			opts: Options{OnlySelectedOverlay: true},
			want: []pair{{3, 3}},
		},
		{
			name: "both",
			opts: Options{OnlySelectedBase: true, OnlySelectedOverlay: true},
			want: []pair{{3, 3}},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			test.opts.Log = quietLog()
			res, err := Intersect(context.Background(), base, over, test.opts)
			if err != nil {
				t.Fatal(err)
			}
			if diff := pretty.Diff(pairs(res), test.want); len(diff) != 0 {
				t.Error(diff)
			}
		})
	}
}

func TestIntersectCancelled(t *testing.T) {
	base := newSet(t, "base", "EPSG:4326", grid(0, 0, 3)...)
	over := newSet(t, "overlay", "EPSG:4326", grid(0.5, 0.5, 3)...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Intersect(ctx, base, over, Options{Log: quietLog()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("have error %v, want context.Canceled", err)
	}
	if res != nil {
		t.Error("have a result from a cancelled run")
	}
}

// scaledMeasurer multiplies the geodesic measurements by a factor.
type scaledMeasurer float64

func (s scaledMeasurer) Measure(g geom.Polygonal) (float64, float64) {
	a, p := GeodesicMeasurer{}.Measure(g)
	return a * float64(s), p * float64(s)
}

func TestIntersectMeasurer(t *testing.T) {
	base := newSet(t, "base", "EPSG:4326", square(0, 0, 1, 1))
	over := newSet(t, "overlay", "EPSG:4326", square(0.5, 0, 1.5, 1))
	a, err := Intersect(context.Background(), base, over, Options{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Intersect(context.Background(), base, over, Options{Log: quietLog(), Measurer: scaledMeasurer(2)})
	if err != nil {
		t.Fatal(err)
	}
	if different(b.Records[0].AreaM2, 2*a.Records[0].AreaM2, 1e-12) {
		t.Errorf("area: have %g, want %g", b.Records[0].AreaM2, 2*a.Records[0].AreaM2)
	}
	// perc_over is a ratio of two measurements and does not change.
	if different(b.Records[0].PercOver, a.Records[0].PercOver, 1e-12) {
		t.Errorf("perc_over: have %g, want %g", b.Records[0].PercOver, a.Records[0].PercOver)
	}
}

func TestIntersectBaseTouchingParts(t *testing.T) {
	// One BASE feature made of two squares that meet at a corner.
	parts := geom.Polygon{square(0, 0, 1, 1)[0], square(1, 1, 2, 2)[0]}
	base := newSet(t, "base", "EPSG:4326", parts)
	over := newSet(t, "overlay", "EPSG:4326", square(-1, -1, 3, 3))
	res, err := Intersect(context.Background(), base, over, Options{Log: quietLog()})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("have %d records, want 1; stats %+v", len(res.Records), res.Stats)
	}
	r := res.Records[0]
	want, _ := GeodesicMeasurer{}.Measure(geom.MultiPolygon{square(0, 0, 1, 1), square(1, 1, 2, 2)})
	if different(r.AreaM2, want, 1e-6) {
		t.Errorf("area_m2: have %g, want %g", r.AreaM2, want)
	}
	if different(r.PercOver, 100, 1e-6) {
		t.Errorf("perc_over: have %g, want 100", r.PercOver)
	}
}

// flatMeasurer reports zero area for geometries that start at or east
// of a longitude.
type flatMeasurer float64

func (m flatMeasurer) Measure(g geom.Polygonal) (float64, float64) {
	if g.Bounds().Min.X >= float64(m) {
		return 0, 1
	}
	return GeodesicMeasurer{}.Measure(g)
}

func TestEngineSkips(t *testing.T) {
	over := []*Feature{
		{ID: 0, Geom: square(0.5, 0.5, 1.5, 1.5)},
		{ID: 1, Geom: square(50.5, 10.5, 52, 12)},
		{ID: 2, Geom: square(71, 0, 73, 1)},
	}
	base := []*Feature{
		{ID: 0, Geom: square(0, 0, 1, 1)},
		{ID: 1, Geom: square(100, 0, 101, 1)},
		{ID: 2, Geom: geom.Polygon{{{X: 0, Y: 5}, {X: 1, Y: 5}, {X: 2, Y: 5}}}},
		{ID: 3, Geom: square(50, 10, 51, 11)},
		{ID: 4, Geom: square(70, 0, 72, 1)},
		{ID: 5, Geom: square(-50, -50, -49, -49)},
	}
	// The transform fails east of 100° and strictly between 50° and 51°,
	// so BASE feature 3 transforms but its intersection does not.
	toGeodetic := func(x, y float64) (float64, float64, error) {
		if x >= 100 || (x > 50 && x < 51) {
			return 0, 0, errors.New("out of range")
		}
		return x, y, nil
	}
	e := &engine{
		idx: NewIndex(over, nil, nil),
		rec: &Reconciliation{SameCRS: true, BaseToGeodetic: toGeodetic},
		m:   flatMeasurer(71),
		log: quietLog(),
	}
	for _, workers := range []int{1, 4} {
		records, stats, err := e.run(context.Background(), base, workers)
		if err != nil {
			t.Fatal(err)
		}
		want := Stats{
			BaseFeatures:                6,
			Candidates:                  3,
			Records:                     1,
			DegenerateBase:              1,
			BaseTransformFailed:         1,
			NoCandidates:                1,
			DegenerateIntersection:      1,
			IntersectionTransformFailed: 1,
		}
		if diff := pretty.Diff(stats, want); len(diff) != 0 {
			t.Errorf("%d workers: stats: %v", workers, diff)
		}
		if len(records) != 1 || records[0].BaseID != 0 || records[0].OverlayID != 0 {
			t.Fatalf("%d workers: have records %# v, want one from base 0 and overlay 0", workers, pretty.Formatter(records))
		}
		if different(records[0].PercOver, 25, 1e-3) {
			t.Errorf("%d workers: perc_over: have %g, want about 25", workers, records[0].PercOver)
		}
		if stats.SkippedBase() != 3 || stats.TransformFailures() != 2 {
			t.Errorf("%d workers: skipped base %d, transform failures %d; want 3 and 2",
				workers, stats.SkippedBase(), stats.TransformFailures())
		}
	}
}

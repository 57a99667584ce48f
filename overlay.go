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

// Package overlay calculates the intersection of two polygon feature
// sets. Each output feature is the intersection of one feature from the
// BASE set with one feature from the OVERLAY set, in BASE's reference
// system, annotated with its area, perimeter and the percentage of the
// BASE feature it covers. All measurements are made on the earth's
// surface so that they are comparable regardless of the projections of
// the inputs.
package overlay

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/overlay/internal/hash"
	"golang.org/x/sync/errgroup"
)

// Version is the version of the overlay engine.
const Version = "1.0.0"

// Options configure an overlay.
type Options struct {
	// OnlySelectedBase restricts the BASE features to the selection.
	OnlySelectedBase bool

	// OnlySelectedOverlay restricts the OVERLAY features to the selection.
	OnlySelectedOverlay bool

	// Workers is the number of BASE features processed concurrently.
	// Values < 1 use GOMAXPROCS.
	Workers int

	// Measurer measures areas and perimeters. The default is
	// GeodesicMeasurer.
	Measurer Measurer

	// AlwaysTransform builds coordinate transforms even when the
	// reference systems involved are identical.
	AlwaysTransform bool

	// OutputName is the name of the output set. The default is
	// OutputName.
	OutputName string

	// Log receives progress and diagnostic messages. The default is
	// the logrus standard logger.
	Log logrus.FieldLogger
}

// Stats counts what happened to the features of an overlay.
type Stats struct {
	// BaseFeatures is the number of BASE features considered.
	BaseFeatures int
	// OverlayIndexed is the number of OVERLAY features in the index.
	OverlayIndexed int
	// Candidates is the number of BASE/OVERLAY pairs whose bounds overlap.
	Candidates int
	// Records is the number of output records.
	Records int

	// BASE features skipped, by reason.
	EmptyBase           int
	DegenerateBase      int
	BaseTransformFailed int
	NoCandidates        int

	// OVERLAY features left out of the index, by reason.
	EmptyOverlay           int
	OverlayTransformFailed int

	// Candidates dropped, by reason.
	Disjoint                    int
	EmptyIntersection           int
	DegenerateIntersection      int
	IntersectionTransformFailed int
}

func (s *Stats) add(s2 Stats) {
	s.BaseFeatures += s2.BaseFeatures
	s.OverlayIndexed += s2.OverlayIndexed
	s.Candidates += s2.Candidates
	s.Records += s2.Records
	s.EmptyBase += s2.EmptyBase
	s.DegenerateBase += s2.DegenerateBase
	s.BaseTransformFailed += s2.BaseTransformFailed
	s.NoCandidates += s2.NoCandidates
	s.EmptyOverlay += s2.EmptyOverlay
	s.OverlayTransformFailed += s2.OverlayTransformFailed
	s.Disjoint += s2.Disjoint
	s.EmptyIntersection += s2.EmptyIntersection
	s.DegenerateIntersection += s2.DegenerateIntersection
	s.IntersectionTransformFailed += s2.IntersectionTransformFailed
}

// SkippedBase returns the number of BASE features that produced no
// records because they were skipped before any candidate was tested.
func (s Stats) SkippedBase() int {
	return s.EmptyBase + s.DegenerateBase + s.BaseTransformFailed + s.NoCandidates
}

// TransformFailures returns the number of geometries that could not
// be transformed.
func (s Stats) TransformFailures() int {
	return s.BaseTransformFailed + s.OverlayTransformFailed + s.IntersectionTransformFailed
}

// Fields returns s as logrus fields.
func (s Stats) Fields() logrus.Fields {
	return logrus.Fields{
		"base_features":       s.BaseFeatures,
		"overlay_indexed":     s.OverlayIndexed,
		"candidates":          s.Candidates,
		"records":             s.Records,
		"skipped_base":        s.SkippedBase(),
		"transform_failures":  s.TransformFailures(),
		"degenerate_base":     s.DegenerateBase,
		"degenerate_isect":    s.DegenerateIntersection,
		"empty_intersections": s.EmptyIntersection,
	}
}

// Result is the outcome of a successful overlay.
type Result struct {
	// Output holds one feature per record, in BASE's reference system.
	Output *FeatureSet

	// Records are the intersections in the same order as Output.
	Records []*Record

	Reconciliation *Reconciliation
	Stats          Stats

	// Fingerprint identifies the set of records independently of their
	// order, so that runs over the same inputs can be compared.
	Fingerprint string
}

// Intersect intersects every BASE feature with every OVERLAY feature
// it overlaps. Errors of kind NotPolygonal, InvalidCRS, EmptySelection
// and EngineFailure abort the run. Features that cannot be transformed
// or that have degenerate geometry are skipped and counted in the
// result's Stats. If ctx is cancelled, no result is returned.
func Intersect(ctx context.Context, base, overlay Layer, opts Options) (*Result, error) {
	start := time.Now()
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := opts.Measurer
	if m == nil {
		m = GeodesicMeasurer{}
	}
	name := opts.OutputName
	if name == "" {
		name = OutputName
	}

	if err := Validate(base, "base"); err != nil {
		return nil, err
	}
	if err := Validate(overlay, "overlay"); err != nil {
		return nil, err
	}
	if opts.OnlySelectedBase && base.SelectedCount() == 0 {
		return nil, newError(EmptySelection, "base", fmt.Errorf("no features selected in %s", base.Name()))
	}
	if opts.OnlySelectedOverlay && overlay.SelectedCount() == 0 {
		return nil, newError(EmptySelection, "overlay", fmt.Errorf("no features selected in %s", overlay.Name()))
	}

	rec, err := reconcile(base.CRS(), overlay.CRS(), opts.AlwaysTransform)
	if err != nil {
		return nil, err
	}
	out, err := NewOutputSet(name, base.CRS())
	if err != nil {
		return nil, err
	}

	baseFeatures := base.Features()
	if opts.OnlySelectedBase {
		baseFeatures = base.SelectedFeatures()
	}
	overlayFeatures := overlay.Features()
	var selection map[FeatureID]bool
	if opts.OnlySelectedOverlay {
		overlayFeatures = overlay.SelectedFeatures()
		selection = make(map[FeatureID]bool, len(overlayFeatures))
		for _, f := range overlayFeatures {
			selection[f.ID] = true
		}
	}
	idx := NewIndex(overlayFeatures, rec.OverlayToBase, selection)

	log.WithFields(logrus.Fields{
		"base":            base.Name(),
		"overlay":         overlay.Name(),
		"base_crs":        base.CRS().String(),
		"overlay_crs":     overlay.CRS().String(),
		"same_crs":        rec.SameCRS,
		"base_features":   len(baseFeatures),
		"overlay_indexed": idx.Len(),
	}).Debug("overlay: starting")

	e := &engine{idx: idx, rec: rec, m: m, log: log}
	records, stats, err := e.run(ctx, baseFeatures, opts.Workers)
	if err != nil {
		return nil, err
	}
	stats.OverlayIndexed = idx.Len()
	stats.EmptyOverlay = len(idx.Empty)
	stats.OverlayTransformFailed = len(idx.Failed)

	appendRecords(out, records)
	fp := fingerprint(records)

	log.WithFields(stats.Fields()).WithFields(logrus.Fields{
		"duration":    time.Since(start),
		"fingerprint": fp,
	}).Info("overlay: finished")

	return &Result{
		Output:         out,
		Records:        records,
		Reconciliation: rec,
		Stats:          stats,
		Fingerprint:    fp,
	}, nil
}

// fingerprint hashes records without regard to their order.
func fingerprint(records []*Record) string {
	items := make([]interface{}, len(records))
	for i, r := range records {
		items[i] = r
	}
	return hash.Unordered(items...)
}

// engine holds the read-only state shared by the BASE feature workers.
type engine struct {
	idx *Index
	rec *Reconciliation
	m   Measurer
	log logrus.FieldLogger
}

// run processes the BASE features with up to workers goroutines.
// Each feature's records are kept together and the results are
// concatenated in BASE order, so the output does not depend on
// scheduling.
func (e *engine) run(ctx context.Context, features []*Feature, workers int) ([]*Record, Stats, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	perFeature := make([][]*Record, len(features))
	perStats := make([]Stats, len(features))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range features {
		if gctx.Err() != nil {
			break
		}
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perFeature[i], perStats[i] = e.feature(f)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, Stats{}, fmt.Errorf("overlay: cancelled: %w", err)
	}

	var stats Stats
	n := 0
	for i := range features {
		stats.add(perStats[i])
		n += len(perFeature[i])
	}
	records := make([]*Record, 0, n)
	for _, r := range perFeature {
		records = append(records, r...)
	}
	return records, stats, nil
}

// feature intersects one BASE feature with its OVERLAY candidates.
func (e *engine) feature(fa *Feature) ([]*Record, Stats) {
	s := Stats{BaseFeatures: 1}
	flog := e.log.WithField("base_id", fa.ID)

	if isEmpty(fa.Geom) {
		s.EmptyBase++
		flog.Debug("overlay: skipping base feature with empty geometry")
		return nil, s
	}
	gaGeodetic, err := transformPolygonal(fa.Geom, e.rec.BaseToGeodetic)
	if err != nil {
		s.BaseTransformFailed++
		flog.WithError(err).Debug("overlay: skipping base feature that cannot be transformed")
		return nil, s
	}
	baseArea, _ := e.m.Measure(gaGeodetic)
	if math.IsNaN(baseArea) || baseArea <= 0 {
		s.DegenerateBase++
		flog.WithField("area_m2", baseArea).Debug("overlay: skipping base feature with degenerate area")
		return nil, s
	}

	ids := e.idx.Query(fa.Geom.Bounds())
	if len(ids) == 0 {
		s.NoCandidates++
		return nil, s
	}

	var out []*Record
	for _, id := range ids {
		gb, ok := e.idx.Geometry(id)
		if !ok {
			continue
		}
		s.Candidates++
		if !intersects(fa.Geom, gb) {
			s.Disjoint++
			continue
		}
		isect := fa.Geom.Intersection(gb)
		if isEmpty(isect) {
			s.EmptyIntersection++
			continue
		}
		isectGeodetic, err := transformPolygonal(isect, e.rec.BaseToGeodetic)
		if err != nil {
			s.IntersectionTransformFailed++
			flog.WithError(err).WithField("overlay_id", id).Debug("overlay: skipping intersection that cannot be transformed")
			continue
		}
		area, perim := e.m.Measure(isectGeodetic)
		if math.IsNaN(area) || math.IsNaN(perim) || area <= 0 {
			s.DegenerateIntersection++
			continue
		}
		out = append(out, newRecord(isect, fa.ID, id, area, perim, baseArea))
	}
	s.Records = len(out)
	return out, s
}

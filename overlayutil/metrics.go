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

	"github.com/prometheus/client_golang/prometheus"
)

// metricSet holds the counters of one overlay run.
type metricSet struct {
	reg      *prometheus.Registry
	features *prometheus.GaugeVec
	skipped  *prometheus.GaugeVec
	area     prometheus.Gauge
	duration prometheus.Gauge
}

func newMetricSet() *metricSet {
	m := &metricSet{
		reg: prometheus.NewRegistry(),
		features: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "overlay_features",
				Help: "Number of features by stage of the overlay.",
			},
			[]string{"stage"},
		),
		skipped: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "overlay_skipped",
				Help: "Number of skipped features or candidate pairs by reason.",
			},
			[]string{"reason"},
		),
		area: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlay_output_area_m2",
			Help: "Total geodesic area of the output features.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlay_duration_seconds",
			Help: "Wall time of the overlay run.",
		}),
	}
	m.reg.MustRegister(m.features, m.skipped, m.area, m.duration)
	return m
}

// observe records a finished run.
func (m *metricSet) observe(r *Report) {
	s := r.Stats
	m.features.WithLabelValues("base").Set(float64(s.BaseFeatures))
	m.features.WithLabelValues("overlay_indexed").Set(float64(s.OverlayIndexed))
	m.features.WithLabelValues("candidates").Set(float64(s.Candidates))
	m.features.WithLabelValues("output").Set(float64(s.Records))

	for reason, n := range map[string]int{
		"empty_base":                    s.EmptyBase,
		"degenerate_base":               s.DegenerateBase,
		"base_transform_failed":         s.BaseTransformFailed,
		"no_candidates":                 s.NoCandidates,
		"empty_overlay":                 s.EmptyOverlay,
		"overlay_transform_failed":      s.OverlayTransformFailed,
		"disjoint":                      s.Disjoint,
		"empty_intersection":            s.EmptyIntersection,
		"degenerate_intersection":       s.DegenerateIntersection,
		"intersection_transform_failed": s.IntersectionTransformFailed,
	} {
		m.skipped.WithLabelValues(reason).Set(float64(n))
	}
	m.area.Set(r.TotalAreaM2)
	m.duration.Set(r.Seconds)
}

// write writes the metrics to path in the Prometheus text format.
func (m *metricSet) write(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("overlay: writing metrics file: %v", err)
	}
	return nil
}

// writeMetrics writes the counters of r to path.
func writeMetrics(path string, r *Report) error {
	m := newMetricSet()
	m.observe(r)
	return m.write(path)
}

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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/overlay"
)

// IntersectConfig holds the settings of an intersect run.
type IntersectConfig struct {
	BaseFile, OverlayFile string

	// BaseProj and OverlayProj, if not empty, override the reference
	// systems stored with the input files.
	BaseProj, OverlayProj string

	// BaseSelection and OverlaySelection are the ids of the selected
	// features of each input.
	BaseSelection, OverlaySelection []overlay.FeatureID

	OnlySelectedBase, OnlySelectedOverlay bool

	Workers int

	OutputFile string

	// ReportFile and MetricsFile are optional.
	ReportFile, MetricsFile string
}

// Intersect reads the BASE and OVERLAY files, intersects them and
// writes the output file along with the optional report and metrics.
func Intersect(ctx context.Context, cfg *IntersectConfig, log logrus.FieldLogger) (*overlay.Result, error) {
	started := time.Now()

	log.WithField("file", cfg.BaseFile).Info("reading base layer")
	base, err := ReadLayer(cfg.BaseFile, cfg.BaseProj)
	if err != nil {
		return nil, err
	}
	if err := base.Select(cfg.BaseSelection...); err != nil {
		return nil, fmt.Errorf("overlay: BaseSelection: %v", err)
	}
	log.WithField("file", cfg.OverlayFile).Info("reading overlay layer")
	over, err := ReadLayer(cfg.OverlayFile, cfg.OverlayProj)
	if err != nil {
		return nil, err
	}
	if err := over.Select(cfg.OverlaySelection...); err != nil {
		return nil, fmt.Errorf("overlay: OverlaySelection: %v", err)
	}

	res, err := overlay.Intersect(ctx, base, over, overlay.Options{
		OnlySelectedBase:    cfg.OnlySelectedBase,
		OnlySelectedOverlay: cfg.OnlySelectedOverlay,
		Workers:             cfg.Workers,
		Log:                 log,
	})
	if err != nil {
		return nil, &runError{msg: message(err), err: err}
	}
	if res.Stats.Records == 0 {
		log.Warn("no intersection found")
	}

	log.WithField("file", cfg.OutputFile).Info("writing output")
	if err := WriteLayer(cfg.OutputFile, res.Output); err != nil {
		return nil, err
	}

	rpt := newReport(base, over, cfg.BaseFile, cfg.OverlayFile, cfg.OutputFile, res, started)
	if cfg.ReportFile != "" {
		if err := writeReport(cfg.ReportFile, rpt); err != nil {
			return nil, err
		}
	}
	if cfg.MetricsFile != "" {
		if err := writeMetrics(cfg.MetricsFile, rpt); err != nil {
			return nil, err
		}
	}
	log.WithFields(logrus.Fields{
		"records":    rpt.Stats.Records,
		"area_m2":    rpt.TotalAreaM2,
		"elapsed_s":  rpt.Seconds,
		"outputfile": cfg.OutputFile,
	}).Info("done")
	return res, nil
}

// runError is an overlay error with a user-facing message.
type runError struct {
	msg string
	err error
}

func (e *runError) Error() string { return e.msg }
func (e *runError) Unwrap() error { return e.err }

// message returns a user-facing description of an overlay error.
func message(err error) string {
	var oe *overlay.Error
	if !errors.As(err, &oe) {
		return err.Error()
	}
	switch oe.Kind {
	case overlay.NotPolygonal:
		return fmt.Sprintf("The %s layer is not a valid polygon layer: %v", oe.Set, oe.Err)
	case overlay.InvalidCRS:
		return fmt.Sprintf("The %s layer does not have a valid coordinate reference system: %v", oe.Set, oe.Err)
	case overlay.EmptySelection:
		return fmt.Sprintf("No features are selected in the %s layer", oe.Set)
	default:
		return err.Error()
	}
}

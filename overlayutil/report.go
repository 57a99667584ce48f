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
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spatialmodel/overlay"
	"gonum.org/v1/gonum/floats"
)

// Report summarizes an overlay run.
type Report struct {
	Version     string
	BaseFile    string
	OverlayFile string
	OutputFile  string
	BaseCRS     string
	OverlayCRS  string
	SameCRS     bool
	Started     time.Time
	Seconds     float64

	Stats       overlay.Stats
	Fingerprint string

	// Totals of the output attributes.
	TotalAreaM2 float64
	TotalAreaHa float64
	TotalPerimM float64
}

// newReport creates a report for a finished run.
func newReport(base, over *overlay.FeatureSet, baseFile, overlayFile, outputFile string,
	res *overlay.Result, started time.Time) *Report {
	r := &Report{
		Version:     overlay.Version,
		BaseFile:    baseFile,
		OverlayFile: overlayFile,
		OutputFile:  outputFile,
		BaseCRS:     base.CRS().String(),
		OverlayCRS:  over.CRS().String(),
		SameCRS:     res.Reconciliation.SameCRS,
		Started:     started,
		Seconds:     time.Since(started).Seconds(),
		Stats:       res.Stats,
		Fingerprint: res.Fingerprint,
	}
	area := make([]float64, len(res.Records))
	perim := make([]float64, len(res.Records))
	for i, rec := range res.Records {
		area[i] = rec.AreaM2
		perim[i] = rec.PerimM
	}
	r.TotalAreaM2 = floats.Sum(area)
	r.TotalAreaHa = r.TotalAreaM2 / 10000
	r.TotalPerimM = floats.Sum(perim)
	return r
}

// writeReport writes r to path in TOML format.
func writeReport(path string, r *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("overlay: creating report file: %v", err)
	}
	if err := toml.NewEncoder(f).Encode(r); err != nil {
		f.Close()
		return fmt.Errorf("overlay: writing report file: %v", err)
	}
	return f.Close()
}

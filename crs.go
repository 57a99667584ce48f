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
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
)

// GeodeticDef is the definition of the reference system that all
// areas and perimeters are measured in.
const GeodeticDef = "EPSG:4326"

// srULP is the tolerance, in units in the last place, used when
// comparing spatial references.
const srULP = 3

// epsgDefs holds proj4 definitions for the EPSG codes that are accepted
// directly. UTM zones are generated in epsgDef.
var epsgDefs = map[int]string{
	4326:   "+proj=longlat +datum=WGS84 +no_defs",
	4269:   "+proj=longlat +datum=NAD83 +no_defs",
	4267:   "+proj=longlat +datum=NAD27 +no_defs",
	3857:   "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +no_defs",
	900913: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +no_defs",
	5070:   "+proj=aea +lat_1=29.5 +lat_2=45.5 +lat_0=23 +lon_0=-96 +x_0=0 +y_0=0 +datum=NAD83 +units=m +no_defs",
	3310:   "+proj=aea +lat_1=34 +lat_2=40.5 +lat_0=0 +lon_0=-120 +x_0=0 +y_0=-4000000 +datum=NAD83 +units=m +no_defs",
}

// epsgDef returns the proj4 definition for an EPSG code.
func epsgDef(code int) (string, bool) {
	if d, ok := epsgDefs[code]; ok {
		return d, true
	}
	zone := code % 100
	if zone < 1 || zone > 60 {
		return "", false
	}
	switch code - zone {
	case 32600: // WGS 84 / UTM north
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", zone), true
	case 32700: // WGS 84 / UTM south
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", zone), true
	case 26900: // NAD83 / UTM
		if zone > 23 {
			return "", false
		}
		return fmt.Sprintf("+proj=utm +zone=%d +datum=NAD83 +units=m +no_defs", zone), true
	}
	return "", false
}

// CRS is a coordinate reference system.
// A nil *CRS is an undefined reference system.
type CRS struct {
	def  string
	text string
	sr   *proj.SR
}

// ParseCRS parses a reference system definition, which may be a proj4
// string, a WKT string, or an "EPSG:<code>" identifier for one of the
// supported codes.
func ParseCRS(def string) (*CRS, error) {
	def = strings.TrimSpace(def)
	if def == "" {
		return nil, fmt.Errorf("overlay: empty reference system definition")
	}
	code := def
	if strings.HasPrefix(strings.ToUpper(def), "EPSG:") {
		n, err := strconv.Atoi(strings.TrimSpace(def[len("EPSG:"):]))
		if err != nil {
			return nil, fmt.Errorf("overlay: invalid EPSG code %q: %v", def, err)
		}
		var ok bool
		code, ok = epsgDef(n)
		if !ok {
			return nil, fmt.Errorf("overlay: unsupported EPSG code %d", n)
		}
		def = fmt.Sprintf("EPSG:%d", n)
	}
	sr, err := proj.Parse(code)
	if err != nil {
		return nil, fmt.Errorf("overlay: parsing reference system %q: %v", def, err)
	}
	return &CRS{def: def, text: code, sr: sr}, nil
}

// NewCRS wraps an already parsed spatial reference. def is kept for
// display and may be empty.
func NewCRS(sr *proj.SR, def string) *CRS {
	if sr == nil {
		return nil
	}
	return &CRS{def: def, text: def, sr: sr}
}

func mustParseCRS(def string) *CRS {
	c, err := ParseCRS(def)
	if err != nil {
		panic(err)
	}
	return c
}

// Geodetic is the fixed geodetic reference used for measurement.
var Geodetic = mustParseCRS(GeodeticDef)

// Valid reports whether c is a defined reference system.
func (c *CRS) Valid() bool { return c != nil && c.sr != nil }

// SR returns the underlying spatial reference.
func (c *CRS) SR() *proj.SR {
	if c == nil {
		return nil
	}
	return c.sr
}

func (c *CRS) String() string {
	if c == nil {
		return "<undefined>"
	}
	if c.def != "" {
		return c.def
	}
	return c.sr.Name
}

// Definition returns a proj4 or WKT definition of c that ParseCRS
// accepts, suitable for writing to a .prj file.
func (c *CRS) Definition() string {
	if c == nil {
		return ""
	}
	return c.text
}

// Equal reports whether c and c2 describe the same reference system.
// Undefined reference systems are never equal to anything.
func (c *CRS) Equal(c2 *CRS) bool {
	if !c.Valid() || !c2.Valid() {
		return false
	}
	if c == c2 {
		return true
	}
	return c.sr.Equal(c2.sr, srULP)
}

// NewTransform creates a function that transforms points from c to dest.
func (c *CRS) NewTransform(dest *CRS) (proj.Transformer, error) {
	if !c.Valid() || !dest.Valid() {
		return nil, fmt.Errorf("overlay: transform between undefined reference systems")
	}
	return c.sr.NewTransform(dest.sr)
}

// Reconciliation holds the transforms needed to bring OVERLAY geometry
// into BASE's reference system and BASE geometry into the geodetic
// reference. A nil transform means none is needed.
type Reconciliation struct {
	SameCRS        bool
	OverlayToBase  proj.Transformer
	BaseToGeodetic proj.Transformer
}

// Reconcile compares the BASE and OVERLAY reference systems and builds
// the transforms the overlay needs. It fails with InvalidCRS if either
// reference system is undefined or a transform cannot be built.
func Reconcile(base, overlay *CRS) (*Reconciliation, error) {
	return reconcile(base, overlay, false)
}

// reconcile is Reconcile, optionally building transforms even where
// the reference systems already agree.
func reconcile(base, overlay *CRS, always bool) (*Reconciliation, error) {
	if !base.Valid() {
		return nil, newError(InvalidCRS, "base", fmt.Errorf("undefined reference system"))
	}
	if !overlay.Valid() {
		return nil, newError(InvalidCRS, "overlay", fmt.Errorf("undefined reference system"))
	}
	r := &Reconciliation{SameCRS: base.Equal(overlay)}
	var err error
	if !r.SameCRS || always {
		r.OverlayToBase, err = overlay.NewTransform(base)
		if err != nil {
			return nil, newError(InvalidCRS, "overlay", err)
		}
	}
	if !base.Equal(Geodetic) || always {
		r.BaseToGeodetic, err = base.NewTransform(Geodetic)
		if err != nil {
			return nil, newError(InvalidCRS, "base", err)
		}
	}
	return r, nil
}

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
	"strconv"
	"strings"

	"github.com/spatialmodel/overlay"
	"github.com/spf13/cast"
)

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkInputFile makes sure that an input file is specified and
// exists, and expands any environment variables.
func checkInputFile(name, f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf("you need to specify the %s configuration variable (for example: %s=\"input.shp\")", name, name)
	}
	f = os.ExpandEnv(f)
	if _, err := os.Stat(f); err != nil {
		return f, fmt.Errorf("overlay: the %s doesn't exist: %v", name, err)
	}
	if _, err := fileFormat(f); err != nil {
		return f, err
	}
	return f, nil
}

// checkInputFiles checks both input files and makes sure they are not
// the same file.
func checkInputFiles(baseFile, overlayFile string) (string, string, error) {
	b, err := checkInputFile("BaseFile", baseFile)
	if err != nil {
		return b, overlayFile, err
	}
	o, err := checkInputFile("OverlayFile", overlayFile)
	if err != nil {
		return b, o, err
	}
	if sameFile(b, o) {
		return b, o, fmt.Errorf("overlay: BaseFile and OverlayFile must be different files, but both are %s", b)
	}
	return b, o, nil
}

func sameFile(a, b string) bool {
	ia, errA := os.Stat(a)
	ib, errB := os.Stat(b)
	if errA == nil && errB == nil {
		return os.SameFile(ia, ib)
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

// checkOutputFile makes sure that the output file is specified, has a
// supported extension and that its directory exists, and expands any
// environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="intersection.shp")`)
	}
	f = os.ExpandEnv(f)
	if _, err := fileFormat(f); err != nil {
		return f, err
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("overlay: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return os.ExpandEnv(logFile)
}

// parseSelection converts a list of feature ids from the configuration,
// which may be a slice or a comma-separated string, into feature ids.
func parseSelection(name string, v interface{}) ([]overlay.FeatureID, error) {
	var items []string
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
	default:
		var err error
		if items, err = cast.ToStringSliceE(v); err != nil {
			return nil, fmt.Errorf("overlay: reading %s: %v", name, err)
		}
	}
	ids := make([]overlay.FeatureID, 0, len(items))
	for _, s := range items {
		for _, part := range strings.Split(s, ",") {
			part = strings.Trim(strings.TrimSpace(part), "[]")
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("overlay: reading %s: invalid feature id %q", name, part)
			}
			ids = append(ids, overlay.FeatureID(id))
		}
	}
	return ids, nil
}

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
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// newLogger returns a logger that writes to w and to logFile.
// The returned function closes the log file.
func newLogger(w io.Writer, logFile string, debug bool) (*logrus.Logger, func() error, error) {
	logfile, err := os.Create(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("overlay: problem creating log file: %v", err)
	}
	l := logrus.New()
	l.SetOutput(io.MultiWriter(w, logfile))
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l, logfile.Close, nil
}

/*
Copyright © 2024 the rex authors.
This file is part of rex.

rex is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

rex is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with rex.  If not, see <http://www.gnu.org/licenses/>.
*/

package rexutil

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// newLogger returns a logger writing text to w and, if logFile is not
// empty, also to logFile. The returned function closes the log file.
func newLogger(w io.Writer, verbose bool, logFile string) (*logrus.Logger, func() error, error) {
	log := logrus.New()
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true, DisableColors: logFile != ""}
	log.Level = logrus.InfoLevel
	if verbose {
		log.Level = logrus.DebugLevel
	}
	log.Out = w
	closer := func() error { return nil }
	if logFile != "" {
		f, err := os.OpenFile(os.ExpandEnv(logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("rexutil: problem creating log file: %v", err)
		}
		log.Out = io.MultiWriter(w, f)
		closer = f.Close
	}
	return log, closer, nil
}

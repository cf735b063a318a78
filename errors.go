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

package rex

import (
	"fmt"
	"strings"
)

// IndexError is returned when a site selection refers to sites
// outside of the archive.
type IndexError struct {
	Index, NumSites int
	msg             string
}

func (e *IndexError) Error() string {
	if e.msg != "" {
		return "rex: " + e.msg
	}
	return fmt.Sprintf("rex: site index %d is out of range for an archive with %d sites", e.Index, e.NumSites)
}

// KeyError is returned when a required key, column, or method name
// cannot be found.
type KeyError struct {
	Key string
	Msg string
}

func (e *KeyError) Error() string { return "rex: " + e.Msg }

// ResourceRuntimeError signals resource data that cannot be used as
// requested, for example irradiance data corrupted beyond repair.
type ResourceRuntimeError struct {
	Msg string
	Err error
}

func (e *ResourceRuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rex: %s: %v", e.Msg, e.Err)
	}
	return "rex: " + e.Msg
}

func (e *ResourceRuntimeError) Unwrap() error { return e.Err }

// ResourceIOError signals a dataset that is missing from the archive or
// cannot be read.
type ResourceIOError struct {
	Dataset string
	Err     error
}

func (e *ResourceIOError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rex: reading %s: %v", e.Dataset, e.Err)
	}
	return fmt.Sprintf("rex: %s not found in resource archive", e.Dataset)
}

func (e *ResourceIOError) Unwrap() error { return e.Err }

// ResourceValueError signals malformed values or array shapes.
type ResourceValueError struct {
	Msg string
}

func (e *ResourceValueError) Error() string { return "rex: " + e.Msg }

func valueErrorf(format string, a ...interface{}) error {
	return &ResourceValueError{Msg: fmt.Sprintf(format, a...)}
}

func runtimeErrorf(format string, a ...interface{}) error {
	return &ResourceRuntimeError{Msg: fmt.Sprintf(format, a...)}
}

// CoverageGapWarning is returned by a bias correction that completed but
// did not cover every selected site. It is not fatal.
type CoverageGapWarning struct {
	// Missing holds the gids of the selected sites that had no
	// correction, in selection order.
	Missing  []int
	NumSites int
}

func (w *CoverageGapWarning) Error() string {
	const maxListed = 10
	gids := make([]string, 0, maxListed)
	for i, g := range w.Missing {
		if i == maxListed {
			gids = append(gids, "...")
			break
		}
		gids = append(gids, fmt.Sprint(g))
	}
	return fmt.Sprintf("rex: %d out of %d sites were missing from the bias correction table "+
		"and were not corrected: [%s]", len(w.Missing), w.NumSites, strings.Join(gids, ", "))
}

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
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// loader reads variables for one selection.
type loader struct {
	r         ArchiveReader
	tech      Technology
	hubHeight float64
	rows      Slice
	cols      Columns
	datasets  map[string]bool
	names     []string
	log       logrus.FieldLogger
}

func newLoader(r ArchiveReader, tech Technology, hubHeight float64, rows Slice, cols Columns, log logrus.FieldLogger) *loader {
	l := &loader{r: r, tech: tech, hubHeight: hubHeight, rows: rows, cols: cols,
		names: r.Datasets(), datasets: make(map[string]bool), log: log}
	for _, d := range l.names {
		l.datasets[d] = true
	}
	return l
}

// read reads one stored dataset and removes its scale factor.
func (l *loader) read(variable string, height float64) (*sparse.DenseArray, Attrs, error) {
	data, attrs, err := l.r.Read(variable, height, l.rows, l.cols)
	if err != nil {
		return nil, attrs, err
	}
	if attrs.ScaleFactor != 0 && attrs.ScaleFactor != 1 {
		for i, v := range data.Elements {
			data.Elements[i] = v / attrs.ScaleFactor
		}
	}
	attrs.ScaleFactor = 1
	return data, attrs, nil
}

// targetHeight returns the height wind variables are loaded at. If the
// archive holds wind speed at a single height, every wind variable is
// loaded at that height regardless of the requested hub height.
func (l *loader) targetHeight() float64 {
	if ws := availableHeights(l.names, "windspeed"); len(ws) == 1 {
		return ws[0]
	}
	return l.hubHeight
}

// load returns variable for the selection, along with its attributes
// and the height it represents (NoHeight for variables that are not
// height-indexed).
func (l *loader) load(variable string) (*sparse.DenseArray, Attrs, float64, error) {
	if !heightIndexed(l.tech, variable) {
		if l.datasets[variable] {
			data, attrs, err := l.read(variable, NoHeight)
			return data, attrs, NoHeight, err
		}
		if a, ok := aliases[variable]; ok && l.tech.IsSolar() && l.datasets[DatasetName(a.variable, a.height)] {
			l.log.WithFields(logrus.Fields{"variable": variable, "dataset": DatasetName(a.variable, a.height)}).
				Debug("rex: loading variable from alias")
			data, attrs, err := l.read(a.variable, a.height)
			return data, attrs, NoHeight, err
		}
		return nil, Attrs{}, NoHeight, &ResourceIOError{Dataset: variable}
	}

	heights := availableHeights(l.names, variable)
	if len(heights) == 0 {
		return nil, Attrs{}, NoHeight, &ResourceIOError{Dataset: variable}
	}
	p := planHeight(heights, l.targetHeight())
	log := l.log.WithFields(logrus.Fields{"variable": variable, "height": p.Target})
	lower, attrs, err := l.read(variable, p.Lower)
	if err != nil {
		return nil, attrs, NoHeight, err
	}
	if !p.interpolated() {
		log.Debugf("rex: loaded from %gm", p.Lower)
		return lower, attrs, p.Lower, nil
	}
	upper, upperAttrs, err := l.read(variable, p.Upper)
	if err != nil {
		return nil, attrs, NoHeight, err
	}
	if upperAttrs.Units != attrs.Units && upperAttrs.Units != "" && attrs.Units != "" {
		return nil, attrs, NoHeight, valueErrorf("%s has units %q at %gm but %q at %gm",
			variable, attrs.Units, p.Lower, upperAttrs.Units, p.Upper)
	}
	log.Debugf("rex: interpolated between %gm and %gm", p.Lower, p.Upper)
	return interpolateHeight(variable, p, lower, upper), attrs, p.Target, nil
}

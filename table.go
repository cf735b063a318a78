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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Table is a table of text values with named columns, as read from a
// CSV or JSON file.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ReadCSVTable reads a table from CSV data with a header row.
func ReadCSVTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("rex: reading csv table: %v", err)
	}
	if len(records) == 0 {
		return nil, valueErrorf("csv table is empty")
	}
	t := &Table{Columns: records[0]}
	for i, c := range t.Columns {
		t.Columns[i] = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
	}
	t.Rows = records[1:]
	// A leading unnamed column holds a row index.
	if len(t.Columns) > 0 && t.Columns[0] == "" {
		t.Columns = t.Columns[1:]
		for i, row := range t.Rows {
			t.Rows[i] = row[1:]
		}
	}
	return t, nil
}

// ReadJSONTable reads a table from a JSON array of objects.
func ReadJSONTable(r io.Reader) (*Table, error) {
	var records []map[string]interface{}
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("rex: reading json table: %v", err)
	}
	cols := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			cols[k] = true
		}
	}
	t := new(Table)
	for c := range cols {
		t.Columns = append(t.Columns, c)
	}
	sort.Strings(t.Columns)
	for _, rec := range records {
		row := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			switch v := rec[c].(type) {
			case nil:
			case []interface{}:
				parts := make([]string, len(v))
				for j, e := range v {
					parts[j] = cast.ToString(e)
				}
				row[i] = "[" + strings.Join(parts, ", ") + "]"
			default:
				row[i] = cast.ToString(v)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadTableFile reads a CSV or JSON table, chosen by file extension.
func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rex: opening table: %v", err)
	}
	defer f.Close()
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		return ReadJSONTable(f)
	}
	return ReadCSVTable(f)
}

// Column returns the index of column name, or -1 if there is none.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the value in row i of column name and whether the
// column exists and the value is not blank.
func (t *Table) Value(i int, name string) (string, bool) {
	c := t.Column(name)
	if c < 0 || c >= len(t.Rows[i]) {
		return "", false
	}
	v := strings.TrimSpace(t.Rows[i][c])
	return v, v != ""
}

// Float returns the numeric value in row i of column name.
func (t *Table) Float(i int, name string) (float64, error) {
	v, ok := t.Value(i, name)
	if !ok {
		return 0, &KeyError{Key: name, Msg: fmt.Sprintf("row %d has no value for %q", i, name)}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, valueErrorf("row %d: %s: %v", i, name, err)
	}
	return f, nil
}

// parseList parses a bracketed list of numbers such as "[2.6, -0.8, 8.9]".
func parseList(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	o := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, valueErrorf("parsing list %q: %v", s, err)
		}
		o[i] = v
	}
	return o, nil
}

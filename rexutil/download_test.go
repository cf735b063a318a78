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
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func helperLog(t *testing.T) logrus.FieldLogger {
	log, _ := logtest.NewNullLogger()
	return log
}

func TestMaybeDownloadLocal(t *testing.T) {
	k, err := maybeDownload(context.Background(), "/dev/null", helperLog(t))
	if err != nil || k != "/dev/null" {
		t.Errorf("expected /dev/null, got %s (%v)", k, err)
	}
	k, err = maybeDownload(context.Background(), "/blah/test/", helperLog(t))
	if err != nil || k != "/blah/test/" {
		t.Errorf("expected /blah/test/, got %s (%v)", k, err)
	}
}

func TestMaybeDownloadRemote(t *testing.T) {
	dir := t.TempDir()
	path := writeTestResource(t, dir, 2)
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	k, err := maybeDownload(context.Background(), srv.URL+"/wind.nc", helperLog(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(k, "wind.nc") || k == path {
		t.Errorf("expected tempDir/wind.nc, got %s", k)
	}
	want, _ := ioutil.ReadFile(path)
	have, _ := ioutil.ReadFile(k)
	if len(want) == 0 || string(want) != string(have) {
		t.Error("downloaded file differs")
	}
	again, err := maybeDownload(context.Background(), srv.URL+"/wind.nc", helperLog(t))
	if err != nil || again != k {
		t.Errorf("second download: %s (%v)", again, err)
	}
}

func TestMaybeDownloadNotFound(t *testing.T) {
	srv := httptest.NewServer(http.FileServer(http.Dir(t.TempDir())))
	defer srv.Close()
	if _, err := maybeDownload(context.Background(), srv.URL+"/missing.nc", helperLog(t)); err == nil ||
		!strings.Contains(err.Error(), "404") {
		t.Errorf("have %v", err)
	}
}

func TestMaybeDownloadBlob(t *testing.T) {
	dir := t.TempDir()
	path := writeTestResource(t, dir, 2)
	k, err := maybeDownload(context.Background(), "file://"+filepath.ToSlash(path), helperLog(t))
	if err != nil {
		t.Fatal(err)
	}
	if k == path || filepath.Base(k) != "wind.nc" {
		t.Errorf("blob download to %s", k)
	}
	if _, err := os.Stat(k); err != nil {
		t.Error(err)
	}
}

func TestOutputDirBlob(t *testing.T) {
	dir := t.TempDir()
	out, err := openOutputDir(context.Background(), "file://"+filepath.ToSlash(dir)+"/results")
	if err != nil {
		t.Fatal(err)
	}
	tbl := &table{name: "x", header: []string{"a", "b"}, rows: [][]interface{}{{"t", 1.5}}}
	if err := writeTables(context.Background(), out, "csv", []*table{tbl}, helperLog(t)); err != nil {
		t.Fatal(err)
	}
	b, err := ioutil.ReadFile(filepath.Join(dir, "results", "x.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "a,b\nt,1.5\n" {
		t.Errorf("have %q", b)
	}
}

func TestOpenBucketScheme(t *testing.T) {
	_, err := OpenBucket(context.Background(), "ftp://archive")
	if err == nil || !strings.Contains(err.Error(), `unsupported scheme "ftp"`) {
		t.Errorf("have %v", err)
	}
}

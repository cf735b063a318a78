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
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/ctessum/requestcache"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
	"github.com/sirupsen/logrus"
)

// maxDownloadRetries is the number of times a failed download is retried.
const maxDownloadRetries = 4

// downloadCache makes sure each remote archive is only downloaded once,
// even when several commands ask for it at the same time.
var (
	downloadCache     *requestcache.Cache
	downloadCacheOnce sync.Once
)

type downloadRequest struct {
	path string
	log  logrus.FieldLogger
}

// maybeDownload returns path if it is a local file. If path is an
// http(s) URL or a blob location ("gs://", "s3://", or "file://"), the
// file is downloaded to a temporary directory and the local path is
// returned. Any other path is returned unchanged.
func maybeDownload(ctx context.Context, path string, log logrus.FieldLogger) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if !IsRemote(path) {
		return path, nil
	}
	downloadCacheOnce.Do(func() {
		downloadCache = requestcache.NewCache(func(ctx context.Context, req interface{}) (interface{}, error) {
			r := req.(downloadRequest)
			return download(ctx, r.path, r.log)
		}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(100))
	})
	r := downloadCache.NewRequest(ctx, downloadRequest{path: path, log: log}, path)
	local, err := r.Result()
	if err != nil {
		return "", err
	}
	return local.(string), nil
}

// IsRemote returns whether path is a URL or a blob location.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || IsBlob(path)
}

// IsBlob returns whether the given path represents a blob
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// statusError is an unsuccessful HTTP response.
type statusError struct {
	url  string
	code int
}

func (e statusError) Error() string {
	return fmt.Sprintf("rexutil: downloading %s: %d %s", e.url, e.code, http.StatusText(e.code))
}

// download copies path into a new temporary directory, retrying
// failures with exponential backoff.
func download(ctx context.Context, path string, log logrus.FieldLogger) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("rexutil: parsing %s: %v", path, err)
	}
	name := filepath.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = "resource.nc"
	}
	dir, err := ioutil.TempDir("", "rex")
	if err != nil {
		return "", fmt.Errorf("rexutil: creating temporary download directory: %v", err)
	}
	local := filepath.Join(dir, name)

	var permanent error
	err = backoff.RetryNotify(
		func() error {
			err := fetch(ctx, u, local)
			if se, ok := err.(statusError); ok && se.code < 500 {
				// Client errors will not go away by retrying.
				permanent = err
				return nil
			}
			return err
		},
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxDownloadRetries), ctx),
		func(err error, d time.Duration) {
			log.WithField("path", path).Warnf("%v: retrying in %v", err, d)
		},
	)
	if err == nil {
		err = permanent
	}
	if err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	log.WithFields(logrus.Fields{"path": path, "local": local}).Info("rexutil: downloaded resource file")
	return local, nil
}

// fetch makes one attempt at copying u to the file local.
func fetch(ctx context.Context, u *url.URL, local string) error {
	var r io.ReadCloser
	if u.Scheme == "http" || u.Scheme == "https" {
		req, err := http.NewRequest(http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("rexutil: downloading %s: %v", u, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return statusError{url: u.String(), code: resp.StatusCode}
		}
		r = resp.Body
	} else {
		bucket, err := OpenBucket(ctx, u.Scheme+"://"+u.Host)
		if err != nil {
			return err
		}
		br, err := bucket.NewReader(ctx, strings.TrimPrefix(u.Path, "/"))
		if err != nil {
			return fmt.Errorf("rexutil: reading %s: %v", u, err)
		}
		r = br
	}
	defer r.Close()

	w, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("rexutil: creating file for download: %v", err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("rexutil: downloading %s: %v", u, err)
	}
	return w.Close()
}

// OpenBucket opens the bucket holding resource archives or outputs at
// location, such as file:///data, gs://nsrdb or s3://wtk-us. Only the
// scheme and host of location are used; any path is a key prefix that
// the caller handles.
func OpenBucket(ctx context.Context, location string) (*blob.Bucket, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("rexutil: bucket location %q: %v", location, err)
	}
	switch u.Scheme {
	case "file":
		dir := u.Hostname()
		if dir == "" {
			// file:///abs/path keeps the whole path in the key.
			dir = "/"
		}
		return fileblob.NewBucket(dir)
	case "gs":
		return gsBucket(ctx, u.Hostname())
	case "s3":
		return s3Bucket(ctx, u.Hostname())
	default:
		return nil, fmt.Errorf("rexutil: bucket location %q: unsupported scheme %q", location, u.Scheme)
	}
}

// gsBucket uses application default credentials.
func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("rexutil: google cloud credentials for %s: %v", name, err)
	}
	client, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, fmt.Errorf("rexutil: google cloud client for %s: %v", name, err)
	}
	return gcsblob.OpenBucket(ctx, name, client)
}

// s3Bucket takes credentials from the AWS_* environment. Archives on the
// public NREL buckets live in us-west-2, which is the default region.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-west-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, fmt.Errorf("rexutil: creating AWS session: %v", err)
	}
	return s3blob.OpenBucket(ctx, s, name)
}

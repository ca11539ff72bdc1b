// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
)

func init() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

// openFileOrURL opens name for reading: a local path, an s3:// path (via
// grailbio/base/file's s3 implementation) or an http(s):// URL. The
// returned size is -1 if unknown (always true for HTTP without a
// Content-Length).
func openFileOrURL(ctx context.Context, name string) (io.Reader, int64, func(context.Context) error, error) {
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		resp, err := http.Get(name)
		if err != nil {
			return nil, 0, nil, err
		}
		return resp.Body, resp.ContentLength, func(context.Context) error {
			return resp.Body.Close()
		}, nil
	}
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	return f.Reader(ctx), info.Size(), f.Close, nil
}

// openSeekableFile opens name for random-access reading: extract/list/
// inspect all need io.ReadSeeker, so HTTP sources aren't accepted here.
func openSeekableFile(ctx context.Context, name string) (io.ReadSeeker, func(context.Context) error, error) {
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return nil, nil, fmt.Errorf("pxz: %s: random-access operations require a seekable local or S3 file, not an HTTP source", name)
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	rs, ok := f.Reader(ctx).(io.ReadSeeker)
	if !ok {
		return nil, nil, fmt.Errorf("pxz: %s: underlying file implementation is not seekable", name)
	}
	return rs, f.Close, nil
}

// isRemotePath reports whether name is an s3:// or http(s):// location
// rather than a local path, e.g. to decide whether -keep's absence
// implies a local os.Remove.
func isRemotePath(name string) bool {
	return strings.Contains(name, "://")
}

// createFile opens name for writing, or returns os.Stdout if name is
// empty. name may be a local path or an s3:// path.
func createFile(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	if len(name) == 0 {
		return os.Stdout, func(context.Context) error { return nil }, nil
	}
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), f.Close, nil
}

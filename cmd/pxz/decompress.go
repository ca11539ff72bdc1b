// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"cloudeng.io/cmdutil"
	cerrors "cloudeng.io/errors"

	"github.com/cosnicolaou/pxz"
)

func decompress(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*decompressFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	var input, output string
	switch len(args) {
	case 0:
	case 1:
		input = args[0]
	case 2:
		input, output = args[0], args[1]
	default:
		return errors.New("pxz: decompress takes at most an input and output path")
	}
	if len(output) == 0 {
		output = cl.Output
	}
	if len(output) == 0 && len(input) > 0 && !isRemotePath(input) {
		output = autoReadName(input)
	}

	var rd io.Reader
	var size int64 = -1
	var readerCleanup func(context.Context) error
	if len(input) == 0 {
		rd = os.Stdin
	} else {
		var err error
		rd, size, readerCleanup, err = openFileOrURL(ctx, input)
		if err != nil {
			return err
		}
		defer readerCleanup(ctx)
	}

	wr, writerCleanup, err := createFile(ctx, output)
	if err != nil {
		return err
	}

	ropts := []pxz.ReaderOption{
		pxz.ReaderConcurrency(cl.Concurrency),
		pxz.ReaderQueueSize(cl.QueueSize),
		pxz.ReaderVerbose(cl.Verbose),
	}

	var progressBarCh chan pxz.Progress
	var progressBarWg sync.WaitGroup
	if cl.ProgressBar && size > 0 {
		progressBarCh = make(chan pxz.Progress, cl.Concurrency)
		ropts = append(ropts, pxz.ReaderSendUpdates(progressBarCh))
		progressBarWg.Add(1)
		go func() {
			defer progressBarWg.Done()
			pxz.RunProgressBar(ctx, os.Stderr, progressBarCh, size)
		}()
	}

	r := pxz.NewReader(ctx, rd, ropts...)
	errs := &cerrors.M{}
	_, err = io.Copy(wr, r)
	errs.Append(err)
	errs.Append(r.Close())
	errs.Append(writerCleanup(ctx))

	if progressBarCh != nil {
		progressBarCh <- pxz.Progress{}
		progressBarWg.Wait()
	}
	return errs.Err()
}

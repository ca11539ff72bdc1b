// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"sync"

	"cloudeng.io/cmdutil"
	cerrors "cloudeng.io/errors"

	"github.com/cosnicolaou/pxz"
)

func extract(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*extractFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	archive := args[0]
	specs := args[1:]

	src, readerCleanup, err := openSeekableFile(ctx, archive)
	if err != nil {
		return err
	}
	defer readerCleanup(ctx)

	wr, writerCleanup, err := createFile(ctx, cl.Output)
	if err != nil {
		return err
	}

	eopts := []pxz.ExtractOption{
		pxz.ExtractConcurrency(cl.Concurrency),
		pxz.ExtractQueueSize(cl.QueueSize),
		pxz.ExtractVerbose(cl.Verbose),
	}

	var progressBarCh chan pxz.Progress
	var progressBarWg sync.WaitGroup
	if cl.ProgressBar {
		progressBarCh = make(chan pxz.Progress, cl.Concurrency)
		eopts = append(eopts, pxz.ExtractSendUpdates(progressBarCh))
		progressBarWg.Add(1)
		go func() {
			defer progressBarWg.Done()
			pxz.RunProgressBar(ctx, os.Stderr, progressBarCh, 0)
		}()
	}

	errs := &cerrors.M{}
	errs.Append(pxz.Extract(ctx, src, wr, specs, eopts...))
	errs.Append(writerCleanup(ctx))

	if progressBarCh != nil {
		progressBarCh <- pxz.Progress{}
		progressBarWg.Wait()
	}
	return errs.Err()
}

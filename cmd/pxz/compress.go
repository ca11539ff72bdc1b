// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"cloudeng.io/cmdutil"
	cerrors "cloudeng.io/errors"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/cosnicolaou/pxz"
)

func compress(ctx context.Context, values interface{}, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cl := values.(*compressFlags)
	cmdutil.HandleSignals(cancel, os.Interrupt)

	var input, output string
	switch len(args) {
	case 0:
	case 1:
		input = args[0]
	case 2:
		input, output = args[0], args[1]
	default:
		return errors.New("pxz: compress takes at most an input and output path")
	}
	if len(output) == 0 {
		output = cl.Output
	}
	if len(output) == 0 && len(input) > 0 && !isRemotePath(input) {
		output = autoWriteName(input)
	}

	var rd io.Reader
	var readerCleanup func(context.Context) error
	if len(input) == 0 {
		rd = os.Stdin
	} else {
		var err error
		rd, _, readerCleanup, err = openFileOrURL(ctx, input)
		if err != nil {
			return err
		}
		defer readerCleanup(ctx)
	}

	isTTY := len(output) == 0 && terminal.IsTerminal(int(os.Stdout.Fd()))
	if isTTY {
		return errors.New("pxz: refusing to write compressed data to a terminal")
	}

	wr, writerCleanup, err := createFile(ctx, output)
	if err != nil {
		return err
	}

	preset := cl.Preset
	if cl.Extreme && preset < 9 {
		// The extreme bit buys a bigger dictionary at the same preset
		// number, the same trade the xz CLI makes for its low presets;
		// match-finder effort itself is left at the LZMA2 writer's default.
		preset++
	}
	dictSize := pxz.DictSizeForPreset(preset)
	blockSize := int(float64(dictSize) * cl.BlockFraction)

	wopts := []pxz.WriterOption{
		pxz.WriterConcurrency(cl.Concurrency),
		pxz.WriterQueueSize(cl.QueueSize),
		pxz.WriterVerbose(cl.Verbose),
		pxz.WriterDictSize(dictSize),
		pxz.WriterBlockSize(blockSize),
		pxz.WriterRaw(cl.Raw),
	}

	var progressBarCh chan pxz.Progress
	var progressBarWg sync.WaitGroup
	if cl.ProgressBar && !isTTY {
		progressBarCh = make(chan pxz.Progress, cl.Concurrency)
		wopts = append(wopts, pxz.WriterSendUpdates(progressBarCh))
		progressBarWg.Add(1)
		go func() {
			defer progressBarWg.Done()
			pxz.RunProgressBar(ctx, os.Stderr, progressBarCh, 0)
		}()
	}

	w := pxz.NewWriter(ctx, wr, wopts...)
	errs := &cerrors.M{}
	_, err = io.Copy(w, rd)
	errs.Append(err)
	errs.Append(w.Close())
	errs.Append(writerCleanup(ctx))

	if progressBarCh != nil {
		progressBarCh <- pxz.Progress{}
		progressBarWg.Wait()
	}

	if errs.Err() == nil && len(input) > 0 && !cl.Keep && !isRemotePath(input) {
		if err := os.Remove(input); err != nil {
			fmt.Fprintf(os.Stderr, "pxz: warning: could not remove %s: %v\n", input, err)
		}
	}
	return errs.Err()
}

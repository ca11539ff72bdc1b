// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pxz

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/cosnicolaou/pxz/internal/blockcodec"
	"github.com/cosnicolaou/pxz/internal/fileindex"
	"github.com/cosnicolaou/pxz/internal/pipeline"
	"github.com/cosnicolaou/pxz/internal/trace"
	"github.com/cosnicolaou/pxz/internal/workitem"
	"github.com/cosnicolaou/pxz/internal/xzformat"
)

type readerOpts struct {
	concurrency   int
	queueOverride int
	verbose       bool
	progressCh    chan<- Progress
}

// ReaderOption configures a Reader.
type ReaderOption func(*readerOpts)

// ReaderConcurrency sets the number of blocks decoded in parallel.
func ReaderConcurrency(n int) ReaderOption {
	return func(o *readerOpts) { o.concurrency = n }
}

// ReaderQueueSize overrides the pipeline's work-item pool size.
func ReaderQueueSize(n int) ReaderOption {
	return func(o *readerOpts) { o.queueOverride = n }
}

// ReaderVerbose enables per-block trace logging.
func ReaderVerbose(v bool) ReaderOption {
	return func(o *readerOpts) { o.verbose = v }
}

// ReaderSendUpdates arranges for one Progress value to be sent per block
// as it's written out, in split order.
func ReaderSendUpdates(ch chan<- Progress) ReaderOption {
	return func(o *readerOpts) { o.progressCh = ch }
}

// Reader decompresses a pxz archive concurrently: blocks are read and
// decoded in parallel, then reassembled in order. If the archive carries
// a file index, it becomes available via Entries once Read has returned
// io.EOF.
type Reader struct {
	ctx  context.Context
	opts readerOpts
	tr   trace.T

	rt *pipeline.Runtime

	pr *io.PipeReader
	pw *io.PipeWriter

	mu      sync.Mutex
	entries []fileindex.Entry

	errCh chan error
	wg    sync.WaitGroup
}

// NewReader returns a Reader decompressing src.
func NewReader(ctx context.Context, src io.Reader, opts ...ReaderOption) *Reader {
	o := readerOpts{concurrency: runtime.GOMAXPROCS(-1)}
	for _, fn := range opts {
		fn(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}

	t := trace.New(o.verbose)
	pool := workitem.New(o.concurrency, o.queueOverride, t.Printf)
	rt := pipeline.New(pool.Items, o.concurrency)

	r := &Reader{
		ctx:   ctx,
		opts:  o,
		tr:    t,
		rt:    rt,
		errCh: make(chan error, 1),
	}
	r.pr, r.pw = io.Pipe()
	rt.StartWorkers(r.decodeItem)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := r.run(src)
		r.errCh <- err
		close(r.errCh)
	}()
	return r
}

func (r *Reader) run(src io.Reader) error {
	sr := newSplitReader(src)

	mergeDone := make(chan struct{})
	go func() {
		r.mergeAndPipe()
		close(mergeDone)
	}()

	err := r.dispatchStreams(sr)
	if err != nil {
		r.pw.CloseWithError(err)
	}
	r.rt.StopSplitting()
	<-mergeDone
	return err
}

// dispatchStreams drives the splitter across every concatenated XZ stream
// in src (the XZ container allows any number of them back to back): for
// each stream it reads the stream header, dispatches every sized block to
// the worker pool, then consumes that stream's index, footer and any
// trailing zero-padding before looking for another stream header. It
// returns nil once the padding scan runs all the way to EOF, so a file
// made of several concatenated streams decodes as the concatenation of
// their payloads.
func (r *Reader) dispatchStreams(sr *splitReader) error {
	for {
		if err := sr.start(); err != nil {
			return err
		}
		if err := r.dispatchSizedBlocks(sr); err != nil {
			return err
		}
		if _, _, err := xzformat.DecodeIndex(sr.r); err != nil {
			return fmt.Errorf("pxz: decoding stream index: %w", err)
		}
		if _, _, err := xzformat.ReadStreamFooter(sr.r); err != nil {
			return fmt.Errorf("pxz: reading stream footer: %w", err)
		}
		atEOF, err := consumeStreamPadding(sr.r)
		if err != nil {
			return err
		}
		if atEOF {
			return nil
		}
	}
}

func (r *Reader) decodeItem(_ int, it *workitem.Item) {
	out, err := blockcodec.DecodeBlock(it.Input[:it.InSize], xzformat.CheckID(it.Check))
	it.Err = err
	if err == nil {
		it.Output = append(it.Output[:0], out...)
	}
}

// Read implements io.Reader over the decompressed stream.
func (r *Reader) Read(buf []byte) (int, error) {
	n, err := r.pr.Read(buf)
	if err == io.EOF {
		r.wg.Wait()
		select {
		case cerr := <-r.errCh:
			if cerr != nil {
				return n, cerr
			}
		default:
		}
	}
	return n, err
}

// Entries returns the archive's file index, if Read has drained to EOF
// and the archive carried one.
func (r *Reader) Entries() []fileindex.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries
}

// Close releases resources associated with the reader. It's safe to call
// after a partial read (e.g. on error or early abandonment).
func (r *Reader) Close() error {
	r.pr.Close()
	r.rt.Wait()
	return nil
}

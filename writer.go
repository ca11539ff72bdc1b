// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pxz

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cosnicolaou/pxz/internal/blockcodec"
	"github.com/cosnicolaou/pxz/internal/fileindex"
	"github.com/cosnicolaou/pxz/internal/pipeline"
	"github.com/cosnicolaou/pxz/internal/trace"
	"github.com/cosnicolaou/pxz/internal/workitem"
	"github.com/cosnicolaou/pxz/internal/xzformat"
)

type writerOpts struct {
	concurrency   int
	blockSize     int
	dictSize      uint32
	queueOverride int
	verbose       bool
	raw           bool
	progressCh    chan<- Progress
}

// WriterOption configures a Writer.
type WriterOption func(*writerOpts)

// WriterConcurrency sets the number of blocks compressed in parallel.
// The default is runtime.GOMAXPROCS(-1).
func WriterConcurrency(n int) WriterOption {
	return func(o *writerOpts) { o.concurrency = n }
}

// WriterBlockSize sets the uncompressed size of each XZ block.
func WriterBlockSize(n int) WriterOption {
	return func(o *writerOpts) { o.blockSize = n }
}

// WriterDictSize sets the LZMA2 dictionary size used for every block.
func WriterDictSize(n uint32) WriterOption {
	return func(o *writerOpts) { o.dictSize = n }
}

// WriterQueueSize overrides the pipeline's work-item pool size.
func WriterQueueSize(n int) WriterOption {
	return func(o *writerOpts) { o.queueOverride = n }
}

// WriterVerbose enables per-block trace logging.
func WriterVerbose(v bool) WriterOption {
	return func(o *writerOpts) { o.verbose = v }
}

// WriterRaw disables tar-aware file-index construction: the input is
// compressed as an opaque byte stream with no file index block.
func WriterRaw(v bool) WriterOption {
	return func(o *writerOpts) { o.raw = v }
}

// WriterSendUpdates arranges for one Progress value to be sent per block
// as it's written out, in split order.
func WriterSendUpdates(ch chan<- Progress) WriterOption {
	return func(o *writerOpts) { o.progressCh = ch }
}

// Writer compresses bytes written to it into an indexed, multi-block XZ
// stream. If not created with WriterRaw, Writer parses the bytes written
// as a tar stream on the fly to build the file index appended as the
// archive's final block; input that fails to parse before its first tar
// header is compressed as raw data with no file index.
type Writer struct {
	ctx  context.Context
	dst  io.Writer
	opts writerOpts
	tr   trace.T

	rt *pipeline.Runtime

	buf []byte

	tarPW   *io.PipeWriter
	tarDone chan struct{}

	mu                sync.Mutex
	entries           []fileindex.Entry
	totalUncompressed int64
	autoRaw           bool

	writerDone chan error
	closeOnce  sync.Once
	closeErr   error
}

// NewWriter returns a Writer that compresses into dst.
func NewWriter(ctx context.Context, dst io.Writer, opts ...WriterOption) *Writer {
	o := writerOpts{
		concurrency: runtime.GOMAXPROCS(-1),
		blockSize:   DefaultBlockSize,
		dictSize:    DefaultDictSize,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	if o.blockSize < MinBlockSize {
		o.blockSize = MinBlockSize
	}

	t := trace.New(o.verbose)
	pool := workitem.New(o.concurrency, o.queueOverride, t.Printf)
	rt := pipeline.New(pool.Items, o.concurrency)

	w := &Writer{
		ctx:        ctx,
		dst:        dst,
		opts:       o,
		tr:         t,
		rt:         rt,
		writerDone: make(chan error, 1),
	}
	rt.StartWorkers(w.encodeItem)

	if !o.raw {
		var pr *io.PipeReader
		pr, w.tarPW = io.Pipe()
		w.tarDone = make(chan struct{})
		go w.scanTar(pr)
	}
	go w.mergeAndWrite()
	return w
}

// Write implements io.Writer. p is split into fixed-size blocks and
// dispatched for parallel compression as soon as a block fills.
func (w *Writer) Write(p []byte) (int, error) {
	total := len(p)
	if w.tarPW != nil {
		if _, err := w.tarPW.Write(p); err != nil {
			return 0, err
		}
	}
	w.mu.Lock()
	w.totalUncompressed += int64(len(p))
	w.mu.Unlock()

	for len(p) > 0 {
		n := w.opts.blockSize - len(w.buf)
		if n > len(p) {
			n = len(p)
		}
		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		if len(w.buf) == w.opts.blockSize {
			w.flushBlock()
		}
	}
	return total, nil
}

func (w *Writer) flushBlock() {
	_, payload := w.rt.Free().Pop()
	it := payload.(*workitem.Item)
	it.EnsureCapacity(len(w.buf), 0)
	it.Input = it.Input[:len(w.buf)]
	copy(it.Input, w.buf)
	it.InSize = len(w.buf)
	it.Err = nil
	w.buf = w.buf[:0]
	w.rt.Dispatch(it)
}

// Close flushes any partial trailing block, appends the file index (if
// not raw), writes the stream index and footer, and waits for all
// pending work to finish. It must be called exactly once.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		if len(w.buf) > 0 {
			w.flushBlock()
		}
		if w.tarPW != nil {
			w.tarPW.Close()
		}
		w.rt.StopSplitting()
		w.closeErr = <-w.writerDone
		w.rt.Wait()
	})
	return w.closeErr
}

func (w *Writer) encodeItem(_ int, it *workitem.Item) {
	start := time.Now()
	out, err := blockcodec.EncodeBlock(it.Input[:it.InSize], w.opts.dictSize)
	it.Err = err
	if err == nil {
		it.Output = append(it.Output[:0], out...)
	}
	_ = start
}

func (w *Writer) mergeAndWrite() {
	defer close(w.writerDone)
	flags := xzformat.StreamFlags{Check: xzformat.CheckCRC32}
	if err := xzformat.WriteStreamHeader(w.dst, flags); err != nil {
		w.writerDone <- err
		return
	}

	var records []xzformat.IndexRecord
	for {
		it, ok := w.rt.Next()
		if !ok {
			break
		}
		if it.Err != nil {
			w.writerDone <- it.Err
			return
		}
		if _, err := w.dst.Write(it.Output); err != nil {
			w.writerDone <- err
			return
		}
		hdr, hdrSize, err := xzformat.DecodeBlockHeader(bytes.NewReader(it.Output))
		if err != nil {
			w.writerDone <- fmt.Errorf("pxz: re-reading just-written block header: %w", err)
			return
		}
		records = append(records, xzformat.IndexRecord{
			UnpaddedSize:     uint64(xzformat.UnpaddedSize(hdrSize, hdr.CompressedSize, flags.Check)),
			UncompressedSize: uint64(it.InSize),
		})
		if w.opts.progressCh != nil {
			w.opts.progressCh <- Progress{Block: it.Seq, Compressed: len(it.Output), Size: it.InSize}
		}
		w.rt.Recycle(it)
	}

	if w.tarDone != nil {
		<-w.tarDone
		w.mu.Lock()
		raw := w.autoRaw
		entries := append(append([]fileindex.Entry{}, w.entries...), fileindex.Entry{Name: "", Offset: w.totalUncompressed})
		w.mu.Unlock()
		if !raw {
			idxBytes := fileindex.Encode(entries)
			out, err := blockcodec.EncodeBlock(idxBytes, w.opts.dictSize)
			if err != nil {
				w.writerDone <- err
				return
			}
			if _, err := w.dst.Write(out); err != nil {
				w.writerDone <- err
				return
			}
			hdr, hdrSize, err := xzformat.DecodeBlockHeader(bytes.NewReader(out))
			if err != nil {
				w.writerDone <- err
				return
			}
			records = append(records, xzformat.IndexRecord{
				UnpaddedSize:     uint64(xzformat.UnpaddedSize(hdrSize, hdr.CompressedSize, flags.Check)),
				UncompressedSize: uint64(len(idxBytes)),
			})
		}
	}

	index := xzformat.EncodeIndex(records)
	if _, err := w.dst.Write(index); err != nil {
		w.writerDone <- err
		return
	}
	if err := xzformat.WriteStreamFooter(w.dst, flags, int64(len(index))); err != nil {
		w.writerDone <- err
		return
	}
	w.writerDone <- nil
}

// countingReader tracks how many bytes have been read through it, giving
// the tar scanner the stream offset of each header it sees.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// scanTar parses the tar stream mirrored to pr by Write, recording each
// member's starting offset. A "._"-prefixed entry (the AppleDouble
// sidecar some tar writers emit for extended attributes) is coalesced
// into the offset of the real entry that follows it, rather than kept as
// its own index entry.
func (w *Writer) scanTar(pr *io.PipeReader) {
	defer close(w.tarDone)
	cr := &countingReader{r: pr}
	tr := tar.NewReader(cr)

	pendingOffset := int64(-1)
	sawAnyEntry := false
	for {
		// Next skips the previous member's padding before reading this
		// header, so the header itself starts at the next 512-byte boundary.
		offsetBeforeHeader := tarPadded(cr.n)
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			w.mu.Lock()
			if !sawAnyEntry {
				w.autoRaw = true
				w.entries = nil
			}
			w.mu.Unlock()
			io.Copy(io.Discard, pr) //nolint:errcheck
			return
		}
		sawAnyEntry = true
		useOffset := offsetBeforeHeader
		if pendingOffset >= 0 {
			useOffset = pendingOffset
		}
		if strings.HasPrefix(path.Base(hdr.Name), "._") {
			if pendingOffset < 0 {
				pendingOffset = offsetBeforeHeader
			}
			io.Copy(io.Discard, tr) //nolint:errcheck
			continue
		}
		w.mu.Lock()
		w.entries = append(w.entries, fileindex.Entry{Name: hdr.Name, Offset: useOffset})
		w.mu.Unlock()
		pendingOffset = -1
		io.Copy(io.Discard, tr) //nolint:errcheck
	}
	io.Copy(io.Discard, pr) //nolint:errcheck
}

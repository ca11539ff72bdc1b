// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package pipeline implements the free/work/merged three-queue runtime
// shared by both the compressing and decompressing splitters: one
// splitter goroutine fills items from the free queue and dispatches them
// to the work queue, a pool of worker goroutines drain work and push to
// merged, and the caller drains merged in split order.
package pipeline

import (
	"container/heap"
	"sync"
	"sync/atomic"

	"github.com/cosnicolaou/pxz/internal/queue"
	"github.com/cosnicolaou/pxz/internal/workitem"
)

// ProcessFunc performs one worker's unit of work on it, in place.
type ProcessFunc func(threadIdx int, it *workitem.Item)

// Runtime owns the free/work/merged queues, the worker pool and the
// reorder buffer that restores split order on the way out.
type Runtime struct {
	free, work, merged *queue.Queue
	workers            int

	splitSeq uint64 // atomic

	mu       sync.Mutex
	mergeSeq uint64
	pending  itemHeap
	stopped  bool

	wg sync.WaitGroup
}

// New creates a runtime over pool, pre-loading every item onto the free
// queue. workers is the number of worker goroutines StartWorkers will
// launch.
func New(pool []*workitem.Item, workers int) *Runtime {
	r := &Runtime{
		workers:  workers,
		free:     queue.New(nil),
		work:     queue.New(nil),
		merged:   queue.New(nil),
		mergeSeq: 1,
	}
	for _, it := range pool {
		r.free.Push(queue.Data, it)
	}
	return r
}

// Free returns the pool of currently-unused items; a splitter pops from
// it to obtain a buffer to fill.
func (r *Runtime) Free() *queue.Queue { return r.free }

// Work returns the queue workers drain.
func (r *Runtime) Work() *queue.Queue { return r.work }

// Dispatch stamps it with the next split sequence number and hands it to
// the worker pool.
func (r *Runtime) Dispatch(it *workitem.Item) {
	it.Seq = atomic.AddUint64(&r.splitSeq, 1)
	r.work.Push(queue.Data, it)
}

// DispatchMerged stamps it and pushes it directly to the merged queue,
// bypassing the worker pool entirely. Used for streamed decode chunks
// that are already in their final, decoded form by the time the splitter
// produces them.
func (r *Runtime) DispatchMerged(it *workitem.Item) {
	it.Seq = atomic.AddUint64(&r.splitSeq, 1)
	r.merged.Push(queue.Data, it)
}

// StartWorkers launches the worker pool. Each worker pops from work,
// invokes process and pushes the result to merged; on a Stop tag it
// decrements the live-worker count and exits, and the last worker to
// exit pushes a single Stop to merged so Next can terminate.
func (r *Runtime) StartWorkers(process ProcessFunc) {
	remaining := int32(r.workers)
	r.wg.Add(r.workers)
	for i := 0; i < r.workers; i++ {
		go func(idx int) {
			defer r.wg.Done()
			for {
				tag, payload := r.work.Pop()
				if tag == queue.Stop {
					if atomic.AddInt32(&remaining, -1) == 0 {
						r.merged.Push(queue.Stop, nil)
					}
					return
				}
				it := payload.(*workitem.Item)
				process(idx, it)
				r.merged.Push(queue.Data, it)
			}
		}(i)
	}
}

// StopSplitting pushes one Stop token per worker onto the work queue.
// Call it once the splitter has no more input to dispatch.
func (r *Runtime) StopSplitting() {
	for i := 0; i < r.workers; i++ {
		r.work.Push(queue.Stop, nil)
	}
}

// Wait blocks until every worker goroutine has exited.
func (r *Runtime) Wait() { r.wg.Wait() }

// Next returns the next item in split order. It returns ok=false once the
// Stop sentinel has propagated through merged and the reorder buffer has
// fully drained.
func (r *Runtime) Next() (*workitem.Item, bool) {
	for {
		r.mu.Lock()
		if len(r.pending) > 0 && r.pending[0].Seq == r.mergeSeq {
			it := heap.Pop(&r.pending).(*workitem.Item)
			r.mergeSeq++
			r.mu.Unlock()
			return it, true
		}
		done := r.stopped && len(r.pending) == 0
		r.mu.Unlock()
		if done {
			return nil, false
		}

		tag, payload := r.merged.Pop()
		if tag == queue.Stop {
			r.mu.Lock()
			r.stopped = true
			r.mu.Unlock()
			continue
		}
		it := payload.(*workitem.Item)
		r.mu.Lock()
		heap.Push(&r.pending, it)
		r.mu.Unlock()
	}
}

// Recycle returns it to the free queue for reuse by the splitter.
func (r *Runtime) Recycle(it *workitem.Item) {
	r.free.Push(queue.Data, it)
}

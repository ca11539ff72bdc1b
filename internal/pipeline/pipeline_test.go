// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pipeline_test

import (
	"testing"

	"github.com/cosnicolaou/pxz/internal/pipeline"
	"github.com/cosnicolaou/pxz/internal/workitem"
)

func TestRoundTripOrdering(t *testing.T) {
	const n = 200
	pool := workitem.New(4, 8, nil)
	rt := pipeline.New(pool.Items, 4)

	rt.StartWorkers(func(_ int, it *workitem.Item) {
		// double the single input byte so workers can finish in any order
		// and the test can still verify reordering.
		it.Output = append(it.Output[:0], it.Input[0]*2)
	})

	go func() {
		for i := 0; i < n; i++ {
			_, payload := rt.Free().Pop()
			it := payload.(*workitem.Item)
			it.Input = append(it.Input[:0], byte(i))
			rt.Dispatch(it)
		}
		rt.StopSplitting()
	}()

	got := make([]byte, 0, n)
	for {
		it, ok := rt.Next()
		if !ok {
			break
		}
		got = append(got, it.Output[0])
		rt.Recycle(it)
	}
	rt.Wait()

	if len(got) != n {
		t.Fatalf("got %d items, want %d", len(got), n)
	}
	for i, v := range got {
		if want := byte(i * 2); v != want {
			t.Errorf("item %d: got %d, want %d", i, v, want)
		}
	}
}

func TestDispatchMergedInterleavesWithWorkers(t *testing.T) {
	pool := workitem.New(2, 4, nil)
	rt := pipeline.New(pool.Items, 2)
	rt.StartWorkers(func(_ int, it *workitem.Item) {
		it.Output = append(it.Output[:0], it.Input[0])
	})

	_, p1 := rt.Free().Pop()
	it1 := p1.(*workitem.Item)
	it1.Input = append(it1.Input[:0], 'a')
	rt.Dispatch(it1) // seq 1, via worker

	it2 := &workitem.Item{Kind: workitem.Continuation}
	it2.Output = append(it2.Output[:0], 'b')
	rt.DispatchMerged(it2) // seq 2, direct

	rt.StopSplitting()

	var out []byte
	for {
		it, ok := rt.Next()
		if !ok {
			break
		}
		out = append(out, it.Output[0])
	}
	if string(out) != "ab" {
		t.Fatalf("got %q, want %q", out, "ab")
	}
	rt.Wait()
}

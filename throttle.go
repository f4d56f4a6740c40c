// Copyright (C) The Strsweep Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strsweep

import "sync"

// throttle runs an arbitrary number of goroutines with bounded
// concurrency, remembering the first error any of them reports.
type throttle struct {
	Max       int
	wg        sync.WaitGroup
	ch        chan struct{}
	setupOnce sync.Once
	mtx       sync.Mutex
	err       error
}

func (t *throttle) Acquire() {
	t.setupOnce.Do(func() {
		max := t.Max
		if max < 1 {
			max = 1
		}
		t.ch = make(chan struct{}, max)
	})
	t.wg.Add(1)
	t.ch <- struct{}{}
}

func (t *throttle) Release() {
	<-t.ch
	t.wg.Done()
}

func (t *throttle) Report(err error) {
	if err == nil {
		return
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if t.err == nil {
		t.err = err
	}
}

func (t *throttle) Err() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.err
}

// Wait blocks until all acquired slots have been released, then
// returns the first reported error, if any.
func (t *throttle) Wait() error {
	t.wg.Wait()
	return t.Err()
}

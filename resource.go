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
	"context"
	"sync/atomic"

	"github.com/go-uringrt/uringrt/internal/op"
	"github.com/go-uringrt/uringrt/internal/wchan"
)

// resource is the user-side handle for one registered fd: an id the
// worker recognizes, the Operations table shared by pointer with the
// worker's own copy, and the bookkeeping needed to send exactly one
// CloseResource no matter how many split halves exist.
//
// opsGate is this module's resolution of the ops-disabled Open
// Question: every accessor waits on the gate first. A resource's
// Operations table is never swapped out (internal/slab's growth copies
// only *Resource pointers), and nothing in this module engages the
// gate, so the wait never blocks (see opsGate).
type resource struct {
	rt      *Runtime
	id      uint32
	rawFd   int
	ops     *op.Table
	refs    atomic.Int32

	closing atomic.Bool
}

func newResource(rt *Runtime, id uint32, rawFd int, ops *op.Table) *resource {
	r := &resource{rt: rt, id: id, rawFd: rawFd, ops: ops}
	r.refs.Store(1)
	return r
}

// fd returns the raw file descriptor this resource was registered
// with, for filling a SQE's Fd field directly (this module submits
// plain fds rather than registering a fixed-file table).
func (r *resource) fd() int {
	return r.rawFd
}

// clone bumps the refcount for a split read/write half and returns the
// same underlying resource.
func (r *resource) clone() *resource {
	r.refs.Add(1)
	return r
}

// slotFor waits on the ops-disabled gate (if the runtime is currently
// resizing its slab) and returns the requested op slot.
func (r *resource) slotFor(ctx context.Context, opID uint32) (*op.Slot, error) {
	if r.rt == nil || !r.rt.data.Alive() {
		return nil, ErrNoRuntime
	}
	if err := r.rt.opsGate.wait(ctx); err != nil {
		return nil, err
	}
	return r.ops.Slot(opID), nil
}

// close decrements the refcount and, at zero, asks the worker to close
// the underlying fd. Idempotent: calling it again once refs has
// already reached zero is a no-op, matching spec.md's Drop semantics
// translated to an explicit Close().
func (r *resource) close() error {
	if r.refs.Add(-1) > 0 {
		return nil
	}
	if !r.closing.CompareAndSwap(false, true) {
		return nil
	}
	if r.rt == nil || !r.rt.data.Alive() {
		return nil
	}
	complete := make(chan error, 1)
	r.rt.control.Send(wchan.CloseResource{ResourceID: r.id, Complete: complete})
	return <-complete
}

// opsGate blocks new operations while its resizing flag is set; it does
// not drain in-flight operations, and no code in this module sets the
// flag (see DESIGN.md Open Questions).
//
// In the original Rust runtime this guards a Slab<WorkerResource>
// reallocation that can move a WorkerResource in memory; here
// internal/slab.Slab grows by copying *Resource pointers, and each
// Resource's op.Table is a separate, never-moved allocation, so no
// caller can ever observe a resize in flight. The gate is kept as the
// extension point spec.md's Open Question calls for — wait is always a
// no-op today — rather than omitted, so a future worker-local resize
// policy that does need to pause callers has somewhere to hook in.
type opsGate struct {
	resizing atomic.Bool
}

func newOpsGate() *opsGate {
	return &opsGate{}
}

// wait returns immediately unless a resize is in progress, in which
// case it blocks until ctx is done (no caller currently sets resizing,
// so this path is unreachable in practice today).
func (g *opsGate) wait(ctx context.Context) error {
	if !g.resizing.Load() {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

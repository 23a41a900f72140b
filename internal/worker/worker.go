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

// Package worker runs the single goroutine that owns the completion
// side of the ring: it merges ring completions with the control
// channel (internal/wchan), routes CQEs to operation slots, and drives
// the cleanup pipeline for resources mid-close.
package worker

import (
	"context"
	"sync"
	"syscall"

	"github.com/go-uringrt/uringrt/concurrency/gopool"
	"github.com/go-uringrt/uringrt/internal/iouring"
	"github.com/go-uringrt/uringrt/internal/op"
	"github.com/go-uringrt/uringrt/internal/rtlog"
	"github.com/go-uringrt/uringrt/internal/slab"
	"github.com/go-uringrt/uringrt/internal/wchan"
	"github.com/go-uringrt/uringrt/readiness"
)

// Resource is what the worker keeps per registered fd: the raw
// descriptor (closed with close(2) once none of its operations is still
// in the kernel, or at worker shutdown) and the Operations
// table shared by pointer with the corresponding user-side handle.
type Resource struct {
	Fd      int
	Ops     *op.Table
	closing bool
}

// Worker is the event loop. Build it via New and run it with Run in its
// own goroutine (the caller is expected to use the adapted
// concurrency/gopool so a panic is recovered and logged rather than
// crashing the process).
type Worker struct {
	ring        *iouring.IoUring
	readyFd     readiness.Fd
	control     *wchan.Chan
	completions *iouring.CompletionStream
	log         rtlog.Logger
	resources   *slab.Slab[*Resource]
	cleanup     cleanupPipeline

	mu      sync.Mutex
	stopped bool
}

// New builds a Worker over an already-constructed ring.
func New(ring *iouring.IoUring, readyFd readiness.Fd, control *wchan.Chan, log rtlog.Logger) *Worker {
	if log == nil {
		log = rtlog.Default()
	}
	return &Worker{
		ring:        ring,
		readyFd:     readyFd,
		control:     control,
		completions: iouring.NewCompletionStream(ring, readyFd),
		log:         log,
		resources:   slab.New[*Resource](),
	}
}

// Run drains completions and control messages until a Stop message is
// received or the control channel is closed (all senders gone). It
// returns once every resource has been closed (best-effort).
//
// Completions arrive from a dedicated goroutine pumping
// internal/iouring.CompletionStream.Next into a channel, so they can be
// selected against the control channel directly instead of this loop
// ever making an exclusive blocking call that only a completion (and
// not a control message) can wake it from.
func (w *Worker) Run(ctx context.Context) {
	cqeCh := make(chan iouring.IoUringCQE)
	errCh := make(chan error, 1)
	gopool.CtxGo(ctx, func() { w.pumpCompletions(ctx, cqeCh, errCh) })

	for {
		// Bias toward the completion queue while the cleanup pipeline
		// is non-empty: a resource waiting to be torn down should not
		// be starved by control-plane chatter, matching spec.md's
		// "prefer CQ while cleanup has entries" priority policy.
		if w.cleanup.len() > 0 {
			select {
			case cqe := <-cqeCh:
				w.handleCQE(cqe)
				continue
			default:
			}
		}

		select {
		case msg, ok := <-w.control.C():
			if !ok {
				w.shutdown()
				return
			}
			if w.handleMessage(msg) {
				w.shutdown()
				return
			}
		case cqe := <-cqeCh:
			w.handleCQE(cqe)
		case <-errCh:
			// Context cancelled or the readiness source closed; treat
			// either as a shutdown request so the loop always
			// terminates instead of spinning.
			w.shutdown()
			return
		}
	}
}

// pumpCompletions repeatedly calls completions.Next, the sole reader of
// the ring's completion queue, and forwards each result to cqeCh (or
// any terminal error to errCh) for Run's select to consume.
func (w *Worker) pumpCompletions(ctx context.Context, cqeCh chan<- iouring.IoUringCQE, errCh chan<- error) {
	for {
		cqe, err := w.completions.Next(ctx)
		if err != nil {
			select {
			case errCh <- err:
			case <-ctx.Done():
			}
			return
		}
		select {
		case cqeCh <- cqe:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) handleCQE(cqe iouring.IoUringCQE) {
	ed := op.DecodeEventData(cqe.UserData)

	if res, ok := w.resources.Get(ed.ResourceID); ok {
		if ed.OpID >= op.NumSlots {
			w.log.Printf("uringrt: completion for unknown op id %d (resource %d, res %d)", ed.OpID, ed.ResourceID, cqe.Res)
			return
		}
		slot := res.Ops.Slot(ed.OpID)
		slot.Wake(cqe.Res)
		return
	}

	// Not in the active slab: either it belongs to a resource in the
	// cleanup pipeline (expected — its fd was already removed from the
	// slab when the close was requested) or it is a genuinely unknown
	// id. Routing unconditionally into the cleanup pipeline's decrement
	// replaces the Rust source's separate CleanupStream polling
	// abstraction and its "still not proper" panic on this exact case.
	res, found, done := w.cleanup.complete(ed.ResourceID)
	if !found {
		w.log.Printf("uringrt: completion for unknown resource id %d (op %d, res %d)", ed.ResourceID, ed.OpID, cqe.Res)
		return
	}
	if done {
		w.closeFd(res)
	}
}

// handleMessage processes one control-channel message, returning true
// if it was a Stop request.
func (w *Worker) handleMessage(msg wchan.Message) bool {
	switch m := msg.(type) {
	case wchan.RegisterResource:
		res := &Resource{Fd: m.Fd, Ops: m.Ops}
		id, err := w.resources.Insert(res)
		m.Complete <- wchan.RegisterResult{ID: id, Err: err}

	case wchan.CloseResource:
		res, ok := w.resources.Remove(m.ResourceID)
		if !ok {
			if m.Complete != nil {
				m.Complete <- nil
			}
			return false
		}
		res.closing = true
		pending := 0
		for i := 0; i < op.NumSlots; i++ {
			if !res.Ops.Slot(uint32(i)).PollSubmit() {
				pending++
			}
		}
		if pending > 0 {
			w.cleanup.add(m.ResourceID, res, pending)
		} else {
			w.closeFd(res)
		}
		if m.Complete != nil {
			m.Complete <- nil
		}

	case wchan.Stop:
		if m.Complete != nil {
			defer close(m.Complete)
		}
		return true
	}
	return false
}

func (w *Worker) closeFd(res *Resource) {
	if res.Fd >= 0 {
		_ = syscall.Close(res.Fd)
	}
}

func (w *Worker) shutdown() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	for _, res := range w.cleanup.drain() {
		w.closeFd(res)
	}
	for _, res := range w.resources.Drain() {
		w.closeFd(res)
	}
}

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

package iouring

import "context"

// Waiter is satisfied by any readiness source capable of blocking until
// a watched descriptor is ready (readiness.Fd implements it). Declared
// locally instead of importing the readiness package, which itself
// imports iouring for DrainEventFd.
type Waiter interface {
	Wait(ctx context.Context) error
}

// CompletionStream turns a ring's completion queue plus a readiness
// source into a sequential stream of completions: it peeks the queue
// first and only blocks on the readiness source when the queue is
// genuinely empty. Grounded on the teacher's internal/iouring/eventloop.go
// ring.eventLoop WaitCQE loop, generalized to go through a pluggable
// readiness source instead of always blocking in io_uring_enter on the
// calling goroutine.
type CompletionStream struct {
	ring    *IoUring
	readyFd Waiter
}

// NewCompletionStream returns a stream reading completions from ring,
// parking on readyFd whenever the queue is empty.
func NewCompletionStream(ring *IoUring, readyFd Waiter) *CompletionStream {
	return &CompletionStream{ring: ring, readyFd: readyFd}
}

// Next blocks until a completion is available or ctx is done. The
// returned CQE is a copy detached from the ring buffer: PeekCQE's slot
// is freed for kernel reuse before Next returns, so callers never need
// to call AdvanceCQ themselves — and, unlike handing out the raw
// pointer, two goroutines can never race over when it is safe to reuse
// the slot.
func (cs *CompletionStream) Next(ctx context.Context) (IoUringCQE, error) {
	for {
		if cqe := cs.ring.PeekCQE(); cqe != nil {
			v := *cqe
			cs.ring.AdvanceCQ()
			return v, nil
		}
		if err := cs.readyFd.Wait(ctx); err != nil {
			return IoUringCQE{}, err
		}
	}
}

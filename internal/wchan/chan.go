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

// Package wchan is the control channel between resource handles and the
// worker goroutine: registration requests, close requests and the stop
// signal all funnel through one multi-producer, single-consumer queue.
package wchan

import "github.com/go-uringrt/uringrt/internal/op"

// Message is anything the worker goroutine can receive on its control
// channel alongside ring completions.
type Message interface {
	isMessage()
}

// RegisterResult is what a RegisterResource request resolves to: either
// a freshly allocated resource id, or the error the worker's resource
// slab returned instead (e.g. ErrTooManyResources).
type RegisterResult struct {
	ID  uint32
	Err error
}

// RegisterResource asks the worker to adopt fd under a freshly allocated
// resource id, sharing ops with the caller's Resource handle.
type RegisterResource struct {
	Fd       int
	Ops      *op.Table
	Complete chan RegisterResult
}

func (RegisterResource) isMessage() {}

// CloseResource asks the worker to remove resourceID and close its fd
// with close(2) once its in-flight op count reaches zero.
type CloseResource struct {
	ResourceID uint32
	Complete   chan error
}

func (CloseResource) isMessage() {}

// Stop asks the worker loop to close every remaining resource's fd and
// return; it does not wait for in-flight operations to complete.
type Stop struct {
	Complete chan struct{}
}

func (Stop) isMessage() {}

// Chan is a thin typed wrapper over a buffered Go channel. The Rust
// source this runtime is modeled on hand-rolls its own MPSC queue
// (VecDeque behind a Mutex plus a waker); Go's channel already is that
// primitive; so instead of reimplementing it, this just names the
// channel the way the rest of the runtime names its collaborators.
type Chan struct {
	c chan Message
}

// New returns a Chan with the given buffer depth.
func New(buffer int) *Chan {
	return &Chan{c: make(chan Message, buffer)}
}

// Send enqueues msg. Safe to call from any number of goroutines.
func (ch *Chan) Send(msg Message) {
	ch.c <- msg
}

// C exposes the receive side for use in the worker's select loop.
func (ch *Chan) C() <-chan Message {
	return ch.c
}

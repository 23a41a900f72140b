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

// Package uringrt is an io_uring-backed asynchronous I/O runtime core:
// register a socket, get back a handle whose Read/Write take a
// context.Context and park the calling goroutine on a channel instead
// of blocking an OS thread, while a single worker goroutine drains the
// kernel's completion queue and routes results back to whichever
// goroutine is waiting.
package uringrt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/go-uringrt/uringrt/concurrency/gopool"
	"github.com/go-uringrt/uringrt/internal/iouring"
	"github.com/go-uringrt/uringrt/internal/op"
	"github.com/go-uringrt/uringrt/internal/rtlog"
	"github.com/go-uringrt/uringrt/internal/slab"
	"github.com/go-uringrt/uringrt/internal/wchan"
	"github.com/go-uringrt/uringrt/internal/worker"
	"github.com/go-uringrt/uringrt/readiness"
)

// Builder configures a Runtime before it is built. The zero value is
// not usable; start from NewBuilder, which fills in spec.md §6's fixed
// ring policy (1024 entries, SQPOLL with a 1s idle window).
type Builder struct {
	setup       iouring.SetupConfig
	readyFactory func(uringEventFd int) (readiness.Fd, error)
	logger      rtlog.Logger
	pool        *gopool.Option
}

// NewBuilder returns a Builder preconfigured with this runtime's fixed
// ring policy.
func NewBuilder() *Builder {
	return &Builder{
		setup: iouring.DefaultSetupConfig(),
	}
}

// WithEntries overrides the submission queue depth.
func (b *Builder) WithEntries(entries uint32) *Builder {
	b.setup.Entries = entries
	return b
}

// WithSQPoll toggles the kernel-side polling thread and its idle
// window.
func (b *Builder) WithSQPoll(enabled bool, idleMillis uint32) *Builder {
	b.setup.SQPoll = enabled
	b.setup.SQThreadIdleMillis = idleMillis
	return b
}

// WithReadiness overrides how the runtime learns the completion
// eventfd is readable. Absent a call to this, Build uses
// readiness.NewEpoll.
func (b *Builder) WithReadiness(factory func(uringEventFd int) (readiness.Fd, error)) *Builder {
	b.readyFactory = factory
	return b
}

// WithLogger overrides the logger used for the places this runtime
// logs instead of panicking (see internal/rtlog).
func (b *Builder) WithLogger(log rtlog.Logger) *Builder {
	b.logger = log
	return b
}

// Build constructs the kernel ring, its completion eventfd and
// readiness source, and spawns the worker goroutine (via the adapted
// concurrency/gopool, so a worker panic is recovered and logged rather
// than taking the process down).
func (b *Builder) Build() (*Runtime, error) {
	ring, err := b.setup.Build()
	if err != nil {
		return nil, fmt.Errorf("uringrt: build ring: %w", err)
	}

	eventFd, err := iouring.NewCompletionEventFd(ring)
	if err != nil {
		ring.Close()
		return nil, fmt.Errorf("uringrt: register completion eventfd: %w", err)
	}

	readyFactory := b.readyFactory
	if readyFactory == nil {
		readyFactory = readiness.NewEpoll
	}
	readyFd, err := readyFactory(eventFd)
	if err != nil {
		ring.Close()
		return nil, fmt.Errorf("uringrt: build readiness source: %w", err)
	}

	log := b.logger
	if log == nil {
		log = rtlog.Default()
	}

	data := newUringData(ring)
	control := wchan.New(64)
	w := worker.New(ring, readyFd, control, log)

	rt := &Runtime{
		data:    data,
		control: control,
		readyFd: readyFd,
		opsGate: newOpsGate(),
		done:    make(chan struct{}),
	}

	pool := gopool.NewGoPool("uringrt-worker", b.pool)
	ctx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	pool.CtxGo(ctx, func() {
		defer close(rt.done)
		w.Run(ctx)
	})

	return rt, nil
}

// Runtime is a running io_uring worker plus the ring it owns. Obtain
// one from Builder.Build; every handle registered through it shares the
// same kernel ring and worker goroutine.
type Runtime struct {
	data    *uringData
	control *wchan.Chan
	readyFd readiness.Fd
	opsGate *opsGate
	cancel  context.CancelFunc
	done    chan struct{}

	stopOnce sync.Once
}

// RegisterTCP adopts conn's file descriptor into the runtime, returning
// a TCPStream. conn is consumed: its fd is duplicated into the ring's
// control and the original net.TCPConn should not be used afterward.
func (rt *Runtime) RegisterTCP(ctx context.Context, conn *net.TCPConn) (*TCPStream, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, ioError(err)
	}
	var dupFd int
	var dupErr error
	if err := raw.Control(func(fd uintptr) {
		dupFd, dupErr = dupCloseOnExec(int(fd))
	}); err != nil {
		return nil, ioError(err)
	}
	if dupErr != nil {
		return nil, ioError(dupErr)
	}
	_ = conn.Close()

	id, ops, err := rt.register(ctx, dupFd)
	if err != nil {
		return nil, err
	}
	stream := &TCPStream{res: newResource(rt, id, dupFd, ops)}
	newTCPStreamFinalizer(stream)
	return stream, nil
}

// NopStream returns a stream whose Next submits an IORING_OP_NOP and
// waits for its completion, useful for measuring round-trip latency
// and throughput without touching real I/O.
func (rt *Runtime) NopStream(ctx context.Context) (*NopStream, error) {
	id, ops, err := rt.register(ctx, -1)
	if err != nil {
		return nil, err
	}
	return &NopStream{res: newResource(rt, id, -1, ops)}, nil
}

func (rt *Runtime) register(ctx context.Context, fd int) (uint32, *op.Table, error) {
	if !rt.data.Alive() {
		return 0, nil, ErrNoRuntime
	}
	ops := op.NewTable()
	complete := make(chan wchan.RegisterResult, 1)
	rt.control.Send(wchan.RegisterResource{Fd: fd, Ops: ops, Complete: complete})
	select {
	case result := <-complete:
		if result.Err != nil {
			if errors.Is(result.Err, slab.ErrTooManyResources) {
				return 0, nil, ErrTooManyResources
			}
			return 0, nil, ioError(result.Err)
		}
		return result.ID, ops, nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

// Stop asks the worker to drain outstanding resources and return, then
// tears down the ring. Safe to call more than once.
func (rt *Runtime) Stop() error {
	var err error
	rt.stopOnce.Do(func() {
		complete := make(chan struct{})
		rt.control.Send(wchan.Stop{Complete: complete})
		<-complete
		<-rt.done
		rt.cancel()
		_ = rt.readyFd.Close()
		err = rt.data.shutdown()
	})
	return err
}

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

//go:build linux

package readiness

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/go-uringrt/uringrt/concurrency/gopool"
	"github.com/go-uringrt/uringrt/internal/iouring"
)

// ErrClosed is returned by Wait once Close has been called.
var ErrClosed = errors.New("readiness: closed")

// epoll is the default Fd: a dedicated epoll instance level-triggered
// on a single descriptor, run on its own goroutine. Adapted from the
// teacher's connstate epoll wait loop, simplified down from a general
// per-connection fd table (connstate watches arbitrarily many sockets
// for half-close) to the one thing this runtime needs watched: the
// uring's registered completion eventfd.
type epoll struct {
	epfd        int
	uringEventFd int

	ready  chan struct{}
	closed chan struct{}
	once   sync.Once
}

// NewEpoll returns a Fd that watches uringEventFd for readability using
// a dedicated epoll instance and goroutine.
func NewEpoll(uringEventFd int) (Fd, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("readiness: epoll_create1: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(uringEventFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, uringEventFd, &ev); err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("readiness: epoll_ctl: %w", err)
	}

	e := &epoll{
		epfd:         epfd,
		uringEventFd: uringEventFd,
		ready:        make(chan struct{}, 1),
		closed:       make(chan struct{}),
	}
	gopool.Go(e.loop)
	return e, nil
}

// loop runs epoll_wait with no timeout, signalling ready (non-blocking,
// coalescing back-to-back wakeups) whenever the watched fd fires. The
// fd is level-triggered, so it keeps firing until the worker drains it
// — Wait callers are expected to do exactly that before waiting again.
func (e *epoll) loop() {
	events := make([]unix.EpollEvent, 1)
	for {
		n, err := unix.EpollWait(e.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n == 0 {
			continue
		}
		select {
		case e.ready <- struct{}{}:
		default:
		}
	}
}

// Wait blocks until the watched fd is readable or ctx is done. The
// eventfd is level-triggered, so on a genuine wakeup it drains the
// counter io_uring incremented before returning — otherwise epoll_wait
// would keep finding it readable and Wait would never actually block
// again.
func (e *epoll) Wait(ctx context.Context) error {
	select {
	case <-e.ready:
		_ = iouring.DrainEventFd(e.uringEventFd)
		return nil
	case <-e.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the epoll loop and releases its fd.
func (e *epoll) Close() error {
	var err error
	e.once.Do(func() {
		close(e.closed)
		err = unix.Close(e.epfd)
	})
	return err
}

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

package iouring

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// NewCompletionEventFd creates a non-blocking eventfd and registers it
// with ring so the kernel signals it whenever a CQE is posted. A
// readiness.Fd implementation can then watch this single descriptor
// instead of dedicating a thread to WaitCQE.
func NewCompletionEventFd(ring *IoUring) (int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return -1, fmt.Errorf("io_uring eventfd: %w", err)
	}
	if err := ring.RegisterEventFd(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// DrainEventFd consumes the 8-byte counter eventfd writes on signal, as
// required before the kernel will deliver further notifications.
func DrainEventFd(fd int) error {
	var buf [8]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err == unix.EAGAIN {
			return nil
		}
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

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

// SetupConfig controls how NewIoUringWithParams builds the ring: queue
// depth and the optional kernel-side SQPOLL thread.
type SetupConfig struct {
	// Entries is the submission queue depth (rounded up to a power of two
	// by the kernel). The completion queue defaults to 2x this.
	Entries uint32

	// SQPoll, when true, asks the kernel to spin up a dedicated polling
	// thread that submits SQEs without an io_uring_enter(2) call from
	// userspace, at the cost of a busy kernel thread.
	SQPoll bool

	// SQThreadIdleMillis is how long the SQPOLL thread spins with no work
	// before going back to sleep. Ignored unless SQPoll is set.
	SQThreadIdleMillis uint32
}

// DefaultSetupConfig returns the configuration this runtime uses absent
// explicit overrides: a 1024-entry ring with SQPOLL enabled and a
// generous idle window, matching a host that keeps the ring reasonably
// busy.
func DefaultSetupConfig() SetupConfig {
	return SetupConfig{
		Entries:            1024,
		SQPoll:             true,
		SQThreadIdleMillis: 1000,
	}
}

// Build constructs the IoUringParams this config implies and creates the
// ring.
func (c SetupConfig) Build() (*IoUring, error) {
	var flags uint32
	if c.SQPoll {
		flags |= IORING_SETUP_SQPOLL
	}
	return NewIoUringWithParams(c.Entries, IoUringParams{
		Flags:        flags,
		SqThreadIdle: c.SQThreadIdleMillis,
	})
}

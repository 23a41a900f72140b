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

// Package readiness bridges "the io_uring completion eventfd is
// readable" to whatever reactor the host program already runs. The
// core never assumes one exists: it only ever calls Wait and treats the
// fd it's given as opaque.
package readiness

import "context"

// Fd is implemented by whatever watches a file descriptor for
// readability on behalf of the runtime.
type Fd interface {
	// Wait blocks until the underlying fd is readable or ctx is done.
	Wait(ctx context.Context) error
	// Close releases whatever Wait allocated.
	Close() error
}

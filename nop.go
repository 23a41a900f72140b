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

	"github.com/go-uringrt/uringrt/internal/iouring"
	"github.com/go-uringrt/uringrt/internal/op"
)

const nopOpID = op.ReadOp

// NopStream repeatedly submits IORING_OP_NOP and waits for its
// completion — useful for measuring round-trip submission/completion
// latency and throughput without touching real I/O, and for exercising
// the worker loop in tests without a kernel socket.
type NopStream struct {
	res *resource
	n   uint32
}

// Next submits one nop and returns a monotonically increasing sequence
// number on completion.
func (s *NopStream) Next(ctx context.Context) (uint32, error) {
	slot, err := s.res.slotFor(ctx, nopOpID)
	if err != nil {
		return 0, err
	}

	err = slot.Start(func() error {
		return s.res.rt.data.submit(func(sqe *iouring.IoUringSQE) {
			sqe.Opcode = iouring.IORING_OP_NOP
			sqe.Fd = -1
			sqe.UserData = op.EventData{ResourceID: s.res.id, OpID: nopOpID}.Encode()
		})
	})
	if err != nil {
		return 0, ioError(err)
	}

	res := slot.Wait()
	if res < 0 {
		return 0, errnoError(res)
	}
	s.n++
	return s.n, nil
}

// Close releases the underlying resource.
func (s *NopStream) Close() error {
	return s.res.close()
}

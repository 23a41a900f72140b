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
	"io"
	"math"
	"runtime"
	"unsafe"

	"github.com/go-uringrt/uringrt/internal/iouring"
	"github.com/go-uringrt/uringrt/internal/op"
)

// Fixed op ids within every resource's 4-slot Operations table.
const (
	readOpID  = op.ReadOp
	writeOpID = op.WriteOp
	closeOpID = op.CloseOp
)

// TCPStream is a registered TCP socket: Read and Write submit through
// io_uring and block the calling goroutine on the slot's notify
// channel instead of the kernel, until the completion arrives or ctx is
// done.
type TCPStream struct {
	res *resource
}

func newTCPStreamFinalizer(s *TCPStream) {
	runtime.SetFinalizer(s, func(s *TCPStream) {
		_ = s.Close()
	})
}

// Read submits a recv for buf and waits for its completion.
func (s *TCPStream) Read(ctx context.Context, buf []byte) (int, error) {
	return readInto(ctx, s.res, readOpID, buf)
}

// Write submits a send for buf and waits for its completion. Partial
// writes are returned honestly; callers (or the adapted bufiox writer)
// are expected to loop.
func (s *TCPStream) Write(ctx context.Context, buf []byte) (int, error) {
	return writeFrom(ctx, s.res, writeOpID, buf)
}

// Shutdown waits for any in-flight read/write on this handle to leave
// the kernel, then submits a real IORING_OP_CLOSE and waits for it —
// resolving spec.md's Open Question about poll_close always being a
// genuine close rather than left unimplemented.
func (s *TCPStream) Shutdown(ctx context.Context) error {
	return shutdownResource(ctx, s.res)
}

// Close decrements the shared refcount and, at zero, asks the worker to
// close the underlying fd. Safe to call more than once.
func (s *TCPStream) Close() error {
	return s.res.close()
}

// Split returns independent read/write halves sharing the same
// underlying resource. Each half holds its own reference and s keeps
// its own, so exactly one CloseResource is sent once both halves and s
// have been closed (s through Close or its finalizer); closing only the
// two halves does not send it.
func (s *TCPStream) Split() (*ReadHalf, *WriteHalf) {
	return &ReadHalf{res: s.res.clone()}, &WriteHalf{res: s.res.clone()}
}

// ReadHalf is the read side of a split TCPStream.
type ReadHalf struct {
	res *resource
}

func (r *ReadHalf) Read(ctx context.Context, buf []byte) (int, error) {
	return readInto(ctx, r.res, readOpID, buf)
}

func (r *ReadHalf) Close() error { return r.res.close() }

// WriteHalf is the write side of a split TCPStream.
type WriteHalf struct {
	res *resource
}

func (w *WriteHalf) Write(ctx context.Context, buf []byte) (int, error) {
	return writeFrom(ctx, w.res, writeOpID, buf)
}

func (w *WriteHalf) Close() error { return w.res.close() }

// readInto is shared by TCPStream.Read and ReadHalf.Read.
func readInto(ctx context.Context, r *resource, opID uint32, buf []byte) (int, error) {
	if r.closing.Load() {
		return 0, ErrResourceClosing
	}
	if uint64(len(buf)) > math.MaxUint32 {
		return 0, ErrBufferTooLarge
	}
	slot, err := r.slotFor(ctx, opID)
	if err != nil {
		return 0, err
	}

	iov := iouring.Iovec{}
	iov.Set(buf)

	err = slot.Start(func() error {
		return r.rt.data.submit(func(sqe *iouring.IoUringSQE) {
			sqe.Opcode = iouring.IORING_OP_RECV
			sqe.Fd = int32(r.fd())
			sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
			sqe.Len = uint32(len(buf))
			sqe.UserData = op.EventData{ResourceID: r.id, OpID: opID}.Encode()
		})
	})
	if err != nil {
		return 0, ioError(err)
	}

	res, waitErr := waitOrCancel(ctx, slot, buf)
	if waitErr != nil {
		return 0, waitErr
	}
	if res < 0 {
		return 0, errnoError(res)
	}
	if res == 0 {
		return 0, io.EOF
	}
	return int(res), nil
}

// writeFrom is shared by TCPStream.Write and WriteHalf.Write.
func writeFrom(ctx context.Context, r *resource, opID uint32, buf []byte) (int, error) {
	if r.closing.Load() {
		return 0, ErrResourceClosing
	}
	if uint64(len(buf)) > math.MaxUint32 {
		return 0, ErrBufferTooLarge
	}
	slot, err := r.slotFor(ctx, opID)
	if err != nil {
		return 0, err
	}

	err = slot.Start(func() error {
		return r.rt.data.submit(func(sqe *iouring.IoUringSQE) {
			sqe.Opcode = iouring.IORING_OP_SEND
			sqe.Fd = int32(r.fd())
			sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
			sqe.Len = uint32(len(buf))
			sqe.UserData = op.EventData{ResourceID: r.id, OpID: opID}.Encode()
		})
	})
	if err != nil {
		return 0, ioError(err)
	}

	res, waitErr := waitOrCancel(ctx, slot, buf)
	if waitErr != nil {
		return 0, waitErr
	}
	if res < 0 {
		return 0, errnoError(res)
	}
	return int(res), nil
}

// waitOrCancel blocks on the slot's result until ctx is done. On
// cancellation it engages Slot.Cancel, pinning buf in a CancelPayload
// until the kernel's CQE lands (the worker releases it on completion),
// and returns ctx.Err() immediately rather than waiting further — the
// cooperative, buffer-retaining cancellation policy this runtime uses
// in place of IORING_OP_ASYNC_CANCEL.
func waitOrCancel(ctx context.Context, slot *op.Slot, buf []byte) (int32, error) {
	type result struct {
		res int32
	}
	done := make(chan result, 1)
	go func() {
		done <- result{res: slot.Wait()}
	}()

	select {
	case r := <-done:
		return r.res, nil
	case <-ctx.Done():
		// The closure's reference to buf is what keeps it alive for
		// the kernel until the worker calls Release on the CQE that
		// follows — there is nothing else to release here, since this
		// runtime does not register fixed buffers.
		if slot.Cancel(&op.CancelPayload{Release: func() { _ = buf }}) {
			return 0, ctx.Err()
		}
		// Lost the race to Wake: the operation already finished.
		r := <-done
		return r.res, nil
	}
}

func shutdownResource(ctx context.Context, r *resource) error {
	if !r.closing.CompareAndSwap(false, true) {
		return nil
	}
	for _, id := range []uint32{readOpID, writeOpID} {
		slot := r.ops.Slot(id)
		for !slot.PollSubmit() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	}

	closeSlot := r.ops.Slot(closeOpID)
	err := closeSlot.Start(func() error {
		return r.rt.data.submit(func(sqe *iouring.IoUringSQE) {
			sqe.Opcode = iouring.IORING_OP_CLOSE
			sqe.Fd = int32(r.fd())
			sqe.UserData = op.EventData{ResourceID: r.id, OpID: closeOpID}.Encode()
		})
	})
	if err != nil {
		return ioError(err)
	}
	res := closeSlot.Wait()
	if res < 0 {
		return errnoError(res)
	}
	return nil
}

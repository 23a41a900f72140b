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

	"github.com/go-uringrt/uringrt/bufiox"
)

// streamAdapter makes a TCPStream satisfy io.Reader/io.Writer against a
// fixed background context, so the buffered convenience layer below can
// sit on top of it the same way the teacher's netx.Wrap sits on top of
// a net.Conn.
type streamAdapter struct {
	ctx    context.Context
	stream *TCPStream
}

func (a streamAdapter) Read(p []byte) (int, error)  { return a.stream.Read(a.ctx, p) }
func (a streamAdapter) Write(p []byte) (int, error) { return a.stream.Write(a.ctx, p) }

// Buffered wraps stream in the adapted bufiox Reader/Writer pair, giving
// callers Next/Peek/Skip/Malloc-style zero-copy buffered access instead
// of raw Read/Write calls. ctx bounds every underlying Read/Write the
// buffer performs to refill or flush itself; cancelling it surfaces as
// an error from whichever bufiox call triggered the refill/flush, via
// this runtime's cooperative drop-and-wait cancellation.
func Buffered(ctx context.Context, stream *TCPStream) (bufiox.Reader, bufiox.Writer) {
	a := streamAdapter{ctx: ctx, stream: stream}
	return bufiox.NewDefaultReader(a), bufiox.NewDefaultWriter(a)
}

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
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrnoErrorMapsNegativeResultToErrno(t *testing.T) {
	err := errnoError(-int32(syscall.ECONNRESET))
	assert.True(t, errors.Is(err, &Error{Kind: KindIO}))

	var uerr *Error
	assert.True(t, errors.As(err, &uerr))
	assert.Equal(t, KindIO, uerr.Kind)
	assert.True(t, errors.Is(uerr.Err, syscall.ECONNRESET))
}

func TestErrnoErrorNilOnNonNegative(t *testing.T) {
	assert.NoError(t, errnoError(0))
	assert.NoError(t, errnoError(42))
}

func TestErrorIsComparesKindOnly(t *testing.T) {
	wrapped := ioError(syscall.EPIPE)
	assert.True(t, errors.Is(wrapped, &Error{Kind: KindIO}))
	assert.False(t, errors.Is(wrapped, ErrResourceClosing))
	assert.True(t, errors.Is(ErrResourceClosing, ErrResourceClosing))
}

func TestErrorStringIncludesKindAndCause(t *testing.T) {
	err := ioError(syscall.EPIPE)
	assert.Contains(t, err.Error(), "io error")
	assert.Contains(t, err.Error(), syscall.EPIPE.Error())

	assert.Equal(t, "uringrt: resource closing", ErrResourceClosing.Error())
}

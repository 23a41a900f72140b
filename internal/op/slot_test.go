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

package op

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartWaitWake(t *testing.T) {
	s := NewSlot()
	require.Equal(t, Idle, s.State())

	err := s.Start(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, Waiting, s.State())
	assert.False(t, s.PollSubmit())

	go s.Wake(42)
	res := s.Wait()
	assert.Equal(t, int32(42), res)
	assert.Equal(t, Finished, s.State())
}

func TestStartRollsBackOnSubmitError(t *testing.T) {
	s := NewSlot()
	boom := errors.New("submit failed")

	err := s.Start(func() error { return boom })
	assert.Equal(t, boom, err)
	assert.Equal(t, Idle, s.State())
}

func TestStartRejectsAlreadyInFlight(t *testing.T) {
	s := NewSlot()
	require.NoError(t, s.Start(func() error { return nil }))

	err := s.Start(func() error { return nil })
	assert.IsType(t, ErrAlreadyInFlight{}, err)
}

func TestCancelThenWakeReleasesPayload(t *testing.T) {
	s := NewSlot()
	require.NoError(t, s.Start(func() error { return nil }))

	released := false
	ok := s.Cancel(&CancelPayload{Release: func() { released = true }})
	require.True(t, ok)
	assert.Equal(t, Cancelled, s.State())

	s.Wake(-1)
	assert.True(t, released)
	assert.Equal(t, Finished, s.State())
}

func TestCancelLosesRaceToWake(t *testing.T) {
	s := NewSlot()
	require.NoError(t, s.Start(func() error { return nil }))

	s.Wake(7)
	ok := s.Cancel(&CancelPayload{Release: func() {}})
	assert.False(t, ok, "cancel must not succeed once the slot already finished")

	assert.Equal(t, int32(7), s.Wait())
}

func TestCancelPublishesPayloadBeforeWakeCanObserveCancelled(t *testing.T) {
	// Regression test for a window where Cancel flipped the state to
	// Cancelled before storing payload: a Wake racing in right after
	// the CAS could see Cancelled with no payload yet and skip Release.
	// Whenever Cancel's CAS genuinely wins (ok==true), Wake is
	// guaranteed to run its Cancelled branch afterward and must
	// observe the payload, no matter how the two goroutines are
	// scheduled. Run many times under -race to flush out reordering.
	for i := 0; i < 500; i++ {
		s := NewSlot()
		require.NoError(t, s.Start(func() error { return nil }))

		released := make(chan struct{}, 1)
		cancelOK := make(chan bool, 1)
		go func() {
			cancelOK <- s.Cancel(&CancelPayload{Release: func() { released <- struct{}{} }})
		}()
		go s.Wake(-1)

		if ok := <-cancelOK; ok {
			select {
			case <-released:
			case <-time.After(time.Second):
				t.Fatal("payload never released after a successful Cancel")
			}
		}
	}
}

func TestPollSubmitReflectsInFlight(t *testing.T) {
	s := NewSlot()
	assert.True(t, s.PollSubmit())

	require.NoError(t, s.Start(func() error { return nil }))
	assert.False(t, s.PollSubmit())

	s.Wake(0)
	assert.True(t, s.PollSubmit())
}

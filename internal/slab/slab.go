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

// Package slab holds the worker-owned id -> value table that backs
// registered resources. It is intentionally not safe for concurrent
// use: the worker goroutine is its sole owner, same as it is the sole
// owner of the kernel-side half of every resource.
package slab

import (
	"errors"
	"math"
)

const blockSize = 256

// ErrTooManyResources is returned by Insert once the slab has reached
// math.MaxUint32 live entries — a resource count no realistic workload
// approaches, but one the id space genuinely cannot exceed.
var ErrTooManyResources = errors.New("slab: resource id space exhausted")

// Slab is a dense, append-only table of values addressed by a uint32
// id, with freed slots recycled through a freelist instead of
// compacting the table. Growth copies the table into a larger backing
// array, but an entry keeps its id — callers that stash a raw index
// across a Slab operation keep observing the same slot.
type Slab[V any] struct {
	entries  []V
	occupied []bool
	free     []uint32
}

// New returns an empty Slab.
func New[V any]() *Slab[V] {
	return &Slab[V]{}
}

// Insert stores v and returns the id it was assigned. It reuses a freed
// slot when one is available, otherwise grows the table. Insert returns
// ErrTooManyResources instead of storing anything once the slab has
// reached math.MaxUint32 live entries — a resource count no realistic
// workload approaches, and the kernel's own fixed file table would
// exhaust long before this does.
func (s *Slab[V]) Insert(v V) (uint32, error) {
	if n := len(s.free); n > 0 {
		id := s.free[n-1]
		s.free = s.free[:n-1]
		s.entries[id] = v
		s.occupied[id] = true
		return id, nil
	}
	if len(s.entries) >= math.MaxUint32 {
		var zero uint32
		return zero, ErrTooManyResources
	}
	if cap(s.entries) == len(s.entries) {
		grown := make([]V, len(s.entries), len(s.entries)+blockSize)
		copy(grown, s.entries)
		s.entries = grown
		grownOcc := make([]bool, len(s.occupied), len(s.occupied)+blockSize)
		copy(grownOcc, s.occupied)
		s.occupied = grownOcc
	}
	id := uint32(len(s.entries))
	s.entries = append(s.entries, v)
	s.occupied = append(s.occupied, true)
	return id, nil
}

// Get returns the value stored at id, if any id was ever inserted there
// and has not since been removed.
func (s *Slab[V]) Get(id uint32) (V, bool) {
	var zero V
	if int(id) >= len(s.entries) || !s.occupied[id] {
		return zero, false
	}
	return s.entries[id], true
}

// Remove deletes the entry at id, returning it and recycling the slot
// for a future Insert. It reports false if id was not occupied.
func (s *Slab[V]) Remove(id uint32) (V, bool) {
	var zero V
	if int(id) >= len(s.entries) || !s.occupied[id] {
		return zero, false
	}
	v := s.entries[id]
	s.entries[id] = zero
	s.occupied[id] = false
	s.free = append(s.free, id)
	return v, true
}

// Len returns the number of live (non-removed) entries.
func (s *Slab[V]) Len() int {
	return len(s.entries) - len(s.free)
}

// Drain removes and returns every live entry, resetting the slab to
// empty. Used by worker shutdown to best-effort tear down whatever
// resources were still registered.
func (s *Slab[V]) Drain() []V {
	out := make([]V, 0, s.Len())
	for i, occupied := range s.occupied {
		if occupied {
			out = append(out, s.entries[i])
		}
	}
	s.entries = nil
	s.occupied = nil
	s.free = nil
	return out
}

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

import "github.com/go-uringrt/uringrt/container/ring"

// NumSlots is the fixed size of every resource's Operations table: one
// slot each for read, write and close, plus a spare reserved for a
// future op kind.
const NumSlots = 4

const (
	ReadOp  = 0
	WriteOp = 1
	CloseOp = 2
)

// Table is the fixed per-resource array of operation slots, allocated
// once and shared by pointer between a Resource (user side) and its
// WorkerResource counterpart (worker side) so both observe the same
// slot identity for the life of the resource. Built on container/ring's
// single-allocation, GC-friendly Ring rather than a bare Go array: a
// *Slot never contains a pointer itself worth worrying about (Ring's
// own "V must not contain pointer" guidance is about avoiding GC scan
// overhead for large rings; at NumSlots=4 elements that concern doesn't
// apply, and Ring already gives this exactly the fixed-size,
// never-reallocated table this module needs).
type Table struct {
	slots *ring.Ring[*Slot]
}

// NewTable allocates a table with every slot Idle and ready for use.
func NewTable() *Table {
	fresh := make([]*Slot, NumSlots)
	for i := range fresh {
		fresh[i] = NewSlot()
	}
	return &Table{slots: ring.NewFromSlice(fresh)}
}

// Slot returns the slot for the given op id. id must be in
// [0, NumSlots); callers within this module only ever pass the ReadOp/
// WriteOp/CloseOp constants or a value already validated against
// NumSlots.
func (t *Table) Slot(id uint32) *Slot {
	item, ok := t.slots.Get(int(id))
	if !ok {
		panic("op: slot id out of range")
	}
	return item.Value()
}

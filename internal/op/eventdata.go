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

// EventData is the 64-bit user_data word stamped on every SQE and
// echoed back on its CQE: the high 32 bits name the resource, the low
// 32 bits name which of its op slots to route the completion to.
type EventData struct {
	ResourceID uint32
	OpID       uint32
}

// Encode packs EventData into the uint64 a SQE's UserData field holds.
func (e EventData) Encode() uint64 {
	return uint64(e.ResourceID)<<32 | uint64(e.OpID)
}

// DecodeEventData unpacks a CQE's UserData field back into EventData.
func DecodeEventData(v uint64) EventData {
	return EventData{
		ResourceID: uint32(v >> 32),
		OpID:       uint32(v),
	}
}

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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventDataRoundTrip(t *testing.T) {
	cases := []EventData{
		{ResourceID: 0, OpID: 0},
		{ResourceID: 1, OpID: ReadOp},
		{ResourceID: 0xFFFFFFFF, OpID: 0xFFFFFFFF},
		{ResourceID: 42, OpID: CloseOp},
	}
	for _, c := range cases {
		got := DecodeEventData(c.Encode())
		assert.Equal(t, c, got)
	}
}

func TestEventDataPacksHighLowWords(t *testing.T) {
	ed := EventData{ResourceID: 1, OpID: 2}
	encoded := ed.Encode()
	assert.Equal(t, uint64(1)<<32|uint64(2), encoded)
}

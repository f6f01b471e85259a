// Copyright 2023 Sneller, Inc.
// Copyright 2025 Roman Atachiants
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package engine

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartBufferFillsToCapacity(t *testing.T) {
	p := NewPartBuffer(8)
	n, err := p.Write([]byte("0123456789"))
	assert.NoError(t, err)
	assert.Equal(t, 8, n, "write should cap at the buffer's remaining capacity")
	assert.True(t, p.Full())
	assert.Equal(t, 0, p.Remaining())
	assert.Equal(t, []byte("01234567"), p.Bytes())
}

func TestPartBufferSHA1Hex(t *testing.T) {
	p := NewPartBuffer(32)
	_, _ = p.Write([]byte("hello, "))
	_, _ = p.Write([]byte("world"))

	want := sha1.Sum([]byte("hello, world"))
	assert.Equal(t, hex.EncodeToString(want[:]), p.SHA1Hex())
	assert.Equal(t, 12, p.Len())
	assert.False(t, p.Full())
}

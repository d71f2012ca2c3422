// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package zc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesViewsUnderlyingWords(t *testing.T) {
	words := []uint32{0x04030201, 0x08070605}
	b := Bytes(words)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, b)
}

func TestBoolsOneByteEach(t *testing.T) {
	raw := []byte{1, 0, 1, 1, 0}
	bs := Bools(raw)
	assert.Equal(t, []bool{true, false, true, true, false}, bs)
}

func TestStringAliasesBytes(t *testing.T) {
	raw := []byte("hello")
	s := String(raw)
	assert.Equal(t, "hello", s)
}

func TestNumbersUint32(t *testing.T) {
	words := []uint32{10, 20, 30}
	got := Numbers[uint32](words, 1, 3)
	assert.Equal(t, []uint32{10, 20, 30}, got)
}

func TestNumbersUint64(t *testing.T) {
	words := []uint32{1, 0, 2, 0}
	got := Numbers[uint64](words, 2, 2)
	assert.Equal(t, []uint64{1, 2}, got)
}

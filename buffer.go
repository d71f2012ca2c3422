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

package protocache

import "encoding/binary"

// Data is an immutable, little-endian, word-aligned ProtoCache buffer (or a
// borrowed tail of one). All of the reader views in this package are
// offset/length pairs into a Data value; none of them copy it.
type Data []uint32

// Bytes returns the little-endian byte encoding of d, the form a host
// actually writes to disk or sends over the wire. This copies.
func (d Data) Bytes() []byte {
	out := make([]byte, len(d)*4)
	for i, w := range d {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// FromBytes parses a little-endian byte buffer into a Data value. b's
// length must be a multiple of 4; any trailing partial word is dropped.
func FromBytes(b []byte) Data {
	n := len(b) / 4
	out := make(Data, n)
	for i := 0; i < n; i++ {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

// wordSize returns the number of 32-bit words needed to hold n bytes.
func wordSize(n int) int { return (n + 3) / 4 }

// word64 reads the 64-bit little-endian word pair starting at word index i.
func word64(d Data, i uint32) uint64 {
	return uint64(d[i]) | uint64(d[i+1])<<32
}

// sumLanes32 sums the twelve 2-bit lanes of v as plain integers (not a
// popcount): each lane already holds a field's word width (0..3), so this
// SWAR reduction is exactly the prefix sum of word counts for every field
// whose lane is included in v.
func sumLanes32(v uint32) uint32 {
	v = (v & 0x33333333) + ((v >> 2) & 0x33333333)
	v = v + (v >> 4)
	v = (v & 0x0f0f0f0f) + ((v >> 8) & 0x0f0f0f0f)
	v = v + (v >> 16)
	return v & 0xff
}

// sumLanes64 is sumLanes32 over a 64-bit word of 25 2-bit lanes (plus slack
// bits the caller has already masked out).
func sumLanes64(v uint64) uint64 {
	v = (v & 0x3333333333333333) + ((v >> 2) & 0x3333333333333333)
	v = v + (v >> 4)
	v = (v & 0x0f0f0f0f0f0f0f0f) + ((v >> 8) & 0x0f0f0f0f0f0f0f0f)
	v = v + (v >> 16)
	v = v + (v >> 32)
	return v & 0xff
}

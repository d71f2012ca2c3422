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

// Package mph builds and queries minimal perfect hash indexes over sets of
// byte-string keys, using three-way hypergraph peeling.
//
// A built index is a self-contained byte blob: {size, seed} header, a 2-bit
// tag bitmap over three equal-size sections of slots, and an optional rank
// table for O(1) lookup (a rank entry plus a popcount within one block). See the package-level encoding notes
// in field.go's sibling package, protocache, §4.2 of the design.
package mph

import (
	"encoding/binary"
	"math/bits"

	"github.com/protocache-go/protocache/internal/hash"
)

// maxKeys is the largest key count this package will attempt to index, per
// the 2^28 ceiling in the design (keys beyond this would overflow the 28-bit
// "real size" field reserved inside the 32-bit size word).
const maxKeys = 1 << 28

// Index is a built, queryable minimal perfect hash.
type Index struct {
	data    []byte
	section uint32 // 0 when size < 2, in which case Locate never needs it.
}

// realSize masks off any reserved high bits of the stored size field.
func realSize(raw uint32) uint32 { return raw & 0x0fffffff }

// section computes the MPH section size for n keys: 3 disjoint sections of
// this many slots each, for 3n total slots.
func section(n uint32) uint32 {
	s := (uint64(n)*105 + 255) / 256
	if s < 10 {
		s = 10
	}
	return uint32(s)
}

// bitmapSize is the byte length of the 2-bit-per-slot tag bitmap over
// 3*section slots, rounded up to a 4-byte (word) boundary.
func bitmapSize(sec uint32) uint32 {
	return ((sec*3 + 31) &^ 31) / 4
}

// rankEntryWidth returns the byte width of each rank-table entry for n keys,
// or 0 if n is small enough that no rank table is stored at all.
func rankEntryWidth(n uint32) uint32 {
	switch {
	case n > 0xffff:
		return 4
	case n > 0xff:
		return 2
	case n > 24: // 3*section(n) > 32, i.e. more than one rank block
		return 1
	default:
		return 0
	}
}

// Load parses a previously built index out of data. size, if non-zero, is
// the number of bytes available (e.g. the remaining length of a containing
// buffer); pass 0 to skip bounds checking (trusted, pre-validated data).
//
// Returns the zero Index (Valid() == false) if data is malformed or short.
func Load(data []byte, size uint32) Index {
	if size != 0 && size < 4 {
		return Index{}
	}
	n := realSize(binary.LittleEndian.Uint32(data[0:4]))
	if n <= 1 {
		if size != 0 && size < 4 {
			return Index{}
		}
		return Index{data: data[:4]}
	}
	if size != 0 && size < 8 {
		return Index{}
	}
	sec := section(n)
	bytes := uint32(8) + bitmapSize(sec)
	bytes += rankEntryWidth(n) * (bitmapSize(sec) / 8)
	if size != 0 && size < bytes {
		return Index{}
	}
	return Index{data: data[:bytes], section: sec}
}

// Valid reports whether this index was loaded from well-formed data.
func (x Index) Valid() bool { return x.data != nil }

// Size returns the number of keys this index was built over.
func (x Index) Size() uint32 {
	if x.data == nil {
		return 0
	}
	return realSize(binary.LittleEndian.Uint32(x.data[0:4]))
}

// Bytes returns the raw serialized form of this index.
func (x Index) Bytes() []byte { return x.data }

func bit2(bitmap []byte, pos uint32) uint32 {
	return uint32(bitmap[pos>>2]>>((pos&3)<<1)) & 3
}

func countValidSlot(block uint64) uint32 {
	block &= block >> 1
	block = ^block & 0x5555555555555555
	return uint32(bits.OnesCount64(block))
}

// Locate computes the position assigned to key by this index. The caller
// must separately verify the key at the returned position actually equals
// key (an MPH maps any input, including foreign keys, somewhere); see
// protocache.Map.Find.
//
// Returns an out-of-range position (>= Size()) if the index is invalid.
func (x Index) Locate(key []byte) uint32 {
	if x.data == nil {
		return ^uint32(0)
	}
	n := realSize(binary.LittleEndian.Uint32(x.data[0:4]))
	if n < 2 {
		if n == 0 {
			return ^uint32(0)
		}
		return 0
	}
	seed := binary.LittleEndian.Uint32(x.data[4:8])
	code := hash.Hash128(key, uint64(seed))
	sec := x.section
	slots := [3]uint32{
		code.U32(0) % sec,
		code.U32(1)%sec + sec,
		code.U32(2)%sec + sec*2,
	}
	bitmap := x.data[8:]
	m := bit2(bitmap, slots[0]) + bit2(bitmap, slots[1]) + bit2(bitmap, slots[2])
	slot := slots[m%3]

	a := slot >> 5
	b := slot & 31
	table := bitmap[bitmapSize(sec):]

	var off uint32
	switch rankEntryWidth(n) {
	case 4:
		off = binary.LittleEndian.Uint32(table[a*4:])
	case 2:
		off = uint32(binary.LittleEndian.Uint16(table[a*2:]))
	case 1:
		off = uint32(table[a])
	}

	block := binary.LittleEndian.Uint64(bitmap[a*8:])
	block |= ^uint64(0) << (b * 2)
	return off + countValidSlot(block)
}

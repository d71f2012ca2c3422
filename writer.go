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

import (
	"math"

	"github.com/protocache-go/protocache/internal/mph"
	"github.com/protocache-go/protocache/internal/zc"
)

// maxObjectWords is the 2^30-byte ceiling every serialized object must stay
// under (§4.4); it is expressed here in words since every size this file
// computes is a word count.
const maxObjectWords = 1 << 28

func offsetWord(off uint32) uint32 { return off<<2 | 3 }

func writeVarint(buf []byte, n uint32) int {
	w := 0
	for n & ^uint32(0x7f) != 0 {
		buf[w] = byte(0x80 | (n & 0x7f))
		w++
		n >>= 7
	}
	buf[w] = byte(n)
	w++
	return w
}

// SerializeBytes builds the String object for a byte string.
func SerializeBytes(s []byte) (Data, error) {
	if len(s) >= 1<<30 {
		return nil, newError(KindOversize, "string exceeds 2^30 bytes", nil)
	}
	mark := uint32(len(s)) << 2
	var header [5]byte
	sz := writeVarint(header[:], mark)
	raw := make([]byte, wordSize(sz+len(s))*4)
	copy(raw, header[:sz])
	copy(raw[sz:], s)
	return FromBytes(raw), nil
}

// SerializeText builds the String object for a UTF-8 string.
func SerializeText(s string) (Data, error) { return SerializeBytes([]byte(s)) }

// SerializeBoolArray builds the packed byte-per-bool String object a
// repeated bool field is stored as.
func SerializeBoolArray(bs []bool) (Data, error) {
	raw := make([]byte, len(bs))
	for i, b := range bs {
		if b {
			raw[i] = 1
		}
	}
	return SerializeBytes(raw)
}

// slotWidth is the inline word width a pre-serialized subtree blob occupies
// inside a Message/Array/Map slot: its own length if that's 3 words or
// fewer, otherwise 1 word for a forward reference to an appended copy.
func slotWidth(one Data) uint32 {
	if len(one) < 4 {
		return uint32(len(one))
	}
	return 1
}

// layoutSlots lays out a sequence of pre-serialized blobs into a slot
// region of total width sum(slotWidth) starting at out[bodyStart:], then
// appends the full blobs any oversized slot referenced, patching each
// slot's reference word to the forward offset of its appended copy. This
// is the shared tail of Message/Array/Map serialization.
func layoutSlots(out Data, bodyStart int, parts []Data) Data {
	for _, one := range parts {
		switch {
		case len(one) == 0:
		case len(one) < 4:
			out = append(out, one...)
		default:
			out = append(out, 0)
		}
	}
	off := bodyStart
	for _, one := range parts {
		switch {
		case len(one) == 0:
		case len(one) < 4:
			off += len(one)
		default:
			out[off] = offsetWord(uint32(len(out) - off))
			out = append(out, one...)
			off++
		}
	}
	return out
}

// SerializeMessage assembles a Message object from parts, one pre-serialized
// blob per field id in order (parts[id]), with a nil/empty entry meaning
// the field is absent. Trailing absent fields are trimmed automatically.
func SerializeMessage(parts []Data) (Data, error) {
	for len(parts) > 0 && len(parts[len(parts)-1]) == 0 {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return Data{0}, nil
	}
	section := (len(parts) + 12) / 25
	if section > 0xff {
		return nil, newError(KindOversize, "message field id exceeds 6387", nil)
	}
	size := 1 + section*2
	var cnt uint32
	head := uint32(section)
	limit := len(parts)
	if limit > 12 {
		limit = 12
	}
	for i := 0; i < limit; i++ {
		one := parts[i]
		if len(one) < 4 {
			head |= uint32(len(one)) << (8 + i*2)
			size += len(one)
			cnt += uint32(len(one))
		} else {
			head |= 1 << (8 + i*2)
			size += 1 + len(one)
			cnt++
		}
	}
	for i := 12; i < len(parts); i++ {
		if one := parts[i]; len(one) < 4 {
			size += len(one)
		} else {
			size += 1 + len(one)
		}
	}
	if size >= maxObjectWords {
		return nil, newError(KindOversize, "message exceeds 2^30 bytes", nil)
	}

	out := make(Data, 1, size)
	out[0] = head
	for i := 0; i < section*2; i++ {
		out = append(out, 0)
	}
	blk := 1
	for i := 12; i < len(parts); {
		next := i + 25
		if next > len(parts) {
			next = len(parts)
		}
		if cnt >= 1<<14 {
			return nil, newError(KindOversize, "message section body count exceeds 2^14", nil)
		}
		mark := uint64(cnt) << 50
		for j := 0; i < next; j += 2 {
			one := parts[i]
			i++
			if len(one) < 4 {
				mark |= uint64(len(one)) << j
				cnt += uint32(len(one))
			} else {
				mark |= 1 << j
				cnt++
			}
		}
		out[blk] = uint32(mark)
		out[blk+1] = uint32(mark >> 32)
		blk += 2
	}

	out = layoutSlots(out, 1+section*2, parts)
	if len(out) != size {
		return nil, newError(KindOversize, "message layout size mismatch", nil)
	}
	return out, nil
}

// bestArrayWidth picks the element width m in {1,2,3} minimizing the total
// word cost of storing elements, each either inline (size <= m) or as a
// 1-word forward reference plus its appended full blob.
func bestArrayWidth(elements []Data) (m uint32, total int) {
	var sizes [3]int
	for _, one := range elements {
		sizes[0]++
		sizes[1] += 2
		sizes[2] += 3
		if len(one) <= 1 {
			continue
		}
		sizes[0] += len(one)
		if len(one) <= 2 {
			continue
		}
		sizes[1] += len(one)
		if len(one) <= 3 {
			continue
		}
		sizes[2] += len(one)
	}
	mode := 0
	for i := 1; i < 3; i++ {
		if sizes[i] < sizes[mode] {
			mode = i
		}
	}
	return uint32(mode + 1), sizes[mode]
}

// SerializeArray assembles an Array object from a sequence of
// pre-serialized element blobs.
func SerializeArray(elements []Data) (Data, error) {
	m, bodySize := bestArrayWidth(elements)
	size := 1 + bodySize
	if size >= maxObjectWords {
		return nil, newError(KindOversize, "array exceeds 2^30 bytes", nil)
	}
	out := make(Data, 1, size)
	out[0] = uint32(len(elements))<<2 | m

	for _, one := range elements {
		next := len(out) + int(m)
		if len(one) <= int(m) {
			out = append(out, one...)
		}
		for len(out) < next {
			out = append(out, 0)
		}
	}
	off := 1
	for _, one := range elements {
		if len(one) > int(m) {
			out[off] = offsetWord(uint32(len(out) - off))
			out = append(out, one...)
		}
		off += int(m)
	}
	if len(out) != size {
		return nil, newError(KindOversize, "array layout size mismatch", nil)
	}
	return out, nil
}

// SerializeArrayOfNumbers builds a packed numeric Array directly from a
// slice of scalars, bypassing per-element Data construction; T must be one
// of int32, uint32, float32, int64, uint64, float64.
func SerializeArrayOfNumbers[T int32 | uint32 | float32 | int64 | uint64 | float64](vals []T) (Data, error) {
	elems := make([]Data, len(vals))
	for i, v := range vals {
		elems[i] = serializeScalar(v)
	}
	return SerializeArray(elems)
}

func serializeScalar[T int32 | uint32 | float32 | int64 | uint64 | float64](v T) Data {
	switch x := any(v).(type) {
	case int32:
		return Data{uint32(x)}
	case uint32:
		return Data{x}
	case float32:
		return Data{math.Float32bits(x)}
	case int64:
		u := uint64(x)
		return Data{uint32(u), uint32(u >> 32)}
	case uint64:
		return Data{uint32(x), uint32(x >> 32)}
	case float64:
		u := math.Float64bits(x)
		return Data{uint32(u), uint32(u >> 32)}
	}
	return nil
}

// SerializeMap assembles a Map object from a built MPH index over keys
// (already reordered into index slot order) and parallel slices of
// pre-serialized key/value blobs in that same order.
func SerializeMap(index mph.Index, keys, values []Data) (Data, error) {
	indexWords := wordSize(len(index.Bytes()))
	m1, keySize := bestArrayWidth(keys)
	m2, valSize := bestArrayWidth(values)
	size := indexWords + keySize + valSize
	if size >= maxObjectWords {
		return nil, newError(KindOversize, "map exceeds 2^30 bytes", nil)
	}

	out := make(Data, indexWords, size)
	copy(zc.Bytes(out), index.Bytes())
	out[0] |= m1<<30 | m2<<28

	for i := range keys {
		key, val := keys[i], values[i]
		next := len(out) + int(m1)
		if len(key) <= int(m1) {
			out = append(out, key...)
		}
		for len(out) < next {
			out = append(out, 0)
		}
		next = len(out) + int(m2)
		if len(val) <= int(m2) {
			out = append(out, val...)
		}
		for len(out) < next {
			out = append(out, 0)
		}
	}
	off := indexWords
	for i := range keys {
		key, val := keys[i], values[i]
		if len(key) > int(m1) {
			out[off] = offsetWord(uint32(len(out) - off))
			out = append(out, key...)
		}
		off += int(m1)
		if len(val) > int(m2) {
			out[off] = offsetWord(uint32(len(out) - off))
			out = append(out, val...)
		}
		off += int(m2)
	}
	if len(out) != size {
		return nil, newError(KindOversize, "map layout size mismatch", nil)
	}
	return out, nil
}

// BuildMap orders a set of (keyBytes, key, value) triples by the MPH slot
// their key hashes to, building the index and the two aligned key/value
// blob slices SerializeMap expects. It is the usual entry point for
// serializing a map field: build the index once, then serialize.
func BuildMap(keyBytes [][]byte, keys, values []Data) (mph.Index, []Data, []Data, error) {
	if len(keyBytes) != len(keys) || len(keys) != len(values) {
		return mph.Index{}, nil, nil, newError(KindMalformed, "map key/value slice length mismatch", nil)
	}
	idx, ok := mph.Build(keyBytes, false)
	if !ok {
		return mph.Index{}, nil, nil, newError(KindMPHBuildFailure, "no MPH seed found for map keys", nil)
	}
	n := len(keyBytes)
	orderedKeys := make([]Data, n)
	orderedValues := make([]Data, n)
	for i, kb := range keyBytes {
		pos := idx.Locate(kb)
		orderedKeys[pos] = keys[i]
		orderedValues[pos] = values[i]
	}
	return idx, orderedKeys, orderedValues, nil
}

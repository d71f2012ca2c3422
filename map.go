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
	"bytes"

	"github.com/protocache-go/protocache/internal/mph"
	"github.com/protocache-go/protocache/internal/zc"
)

// Pair is one (key, value) slot inside a Map's body.
type Pair struct {
	rest              Data
	keyWidth, valWidth uint32
}

// IsAbsent reports whether this is not a usable Pair (e.g. Map.Find missed).
func (p Pair) IsAbsent() bool { return p.rest == nil }

// Key returns the key field.
func (p Pair) Key() Field { return Field{rest: p.rest, width: p.keyWidth} }

// Value returns the value field.
func (p Pair) Value() Field {
	if p.rest == nil {
		return Field{}
	}
	return Field{rest: p.rest[p.keyWidth:], width: p.valWidth}
}

// Map is a view over a Map object: an MPH index (whose header's top 4 bits
// hold the key/value slot widths instead of its own reserved size bits)
// followed by a flat body of (key,value) slots.
type Map struct {
	index              mph.Index
	body               Data
	keyWidth, valWidth uint32
}

// NewMap parses a Map object out of data, which must start at the object's
// own header word.
func NewMap(data Data) Map {
	if len(data) == 0 {
		return Map{}
	}
	kw := (data[0] >> 30) & 3
	vw := (data[0] >> 28) & 3
	if kw == 0 || vw == 0 {
		return Map{}
	}
	idx := mph.Load(zc.Bytes(data), uint32(len(data))*4)
	if !idx.Valid() {
		return Map{}
	}
	idxWords := wordSize(len(idx.Bytes()))
	if idxWords > len(data) {
		return Map{}
	}
	body := data[idxWords:]
	if uint64(kw+vw)*uint64(idx.Size()) > uint64(len(body)) {
		return Map{}
	}
	return Map{index: idx, body: body, keyWidth: kw, valWidth: vw}
}

// IsAbsent reports whether this is not a well-formed Map object.
func (m Map) IsAbsent() bool { return m.body == nil }

// Size returns the number of entries.
func (m Map) Size() uint32 { return m.index.Size() }

// At returns the pair at slot pos (the MPH's internal slot order, not
// insertion order), or the absent Pair if pos is out of range.
func (m Map) At(pos uint32) Pair {
	if m.body == nil || pos >= m.index.Size() {
		return Pair{}
	}
	off := (m.keyWidth + m.valWidth) * pos
	return Pair{rest: m.body[off:], keyWidth: m.keyWidth, valWidth: m.valWidth}
}

// Find looks up key (a string/bytes key) and returns its pair, or the
// absent Pair if key is not present. An MPH maps any byte string to some
// slot, including keys never inserted, so the located slot's own key is
// always compared back against key before returning success.
func (m Map) Find(key []byte) Pair {
	if m.body == nil {
		return Pair{}
	}
	pos := m.index.Locate(key)
	if pos >= m.index.Size() {
		return Pair{}
	}
	p := m.At(pos)
	view := NewString(p.Key().GetObject())
	if view.IsAbsent() || !bytes.Equal(view.Get(), key) {
		return Pair{}
	}
	return p
}

// FindUint32 looks up a 32-bit scalar key (uint32 or int32, reinterpreted
// as raw bits), hashing it as its four little-endian bytes. Bool keys, which
// the bridge hashes as a single byte, are not found by this method.
func (m Map) FindUint32(key uint32) Pair {
	return m.findScalar([]byte{byte(key), byte(key >> 8), byte(key >> 16), byte(key >> 24)}, 1, key)
}

// FindUint64 looks up a 64-bit scalar key (uint64, int64, or double,
// reinterpreted as raw bits).
func (m Map) FindUint64(key uint64) Pair {
	b := []byte{
		byte(key), byte(key >> 8), byte(key >> 16), byte(key >> 24),
		byte(key >> 32), byte(key >> 40), byte(key >> 48), byte(key >> 56),
	}
	return m.findScalar(b, 2, key)
}

func (m Map) findScalar(keyBytes []byte, wantWidth uint32, want any) Pair {
	if m.body == nil {
		return Pair{}
	}
	pos := m.index.Locate(keyBytes)
	if pos >= m.index.Size() {
		return Pair{}
	}
	p := m.At(pos)
	v := p.Key().GetValue()
	if uint32(len(v)) != wantWidth {
		return Pair{}
	}
	switch w := want.(type) {
	case uint32:
		if v[0] != w {
			return Pair{}
		}
	case uint64:
		if uint64(v[0])|uint64(v[1])<<32 != w {
			return Pair{}
		}
	}
	return p
}

// DetectMapBytes returns the minimal well-formed extent of the Map object
// starting at data, assuming scalar keys and values: the MPH index plus the
// full body, with no need to recurse into entries.
func DetectMapBytes(data Data) Data {
	m := NewMap(data)
	if m.IsAbsent() {
		return nil
	}
	idxWords := wordSize(len(m.index.Bytes()))
	words := idxWords + int(m.keyWidth+m.valWidth)*int(m.index.Size())
	if words > len(data) {
		return nil
	}
	return data[:words]
}

// DetectMapOfRefs is DetectMapBytes generalized to maps whose keys and/or
// values are reference-typed (strings, messages, arrays, or nested maps):
// detectKey/detectValue are applied to each entry and the view is extended
// to cover whichever entry's referent reaches furthest. Pass a nil
// detectKey or detectValue for the scalar side of a mixed map.
func DetectMapOfRefs(data Data, detectKey, detectValue func(Field) Data) Data {
	view := DetectMapBytes(data)
	if view == nil {
		return nil
	}
	m := NewMap(data)
	viewEnd := len(view)
	for i := int(m.index.Size()) - 1; i >= 0; i-- {
		p := m.At(uint32(i))
		if detectValue != nil {
			if t := detectValue(p.Value()); t != nil {
				if end := cap(data) - cap(t) + len(t); end > viewEnd {
					viewEnd = end
				}
			}
		}
		if detectKey != nil {
			if t := detectKey(p.Key()); t != nil {
				if end := cap(data) - cap(t) + len(t); end > viewEnd {
					viewEnd = end
				}
			}
		}
	}
	return data[:viewEnd]
}

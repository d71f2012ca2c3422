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

import "github.com/protocache-go/protocache/internal/zc"

// Array is a view over an Array object: a header word (element width in its
// low 2 bits, count in the upper 30) followed by a flat body of
// fixed-width slots.
type Array struct {
	body  Data
	size  uint32
	width uint32
}

// NewArray parses an Array object out of data, which must start at the
// object's own header word.
func NewArray(data Data) Array {
	if len(data) == 0 {
		return Array{}
	}
	size := data[0] >> 2
	width := data[0] & 3
	if width == 0 {
		return Array{}
	}
	body := data[1:]
	if uint64(width)*uint64(size) > uint64(len(body)) {
		return Array{}
	}
	return Array{body: body, size: size, width: width}
}

// IsAbsent reports whether this is not a well-formed Array object.
func (a Array) IsAbsent() bool { return a.body == nil }

// Size returns the element count.
func (a Array) Size() uint32 { return a.size }

// At returns the field for element pos, or the absent Field if pos is out
// of range.
func (a Array) At(pos uint32) Field {
	if a.body == nil || pos >= a.size {
		return Field{}
	}
	off := a.width * pos
	return Field{rest: a.body[off:], width: a.width}
}

// Numbers reinterprets a fixed-width numeric array as a zero-copy []T, or
// nil if the array's element width does not match sizeof(T). T must be one
// of int32, uint32, float32, int64, uint64, float64.
func Numbers[T int32 | uint32 | float32 | int64 | uint64 | float64](a Array) []T {
	if a.body == nil {
		return nil
	}
	var zero T
	wantWords := sizeofWords(zero)
	if a.width != uint32(wantWords) {
		return nil
	}
	return zc.Numbers[T](a.body, wantWords, a.size)
}

func sizeofWords[T int32 | uint32 | float32 | int64 | uint64 | float64](T) int {
	var v T
	switch any(v).(type) {
	case int64, uint64, float64:
		return 2
	default:
		return 1
	}
}

// DetectArrayBytes returns the minimal well-formed extent of the Array
// object starting at data, assuming scalar (non-reference) elements: the
// header plus the full body, with no need to recurse into elements.
func DetectArrayBytes(data Data) Data {
	if len(data) == 0 {
		return nil
	}
	size := data[0] >> 2
	width := data[0] & 3
	if width == 0 {
		return nil
	}
	words := 1 + int(width)*int(size)
	if words > len(data) {
		return nil
	}
	return data[:words]
}

// DetectArrayOfRefs returns the minimal well-formed extent of an Array of
// reference-typed elements (messages, arrays, maps, or strings), where an
// element's own referent can live further out in the buffer than the
// array's own header+body span. detect is applied to each element's Field
// to find its extent.
func DetectArrayOfRefs(data Data, detect func(Field) Data) Data {
	view := DetectArrayBytes(data)
	if view == nil {
		return nil
	}
	a := NewArray(data)
	viewEnd := len(view)
	for i := int(a.size) - 1; i >= 0; i-- {
		t := detect(a.At(uint32(i)))
		if t == nil {
			continue
		}
		// t is a sub-slice of the same backing array as data, starting
		// cap(data)-cap(t) words past data[0]; adding len(t) gives its
		// end expressed as an index into data.
		end := cap(data) - cap(t) + len(t)
		if end > viewEnd {
			viewEnd = end
		}
	}
	return data[:viewEnd]
}

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

import "math"

// Field is a slot inside a Message or Array/Map body: a position plus the
// word width recorded for it (0 meaning absent). rest is the buffer tail
// starting at the field's own word, which doubles as the bound check
// against the end of the containing buffer (slicing it never grows it).
type Field struct {
	rest  Data
	width uint32
}

// IsAbsent reports whether this field was never populated, or was looked up
// out of bounds.
func (f Field) IsAbsent() bool { return f.rest == nil }

// GetValue returns the field's raw word(s) for an inline scalar, or nil if
// the field is absent or its width would run past the buffer end.
func (f Field) GetValue() Data {
	if f.rest == nil || uint32(len(f.rest)) < f.width {
		return nil
	}
	return f.rest[:f.width]
}

// GetObject resolves a width-1 reference field to the object it points at,
// following exactly one forward hop (references are never chained). Returns
// nil if the field is absent, the reference target is out of bounds, or the
// field's own position is already past the end.
func (f Field) GetObject() Data {
	if f.rest == nil || len(f.rest) == 0 {
		return nil
	}
	rest := f.rest
	if rest[0]&3 == 3 {
		off := rest[0] >> 2
		if uint64(off) > uint64(len(rest)) {
			return nil
		}
		rest = rest[off:]
	}
	if len(rest) == 0 {
		return nil
	}
	return rest
}

// Bool reads a one-word boolean field.
func Bool(f Field) bool {
	v := f.GetValue()
	return len(v) == 1 && v[0] != 0
}

// Int32 reads a one-word signed 32-bit field.
func Int32(f Field) int32 {
	v := f.GetValue()
	if len(v) != 1 {
		return 0
	}
	return int32(v[0])
}

// Uint32 reads a one-word unsigned 32-bit field.
func Uint32(f Field) uint32 {
	v := f.GetValue()
	if len(v) != 1 {
		return 0
	}
	return v[0]
}

// Enum reads a one-word enum field.
func Enum(f Field) int32 { return Int32(f) }

// Float32 reads a one-word IEEE-754 single-precision field.
func Float32(f Field) float32 {
	v := f.GetValue()
	if len(v) != 1 {
		return 0
	}
	return math.Float32frombits(v[0])
}

// Int64 reads a two-word signed 64-bit field.
func Int64(f Field) int64 {
	v := f.GetValue()
	if len(v) != 2 {
		return 0
	}
	return int64(uint64(v[0]) | uint64(v[1])<<32)
}

// Uint64 reads a two-word unsigned 64-bit field.
func Uint64(f Field) uint64 {
	v := f.GetValue()
	if len(v) != 2 {
		return 0
	}
	return uint64(v[0]) | uint64(v[1])<<32
}

// Float64 reads a two-word IEEE-754 double-precision field.
func Float64(f Field) float64 {
	v := f.GetValue()
	if len(v) != 2 {
		return 0
	}
	return math.Float64frombits(uint64(v[0]) | uint64(v[1])<<32)
}

// Bytes reads a string/bytes field as a zero-copy byte view.
func Bytes(f Field) []byte {
	return NewString(f.GetObject()).Get()
}

// Text reads a string field as a zero-copy string view (no allocation; the
// returned string aliases the underlying buffer).
func Text(f Field) string {
	return NewString(f.GetObject()).Text()
}

// BoolArray reads a packed byte-per-bool field.
func BoolArray(f Field) []bool {
	return NewString(f.GetObject()).GetBoolArray()
}

// SubMessage reads a message-typed field.
func SubMessage(f Field) Message {
	return NewMessage(f.GetObject())
}

// SubArray reads an array-typed field.
func SubArray(f Field) Array {
	return NewArray(f.GetObject())
}

// SubMap reads a map-typed field.
func SubMap(f Field) Map {
	return NewMap(f.GetObject())
}

// DetectValue returns the minimal well-formed extent of an inline scalar
// field, i.e. its value words.
func DetectValue(f Field) Data { return f.GetValue() }

// DetectString returns the minimal well-formed extent of a string field.
func DetectString(f Field) Data { return DetectStringBytes(f.GetObject()) }

// DetectMessage returns the extent of a message field as DetectMessageBytes
// computes it: header, section words and slots, without the objects its
// reference slots point to.
func DetectMessage(f Field) Data { return DetectMessageBytes(f.GetObject()) }

// DetectArray returns the minimal well-formed extent of an array field,
// assuming scalar (non-reference) elements; use DetectArrayOfRefs for
// arrays of strings/messages/arrays/maps.
func DetectArray(f Field) Data { return DetectArrayBytes(f.GetObject()) }

// DetectMap returns the minimal well-formed extent of a map field, assuming
// scalar keys and values; use DetectMapOfRefs otherwise.
func DetectMap(f Field) Data { return DetectMapBytes(f.GetObject()) }

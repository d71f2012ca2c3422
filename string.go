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

// String is a view over a String object: a LEB128 length mark followed by
// raw bytes, zero-padded out to a word boundary. It also backs packed
// byte-per-bool arrays (see BoolArray).
type String struct {
	bytes []byte
}

// NewString parses a String object out of data. data must start at the
// object's own header word; pass Field.GetObject()'s result directly.
func NewString(data Data) String {
	if len(data) == 0 {
		return String{}
	}
	raw := zc.Bytes(data)
	if raw[0]&3 != 0 {
		return String{}
	}
	var mark uint32
	i := 0
	for sft := uint(0); sft < 32; sft += 7 {
		if i >= len(raw) {
			return String{}
		}
		b := raw[i]
		i++
		if b&0x80 != 0 {
			mark |= uint32(b&0x7f) << sft
			continue
		}
		mark |= uint32(b) << sft
		n := int(mark >> 2)
		if i+n > len(raw) {
			return String{}
		}
		return String{bytes: raw[i : i+n]}
	}
	return String{}
}

// IsAbsent reports whether this is not a well-formed String object.
func (s String) IsAbsent() bool { return s.bytes == nil }

// Get returns the decoded byte content, with no copy.
func (s String) Get() []byte { return s.bytes }

// Text returns the decoded content as a string, with no copy; the returned
// string aliases the buffer s was built from.
func (s String) Text() string { return zc.String(s.bytes) }

// GetBoolArray reinterprets the decoded bytes as one bool per byte, the
// encoding this module uses for all repeated-bool fields (see the design
// note on packed bool arrays).
func (s String) GetBoolArray() []bool { return zc.Bools(s.bytes) }

// DetectStringBytes returns the minimal well-formed extent (in words) of
// the String object starting at data, or nil if data is not one.
func DetectStringBytes(data Data) Data {
	if len(data) == 0 {
		return nil
	}
	raw := zc.Bytes(data)
	if raw[0]&3 != 0 {
		return nil
	}
	var mark uint32
	i := 0
	for sft := uint(0); sft < 32; sft += 7 {
		if i >= len(raw) {
			return nil
		}
		b := raw[i]
		i++
		if b&0x80 != 0 {
			mark |= uint32(b&0x7f) << sft
			continue
		}
		mark |= uint32(b) << sft
		n := int(mark >> 2)
		if i+n > len(raw) {
			return nil
		}
		words := wordSize(i + n)
		if words > len(data) {
			return nil
		}
		return data[:words]
	}
	return nil
}

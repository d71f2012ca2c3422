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

// Package zc holds the handful of zero-copy reinterpretation casts the
// reader views need to treat a []uint32 word buffer as raw bytes, bools, or
// wide-word numbers without copying. It is the one place in this module that
// reaches for unsafe, mirroring the role hyperpb's internal/xunsafe and
// internal/zc packages play for its own zero-copy message views.
package zc

import "unsafe"

// Bytes reinterprets a little-endian word slice as its raw byte
// representation, with no copy. The returned slice aliases words and is
// invalidated if words is ever mutated or collected.
func Bytes(words []uint32) []byte {
	if len(words) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*4)
}

// Bools reinterprets a byte slice as a bool slice, with no copy. Go
// represents bool as a single byte with 0 meaning false, matching the
// packed byte-per-bool String encoding a bool array is stored as.
func Bools(b []byte) []bool {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*bool)(unsafe.Pointer(&b[0])), len(b))
}

// String reinterprets a byte slice as a string with no copy. The caller must
// ensure the backing buffer outlives the returned string and is never
// mutated through another alias.
func String(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// Numbers reinterprets a word slice as a slice of T, where T is a
// fixed-width scalar whose size in bytes is a multiple of 4 (int32, uint32,
// float32, int64, uint64, float64). The caller is responsible for checking
// that the array's element width in words matches sizeof(T)/4 before
// calling; this function itself only guards against an empty slice.
func Numbers[T any](words []uint32, wordsPerElem int, count uint32) []T {
	if len(words) == 0 || count == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&words[0])), count)
}

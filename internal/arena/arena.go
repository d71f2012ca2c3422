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

// Package arena provides a bump allocator for the byte-level scratch memory
// a single MPH build attempt needs (the peeling algorithm's visited
// bitsets): many short-lived allocations that can all be released at once
// by resetting the offset rather than freeing each one.
//
// Unlike a general-purpose arena, this one hands out plain Go byte slices
// rather than raw pointers, since none of the scratch data here needs to
// participate in pointer-chasing across allocations; a slice-based arena
// gets the same "one large backing array, reset instead of freed" win
// without reaching for unsafe.
package arena

// Arena is a bump allocator over a single reusable backing buffer.
//
// A zero Arena is empty and ready to use.
type Arena struct {
	buf []byte
	off int
}

// Alloc returns a zeroed byte slice of the given length, carved out of the
// arena's backing buffer. The backing buffer grows (to exactly the current
// offset plus n, copying its old contents) only when it is too short for
// the request. Reset keeps the buffer, so a later round that needs no more
// than an earlier round's high-water mark allocates nothing new.
func (a *Arena) Alloc(n int) []byte {
	if a.off+n > len(a.buf) {
		grown := make([]byte, a.off+n)
		copy(grown, a.buf)
		a.buf = grown
	}
	s := a.buf[a.off : a.off+n : a.off+n]
	a.off += n
	for i := range s {
		s[i] = 0
	}
	return s
}

// Reset releases all allocations, making the whole backing buffer available
// again. The underlying memory is retained (not returned to the GC) so that
// the next build reusing this Arena does not need to reallocate.
func (a *Arena) Reset() {
	a.off = 0
}

// Cap returns the size of the arena's backing buffer, for diagnostics.
func (a *Arena) Cap() int { return len(a.buf) }

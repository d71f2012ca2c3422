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

package mph

import (
	"encoding/binary"
	"sync"

	"github.com/protocache-go/protocache/internal/arena"
	"github.com/protocache-go/protocache/internal/hash"
)

// end is the linked-list terminator sentinel used by the peeling graph.
const end = ^uint32(0)

// maxSlotDegree aborts a build attempt early once any slot's bucket grows
// past this size; such a seed is almost certainly going to fail to peel, and
// bailing out keeps a single bad seed from doing O(n) extra work.
const maxSlotDegree = 50

// vertex is one endpoint of a 3-way hyperedge, forming a singly linked list
// of all edges that touch a given slot.
type vertex struct {
	slot uint32
	next uint32
}

type edge = [3]vertex

// graph is scratch space for one build attempt, reused across attempts and
// sized proportionally to n (see the resource-model budget in the design:
// edges 3n, queue n, node heads 3m, sizes 3m, visited bits ceil(3m/8)).
type graph struct {
	edges []edge
	nodes []uint32 // head of the per-slot linked list, indexed by slot
	sizes []uint8  // degree per slot, saturating at maxSlotDegree+1
}

// createGraph hashes every key with seed and links it into the three slot
// buckets its hash selects. Returns false if any bucket overflows
// maxSlotDegree, in which case the seed should be abandoned immediately.
func createGraph(keys [][]byte, seed uint32, g *graph, sec uint32) bool {
	for i := range g.nodes {
		g.nodes[i] = end
		g.sizes[i] = 0
	}
	for i, key := range keys {
		code := hash.Hash128(key, uint64(seed))
		slots := [3]uint32{
			code.U32(0) % sec,
			code.U32(1)%sec + sec,
			code.U32(2)%sec + sec*2,
		}
		e := &g.edges[i]
		for j, slot := range slots {
			e[j].slot = slot
			e[j].next = g.nodes[slot]
			g.nodes[slot] = uint32(i)
			g.sizes[slot]++
			if g.sizes[slot] > maxSlotDegree {
				return false
			}
		}
	}
	return true
}

// tearGraph repeatedly strips edges that own a slot of degree 1 ("leaves"),
// recording the order in which edges were peeled. If every edge peels, the
// seed is usable; the returned tail then equals n and q[:tail] holds the
// full peel order.
func tearGraph(g *graph, n uint32, q []uint32, booked []byte) int {
	for i := range booked {
		booked[i] = 0
	}
	tail := 0
	testAndSet := func(i uint32) bool {
		b := &booked[i>>3]
		m := byte(1) << (i & 7)
		if *b&m != 0 {
			return false
		}
		*b |= m
		return true
	}

	for i := n; i > 0; {
		i--
		e := &g.edges[i]
		for j := 0; j < 3; j++ {
			if g.sizes[e[j].slot] == 1 && testAndSet(i) {
				q[tail] = i
				tail++
			}
		}
	}

	head := 0
	for head < tail {
		curr := q[head]
		head++
		e := &g.edges[curr]
		for j := 0; j < 3; j++ {
			slot := e[j].slot
			p := &g.nodes[slot]
			for *p != curr {
				p = &g.edges[*p][j].next
			}
			*p = e[j].next
			e[j].next = end
			idx := g.nodes[slot]
			g.sizes[slot]--
			if g.sizes[slot] == 1 && idx != end && testAndSet(idx) {
				q[tail] = idx
				tail++
			}
		}
	}
	return tail
}

// mapping replays the peel order in reverse, assigning each edge's "new"
// (not yet assigned) slot a 2-bit tag such that the three tags of the edge
// sum to the index (0,1,2) of that new slot, mod 3. Every edge has at least
// one new slot at the time it is visited, because the forward order peeled
// it through a degree-1 slot that no later-peeled edge touches; the first
// new slot in a, b, c order takes the tag, and the edge's other slots are
// booked so no later edge assigns them.
func mapping(g *graph, n, sec uint32, peelOrder []uint32, bitmap, booked []byte) {
	for i := range bitmap {
		bitmap[i] = 0xff
	}
	for i := range booked {
		booked[i] = 0
	}

	testAndSet := func(pos uint32) bool {
		b := &booked[pos>>3]
		m := byte(1) << (pos & 7)
		if *b&m != 0 {
			return false
		}
		*b |= m
		return true
	}
	setBit := func(pos uint32) {
		booked[pos>>3] |= 1 << (pos & 7)
	}

	for i := len(peelOrder); i > 0; i-- {
		idx := peelOrder[i-1]
		e := &g.edges[idx]
		a, b, c := e[0].slot, e[1].slot, e[2].slot
		switch {
		case testAndSet(a):
			setBit(b)
			setBit(c)
			sum := bit2(bitmap, b) + bit2(bitmap, c)
			setBit2(bitmap, a, (6-sum)%3)
		case testAndSet(b):
			setBit(c)
			sum := bit2(bitmap, a) + bit2(bitmap, c)
			setBit2(bitmap, b, (7-sum)%3)
		case testAndSet(c):
			sum := bit2(bitmap, a) + bit2(bitmap, b)
			setBit2(bitmap, c, (8-sum)%3)
		default:
			panic("mph: impossible edge during mapping")
		}
	}
}

func setBit2(bitmap []byte, pos, val uint32) {
	bitmap[pos>>2] ^= byte((^val & 3) << ((pos & 3) << 1))
}

// tries returns the (first, second) attempt counts, mirroring the original
// implementation's choice based on the internal counter word width selected
// for n keys (1 byte for n<=255, else wider).
func tries(n uint32) (first, second int) {
	if n <= 0xff {
		return 8, 32
	}
	return 4, 12
}

// checkNoDuplicates re-hashes every key under seed and confirms no two keys
// collide on the full 128-bit code, using open addressing over a scratch
// table of 2n slots. Returns false if two distinct keys produced the same
// 128-bit code (for all practical purposes, a duplicate key).
func checkNoDuplicates(keys [][]byte, seed uint32) bool {
	n := uint32(len(keys))
	m := n * 2
	type slot struct {
		lo, hi uint64
		used   bool
	}
	space := make([]slot, m)

	for _, key := range keys {
		code := hash.Hash128(key, uint64(seed))
		pos := code.U32(0) % m
		ok := false
		for j := uint32(0); j < n; j++ {
			if !space[pos].used {
				space[pos] = slot{lo: code.Lo, hi: code.Hi, used: true}
				ok = true
				break
			}
			if space[pos].lo == code.Lo && space[pos].hi == code.Hi {
				return false
			}
			pos++
			if pos >= m {
				pos = 0
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Builder holds the scratch memory a single build attempt needs (the
// hypergraph's edges, per-slot linked-list heads and degrees, the peel
// queue, and the visited bitsets used while peeling and assigning tags).
// Reusing a Builder across many Build calls avoids reallocating this
// scratch space, which is sized proportionally to the key count: edges 3n,
// queue n, node heads 3m, sizes 3m bytes, visited bits ceil(3m/8). The three
// visited bitsets are carved out of an [arena.Arena] that Reset between
// builds instead of being freed; the typed slices above it are grown by
// hand since the arena only deals in bytes.
//
// A Builder is not safe for concurrent use; each goroutine building an
// index should own one (or borrow one from [builderPool]).
type Builder struct {
	rnd     *hash.Rand
	g       graph
	q       []uint32
	scratch arena.Arena
	book1, book2 []byte
	bitmap       []byte
}

// NewBuilder creates a Builder with a fresh, unseeded PRNG.
func NewBuilder() *Builder {
	return &Builder{rnd: hash.NewRand()}
}

var builderPool = sync.Pool{
	New: func() any { return NewBuilder() },
}

// Build constructs a minimal perfect hash over keys using a pooled
// [Builder], returning the scratch memory to the pool before returning.
// noCheck skips the explicit duplicate-detection sweep (used when the
// caller has already guaranteed distinctness), trading a small chance of a
// wasted build for speed.
//
// Returns ok == false if n exceeds the supported range, duplicates are
// detected, or every seed attempt fails to peel.
func Build(keys [][]byte, noCheck bool) (idx Index, ok bool) {
	b := builderPool.Get().(*Builder) //nolint:errcheck
	defer builderPool.Put(b)
	return b.Build(keys, noCheck)
}

// reserve grows b's scratch slices to fit a build over n keys with section
// size sec, without shrinking them back down between builds.
func (b *Builder) reserve(n, sec uint32) {
	slots := sec * 3
	if cap(b.g.edges) < int(n) {
		b.g.edges = make([]edge, n)
	} else {
		b.g.edges = b.g.edges[:n]
	}
	if cap(b.g.nodes) < int(slots) {
		b.g.nodes = make([]uint32, slots)
	} else {
		b.g.nodes = b.g.nodes[:slots]
	}
	if cap(b.g.sizes) < int(slots) {
		b.g.sizes = make([]uint8, slots)
	} else {
		b.g.sizes = b.g.sizes[:slots]
	}
	if cap(b.q) < int(n) {
		b.q = make([]uint32, n)
	} else {
		b.q = b.q[:n]
	}

	// book1, book2, and bitmap are pure byte scratch (visited bitsets), so
	// they come out of the arena rather than being grown by hand like the
	// typed slices above; Reset just rewinds the arena's bump offset, so the
	// backing buffer is only reallocated when this attempt needs more than
	// the previous one ever did.
	b.scratch.Reset()
	bookLen := int((n + 7) / 8)
	b.book1 = b.scratch.Alloc(bookLen)
	book2Len := int((slots + 7) / 8)
	b.book2 = b.scratch.Alloc(book2Len)
	bmsz := int(bitmapSize(sec))
	b.bitmap = b.scratch.Alloc(bmsz)
}

// Build is like the package-level [Build], but reuses this Builder's
// scratch memory instead of borrowing one from a pool.
func (b *Builder) Build(keys [][]byte, noCheck bool) (idx Index, ok bool) {
	n := uint32(len(keys))
	if n >= maxKeys {
		return Index{}, false
	}
	if n <= 1 {
		data := make([]byte, 4)
		binary.LittleEndian.PutUint32(data, n)
		return Index{data: data}, true
	}

	sec := section(n)
	b.reserve(n, sec)
	first, second := tries(n)

	attempt := func(seed uint32) bool {
		if !createGraph(keys, seed, &b.g, sec) {
			return false
		}
		tail := tearGraph(&b.g, n, b.q, b.book1)
		if uint32(tail) != n {
			return false
		}
		mapping(&b.g, n, sec, b.q[:tail], b.bitmap, b.book2)
		return true
	}

	var seed uint32
	found := false
	for i := 0; i < first; i++ {
		seed = b.rnd.Next()
		if attempt(seed) {
			found = true
			break
		}
	}

	if !found && !noCheck {
		if !checkNoDuplicates(keys, seed) {
			return Index{}, false
		}
	}

	if !found {
		for i := 0; i < second; i++ {
			seed = b.rnd.Next()
			if attempt(seed) {
				found = true
				break
			}
		}
	}
	if !found {
		return Index{}, false
	}

	return finish(n, seed, sec, b.bitmap), true
}

// finish assembles the header, bitmap, and (if applicable) rank table into
// the final serialized index.
func finish(n, seed, sec uint32, bitmap []byte) Index {
	bmsz := bitmapSize(sec)
	width := rankEntryWidth(n)
	blocks := bmsz / 8
	data := make([]byte, 8+bmsz+width*blocks)
	binary.LittleEndian.PutUint32(data[0:4], n)
	binary.LittleEndian.PutUint32(data[4:8], seed)
	copy(data[8:8+bmsz], bitmap)

	if width > 0 {
		table := data[8+bmsz:]
		var cnt uint32
		for i := uint32(0); i < blocks; i++ {
			block := binary.LittleEndian.Uint64(bitmap[i*8:])
			switch width {
			case 4:
				binary.LittleEndian.PutUint32(table[i*4:], cnt)
			case 2:
				binary.LittleEndian.PutUint16(table[i*2:], uint16(cnt))
			case 1:
				table[i] = byte(cnt)
			}
			cnt += countValidSlot(block)
		}
	}
	return Index{data: data, section: sec}
}

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

// Package hash provides the 128-bit SpookyHash-family mix and the xorshift128
// PRNG used to seed minimal-perfect-hash construction attempts.
package hash

import (
	"crypto/rand"
	"encoding/binary"
	"math/bits"
)

// magic is SpookyHash's traditional constant, used to seed the c/d lanes.
const magic = 0xdeadbeefdeadbeef

// V128 is a 128-bit hash result, addressable as two 64-bit halves or four
// 32-bit lanes.
type V128 struct {
	Lo, Hi uint64
}

// U32 returns the ith 32-bit lane (0..3), little-endian within each half.
func (v V128) U32(i int) uint32 {
	switch i {
	case 0:
		return uint32(v.Lo)
	case 1:
		return uint32(v.Lo >> 32)
	case 2:
		return uint32(v.Hi)
	default:
		return uint32(v.Hi >> 32)
	}
}

func rot64(x uint64, k uint) uint64 {
	return bits.RotateLeft64(x, int(k))
}

func mix(h0, h1, h2, h3 *uint64) {
	*h2 = rot64(*h2, 50)
	*h2 += *h3
	*h0 ^= *h2
	*h3 = rot64(*h3, 52)
	*h3 += *h0
	*h1 ^= *h3
	*h0 = rot64(*h0, 30)
	*h0 += *h1
	*h2 ^= *h0
	*h1 = rot64(*h1, 41)
	*h1 += *h2
	*h3 ^= *h1
	*h2 = rot64(*h2, 54)
	*h2 += *h3
	*h0 ^= *h2
	*h3 = rot64(*h3, 48)
	*h3 += *h0
	*h1 ^= *h3
	*h0 = rot64(*h0, 38)
	*h0 += *h1
	*h2 ^= *h0
	*h1 = rot64(*h1, 37)
	*h1 += *h2
	*h3 ^= *h1
	*h2 = rot64(*h2, 62)
	*h2 += *h3
	*h0 ^= *h2
	*h3 = rot64(*h3, 34)
	*h3 += *h0
	*h1 ^= *h3
	*h0 = rot64(*h0, 5)
	*h0 += *h1
	*h2 ^= *h0
	*h1 = rot64(*h1, 36)
	*h1 += *h2
	*h3 ^= *h1
}

func end(h0, h1, h2, h3 *uint64) {
	*h3 ^= *h2
	*h2 = rot64(*h2, 15)
	*h3 += *h2
	*h0 ^= *h3
	*h3 = rot64(*h3, 52)
	*h0 += *h3
	*h1 ^= *h0
	*h0 = rot64(*h0, 26)
	*h1 += *h0
	*h2 ^= *h1
	*h1 = rot64(*h1, 51)
	*h2 += *h1
	*h3 ^= *h2
	*h2 = rot64(*h2, 28)
	*h3 += *h2
	*h0 ^= *h3
	*h3 = rot64(*h3, 9)
	*h0 += *h3
	*h1 ^= *h0
	*h0 = rot64(*h0, 47)
	*h1 += *h0
	*h2 ^= *h1
	*h1 = rot64(*h1, 54)
	*h2 += *h1
	*h3 ^= *h2
	*h2 = rot64(*h2, 32)
	*h3 += *h2
	*h0 ^= *h3
	*h3 = rot64(*h3, 25)
	*h0 += *h3
	*h1 ^= *h0
	*h0 = rot64(*h0, 63)
	*h1 += *h0
}

// Hash128 computes a 128-bit SpookyHash-family mix of msg, seeded by seed.
//
// This is not a cryptographic hash; it exists purely to spray keys across
// the minimal-perfect-hash slot space and to support keyed map lookup.
func Hash128(msg []byte, seed uint64) V128 {
	a, b, c, d := seed, seed, uint64(magic), uint64(magic)
	origLen := len(msg)

	for len(msg) >= 32 {
		c += binary.LittleEndian.Uint64(msg[0:8])
		d += binary.LittleEndian.Uint64(msg[8:16])
		mix(&a, &b, &c, &d)
		a += binary.LittleEndian.Uint64(msg[16:24])
		b += binary.LittleEndian.Uint64(msg[24:32])
		msg = msg[32:]
	}

	if len(msg)&0x10 != 0 {
		c += binary.LittleEndian.Uint64(msg[0:8])
		d += binary.LittleEndian.Uint64(msg[8:16])
		mix(&a, &b, &c, &d)
		msg = msg[16:]
	}

	d += uint64(origLen) << 56
	tail := msg
	switch origLen & 0xf {
	case 15:
		d += uint64(tail[14]) << 48
		fallthrough
	case 14:
		d += uint64(tail[13]) << 40
		fallthrough
	case 13:
		d += uint64(tail[12]) << 32
		fallthrough
	case 12:
		d += uint64(binary.LittleEndian.Uint32(tail[8:12]))
		c += binary.LittleEndian.Uint64(tail[0:8])
	case 11:
		d += uint64(tail[10]) << 16
		fallthrough
	case 10:
		d += uint64(tail[9]) << 8
		fallthrough
	case 9:
		d += uint64(tail[8])
		fallthrough
	case 8:
		c += binary.LittleEndian.Uint64(tail[0:8])
	case 7:
		c += uint64(tail[6]) << 48
		fallthrough
	case 6:
		c += uint64(tail[5]) << 40
		fallthrough
	case 5:
		c += uint64(tail[4]) << 32
		fallthrough
	case 4:
		c += uint64(binary.LittleEndian.Uint32(tail[0:4]))
	case 3:
		c += uint64(tail[2]) << 16
		fallthrough
	case 2:
		c += uint64(tail[1]) << 8
		fallthrough
	case 1:
		c += uint64(tail[0])
	case 0:
		c += magic
		d += magic
	}
	end(&a, &b, &c, &d)

	return V128{Lo: a, Hi: b}
}

// Rand is a xorshift128 PRNG, used to draw seeds for MPH construction
// attempts. It is not safe for concurrent use; each [mph] builder owns one.
type Rand struct {
	state [4]uint32
}

// NewRand creates a PRNG seeded from a platform entropy source.
func NewRand() *Rand {
	var seed [4]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// crypto/rand.Read on every supported platform only fails if the
		// OS entropy source is unavailable, which would make the rest of
		// the program unusable anyway; fall back to a fixed seed so that
		// construction can still proceed deterministically.
		return NewRandSeeded(0x9e3779b9)
	}
	return NewRandSeeded(binary.LittleEndian.Uint32(seed[:]))
}

// NewRandSeeded creates a PRNG with an explicit seed, for reproducible tests.
func NewRandSeeded(seed uint32) *Rand {
	return &Rand{state: [4]uint32{0x6c078965, 0x9908b0df, 0x9d2c5680, seed}}
}

// Next draws the next pseudo-random word.
func (r *Rand) Next() uint32 {
	t := r.state[0] ^ (r.state[0] << 11)
	r.state[0] = r.state[1]
	r.state[1] = r.state[2]
	r.state[2] = r.state[3]
	r.state[3] ^= (r.state[3] >> 19) ^ t ^ (t >> 8)
	return r.state[3]
}

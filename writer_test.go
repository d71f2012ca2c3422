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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeTextRoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "hello, world", string(make([]byte, 200))} {
		data, err := SerializeText(s)
		require.NoError(t, err)
		view := NewString(data)
		require.False(t, view.IsAbsent())
		assert.Equal(t, s, view.Text())
	}
}

func TestSerializeBoolArrayRoundTrip(t *testing.T) {
	bs := []bool{true, false, false, true, true}
	data, err := SerializeBoolArray(bs)
	require.NoError(t, err)
	assert.Equal(t, bs, NewString(data).GetBoolArray())
}

func TestSerializeArrayOfNumbersRoundTrip(t *testing.T) {
	vals := []int32{1, -2, 3, 0, 1 << 20}
	data, err := SerializeArrayOfNumbers(vals)
	require.NoError(t, err)
	a := NewArray(data)
	require.False(t, a.IsAbsent())
	assert.Equal(t, vals, Numbers[int32](a))
}

func TestSerializeArrayOfNumbersWide(t *testing.T) {
	vals := []uint64{1, 2, 1 << 40, 0}
	data, err := SerializeArrayOfNumbers(vals)
	require.NoError(t, err)
	a := NewArray(data)
	assert.Equal(t, vals, Numbers[uint64](a))
}

func TestSerializeArrayOfStrings(t *testing.T) {
	strs := []string{"alpha", "beta", "gamma particle physics is long enough to force a reference slot"}
	elems := make([]Data, len(strs))
	for i, s := range strs {
		d, err := SerializeText(s)
		require.NoError(t, err)
		elems[i] = d
	}
	data, err := SerializeArray(elems)
	require.NoError(t, err)
	a := NewArray(data)
	require.EqualValues(t, len(strs), a.Size())
	for i, s := range strs {
		assert.Equal(t, s, Text(a.At(uint32(i))))
	}
}

func TestSerializeMessageRoundTrip(t *testing.T) {
	boolBlob := Data{1}
	intBlob := serializeScalar(int32(42))
	strBlob, err := SerializeText("hello")
	require.NoError(t, err)

	parts := make([]Data, 3)
	parts[0] = boolBlob
	parts[1] = intBlob
	parts[2] = strBlob

	data, err := SerializeMessage(parts)
	require.NoError(t, err)

	m := NewMessage(data)
	require.False(t, m.IsAbsent())
	assert.True(t, m.HasField(0))
	assert.True(t, Bool(m.GetField(0)))
	assert.EqualValues(t, 42, Int32(m.GetField(1)))
	assert.Equal(t, "hello", Text(m.GetField(2)))
}

func TestSerializeMessageTrimsTrailingAbsent(t *testing.T) {
	parts := make([]Data, 5)
	parts[1] = serializeScalar(int32(7))
	data, err := SerializeMessage(parts)
	require.NoError(t, err)
	m := NewMessage(data)
	assert.False(t, m.HasField(0))
	assert.True(t, m.HasField(1))
	assert.False(t, m.HasField(2))
}

func TestSerializeMessageEmpty(t *testing.T) {
	data, err := SerializeMessage(nil)
	require.NoError(t, err)
	assert.Equal(t, Data{0}, data)
}

func TestSerializeMessageBeyondHeaderLanes(t *testing.T) {
	n := 40 // forces at least one section word beyond the 12 header lanes
	parts := make([]Data, n)
	for i := range parts {
		parts[i] = serializeScalar(int32(i))
	}
	data, err := SerializeMessage(parts)
	require.NoError(t, err)
	m := NewMessage(data)
	for i := range parts {
		require.True(t, m.HasField(uint32(i)), "field %d", i)
		assert.EqualValues(t, i, Int32(m.GetField(uint32(i))))
	}
}

func TestBuildMapAndSerializeMapRoundTrip(t *testing.T) {
	n := 64
	keyBytes := make([][]byte, n)
	keys := make([]Data, n)
	values := make([]Data, n)
	want := make(map[string]int32, n)
	for i := 0; i < n; i++ {
		k := uuid.New().String()
		keyBytes[i] = []byte(k)
		kd, err := SerializeText(k)
		require.NoError(t, err)
		keys[i] = kd
		values[i] = serializeScalar(int32(i))
		want[k] = int32(i)
	}

	idx, orderedKeys, orderedValues, err := BuildMap(keyBytes, keys, values)
	require.NoError(t, err)
	data, err := SerializeMap(idx, orderedKeys, orderedValues)
	require.NoError(t, err)

	m := NewMap(data)
	require.False(t, m.IsAbsent())
	assert.EqualValues(t, n, m.Size())
	for k, v := range want {
		p := m.Find([]byte(k))
		require.False(t, p.IsAbsent(), "key %q", k)
		assert.Equal(t, v, Int32(p.Value()))
	}
	assert.True(t, m.Find([]byte("not-a-key-that-was-ever-inserted")).IsAbsent())
}

func TestBuildMapRejectsMismatchedLengths(t *testing.T) {
	_, _, _, err := BuildMap([][]byte{[]byte("a")}, nil, nil)
	require.Error(t, err)
}

func TestSerializeBytesEmptyBelowLimit(t *testing.T) {
	// The 2^30-byte limit itself is not reached here, since that would need
	// a 1 GiB input; this checks that an empty input stays under it.
	_, err := SerializeBytes(make([]byte, 0))
	require.NoError(t, err)
}

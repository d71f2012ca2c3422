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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldScalarAccessors(t *testing.T) {
	parts := []Data{
		{1},                   // bool true
		serializeScalar(int32(-7)),
		serializeScalar(uint32(42)),
		serializeScalar(float32(3.5)),
		serializeScalar(int64(-123456789012)),
		serializeScalar(uint64(123456789012)),
		serializeScalar(float64(2.718281828)),
	}
	data, err := SerializeMessage(parts)
	require.NoError(t, err)
	m := NewMessage(data)

	assert.True(t, Bool(m.GetField(0)))
	assert.EqualValues(t, -7, Int32(m.GetField(1)))
	assert.EqualValues(t, 42, Uint32(m.GetField(2)))
	assert.InDelta(t, 3.5, Float32(m.GetField(3)), 1e-6)
	assert.EqualValues(t, -123456789012, Int64(m.GetField(4)))
	assert.EqualValues(t, 123456789012, Uint64(m.GetField(5)))
	assert.InDelta(t, 2.718281828, Float64(m.GetField(6)), 1e-9)
}

func TestFieldAbsentAccessorsReturnZero(t *testing.T) {
	var f Field
	assert.True(t, f.IsAbsent())
	assert.False(t, Bool(f))
	assert.EqualValues(t, 0, Int32(f))
	assert.EqualValues(t, 0, Uint64(f))
	assert.Nil(t, f.GetValue())
	assert.Nil(t, f.GetObject())
}

func TestFieldGetObjectFollowsExactlyOneHop(t *testing.T) {
	want := "a string long enough to not be inlined into the message slot directly"
	str, err := SerializeText(want)
	require.NoError(t, err)
	data, err := SerializeMessage([]Data{str})
	require.NoError(t, err)
	m := NewMessage(data)
	f := m.GetField(0)
	obj := f.GetObject()
	require.NotNil(t, obj)
	assert.Equal(t, want, NewString(obj).Text())
}

func TestDetectValueIsJustGetValue(t *testing.T) {
	data, err := SerializeMessage([]Data{serializeScalar(int32(5))})
	require.NoError(t, err)
	m := NewMessage(data)
	f := m.GetField(0)
	assert.Equal(t, f.GetValue(), DetectValue(f))
}

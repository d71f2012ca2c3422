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
	"fmt"
	"math"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Serialize walks a live protoreflect.Message and produces its ProtoCache
// encoding, the schema-driven counterpart to the writer's low-level
// SerializeMessage/SerializeArray/SerializeMap entry points.
func Serialize(m protoreflect.Message) (Data, error) {
	desc := m.Descriptor()
	fields := desc.Fields()
	if fields.Len() == 0 {
		return nil, newError(KindMalformed, fmt.Sprintf("message %s has no fields", desc.FullName()), nil)
	}

	maxID := 1
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.Number() <= 0 {
			return nil, newError(KindMalformed, fmt.Sprintf("field %s has non-positive number", fd.FullName()), nil)
		}
		if n := int(fd.Number()); n > maxID {
			maxID = n
		}
	}
	if maxID > MaxFieldID || (maxID-fields.Len() > 6 && maxID > fields.Len()*2) {
		return nil, newError(KindSchemaViolation, fmt.Sprintf("message %s: field ids too sparse or too large", desc.FullName()), nil)
	}

	if fields.Len() == 1 && fields.Get(0).Name() == "_" && fields.Get(0).Number() == 1 {
		fd := fields.Get(0)
		if fd.Cardinality() != protoreflect.Repeated {
			return nil, newError(KindSchemaViolation, "alias field \"_\" must be repeated", nil)
		}
		if fd.IsMap() {
			if m.Get(fd).Map().Len() == 0 {
				return Data{5 << 28}, nil
			}
			return serializeMapField(m, fd)
		}
		if m.Get(fd).List().Len() == 0 {
			return Data{1}, nil
		}
		return serializeArrayField(m, fd)
	}

	parts := make([]Data, maxID)
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		j := int(fd.Number()) - 1
		if parts[j] != nil {
			return nil, newError(KindMalformed, fmt.Sprintf("field number %d used twice", fd.Number()), nil)
		}
		if fd.Cardinality() == protoreflect.Repeated {
			var unit Data
			var err error
			if fd.IsMap() {
				if m.Get(fd).Map().Len() == 0 {
					continue
				}
				unit, err = serializeMapField(m, fd)
			} else {
				if m.Get(fd).List().Len() == 0 {
					continue
				}
				unit, err = serializeArrayField(m, fd)
			}
			if err != nil {
				return nil, err
			}
			parts[j] = unit
			continue
		}
		if !m.Has(fd) {
			continue
		}
		unit, err := serializeScalarField(m, fd)
		if err != nil {
			return nil, err
		}
		if len(unit) == 1 && (fd.Kind() == protoreflect.MessageKind || fd.Kind() == protoreflect.GroupKind) {
			// An empty submessage serializes to just its header word; the
			// canonical encoding drops it to absent rather than storing a
			// present-but-empty width-1 slot.
			continue
		}
		parts[j] = unit
	}
	return SerializeMessage(parts)
}

func serializeScalarField(m protoreflect.Message, fd protoreflect.FieldDescriptor) (Data, error) {
	v := m.Get(fd)
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return Serialize(v.Message())
	case protoreflect.BytesKind:
		return SerializeBytes(v.Bytes())
	case protoreflect.StringKind:
		return SerializeText(v.String())
	case protoreflect.DoubleKind:
		return Data{uint32(math.Float64bits(v.Float())), uint32(math.Float64bits(v.Float()) >> 32)}, nil
	case protoreflect.FloatKind:
		return Data{math.Float32bits(float32(v.Float()))}, nil
	case protoreflect.Fixed64Kind, protoreflect.Uint64Kind:
		u := v.Uint()
		return Data{uint32(u), uint32(u >> 32)}, nil
	case protoreflect.Fixed32Kind, protoreflect.Uint32Kind:
		return Data{uint32(v.Uint())}, nil
	case protoreflect.Sfixed64Kind, protoreflect.Sint64Kind, protoreflect.Int64Kind:
		u := uint64(v.Int())
		return Data{uint32(u), uint32(u >> 32)}, nil
	case protoreflect.Sfixed32Kind, protoreflect.Sint32Kind, protoreflect.Int32Kind:
		return Data{uint32(v.Int())}, nil
	case protoreflect.BoolKind:
		if v.Bool() {
			return Data{1}, nil
		}
		return Data{0}, nil
	case protoreflect.EnumKind:
		return Data{uint32(v.Enum())}, nil
	default:
		return nil, newError(KindSchemaViolation, fmt.Sprintf("unsupported field kind %v", fd.Kind()), nil)
	}
}

func serializeArrayField(m protoreflect.Message, fd protoreflect.FieldDescriptor) (Data, error) {
	list := m.Get(fd).List()
	n := list.Len()
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		elems := make([]Data, n)
		for i := 0; i < n; i++ {
			d, err := Serialize(list.Get(i).Message())
			if err != nil {
				return nil, err
			}
			elems[i] = d
		}
		return SerializeArray(elems)
	case protoreflect.BytesKind:
		elems := make([]Data, n)
		for i := 0; i < n; i++ {
			d, err := SerializeBytes(list.Get(i).Bytes())
			if err != nil {
				return nil, err
			}
			elems[i] = d
		}
		return SerializeArray(elems)
	case protoreflect.StringKind:
		elems := make([]Data, n)
		for i := 0; i < n; i++ {
			d, err := SerializeText(list.Get(i).String())
			if err != nil {
				return nil, err
			}
			elems[i] = d
		}
		return SerializeArray(elems)
	case protoreflect.DoubleKind:
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = list.Get(i).Float()
		}
		return SerializeArrayOfNumbers(vals)
	case protoreflect.FloatKind:
		vals := make([]float32, n)
		for i := range vals {
			vals[i] = float32(list.Get(i).Float())
		}
		return SerializeArrayOfNumbers(vals)
	case protoreflect.Fixed64Kind, protoreflect.Uint64Kind:
		vals := make([]uint64, n)
		for i := range vals {
			vals[i] = list.Get(i).Uint()
		}
		return SerializeArrayOfNumbers(vals)
	case protoreflect.Fixed32Kind, protoreflect.Uint32Kind:
		vals := make([]uint32, n)
		for i := range vals {
			vals[i] = uint32(list.Get(i).Uint())
		}
		return SerializeArrayOfNumbers(vals)
	case protoreflect.Sfixed64Kind, protoreflect.Sint64Kind, protoreflect.Int64Kind:
		vals := make([]int64, n)
		for i := range vals {
			vals[i] = list.Get(i).Int()
		}
		return SerializeArrayOfNumbers(vals)
	case protoreflect.Sfixed32Kind, protoreflect.Sint32Kind, protoreflect.Int32Kind:
		vals := make([]int32, n)
		for i := range vals {
			vals[i] = int32(list.Get(i).Int())
		}
		return SerializeArrayOfNumbers(vals)
	case protoreflect.BoolKind:
		vals := make([]bool, n)
		for i := range vals {
			vals[i] = list.Get(i).Bool()
		}
		return SerializeBoolArray(vals)
	case protoreflect.EnumKind:
		vals := make([]int32, n)
		for i := range vals {
			vals[i] = int32(list.Get(i).Enum())
		}
		return SerializeArrayOfNumbers(vals)
	default:
		return nil, newError(KindSchemaViolation, fmt.Sprintf("unsupported repeated field kind %v", fd.Kind()), nil)
	}
}

func serializeMapField(m protoreflect.Message, fd protoreflect.FieldDescriptor) (Data, error) {
	keyFD := fd.MapKey()
	valFD := fd.MapValue()
	mm := m.Get(fd).Map()
	n := mm.Len()
	keyBytes := make([][]byte, 0, n)
	keys := make([]Data, 0, n)
	values := make([]Data, 0, n)
	var outerErr error
	mm.Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
		kb, err := mapKeyBytes(keyFD.Kind(), k)
		if err != nil {
			outerErr = err
			return false
		}
		kd, err := serializeMapKey(keyFD.Kind(), k)
		if err != nil {
			outerErr = err
			return false
		}
		vd, err := serializeMapValue(valFD, v)
		if err != nil {
			outerErr = err
			return false
		}
		keyBytes = append(keyBytes, kb)
		keys = append(keys, kd)
		values = append(values, vd)
		return true
	})
	if outerErr != nil {
		return nil, outerErr
	}
	idx, orderedKeys, orderedValues, err := BuildMap(keyBytes, keys, values)
	if err != nil {
		return nil, err
	}
	return SerializeMap(idx, orderedKeys, orderedValues)
}

func mapKeyBytes(kind protoreflect.Kind, k protoreflect.MapKey) ([]byte, error) {
	switch kind {
	case protoreflect.StringKind:
		return []byte(k.String()), nil
	case protoreflect.BytesKind:
		return []byte(k.String()), nil
	case protoreflect.Fixed64Kind, protoreflect.Uint64Kind:
		u := k.Uint()
		return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24), byte(u >> 32), byte(u >> 40), byte(u >> 48), byte(u >> 56)}, nil
	case protoreflect.Fixed32Kind, protoreflect.Uint32Kind:
		u := uint32(k.Uint())
		return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}, nil
	case protoreflect.Sfixed64Kind, protoreflect.Sint64Kind, protoreflect.Int64Kind:
		u := uint64(k.Int())
		return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24), byte(u >> 32), byte(u >> 40), byte(u >> 48), byte(u >> 56)}, nil
	case protoreflect.Sfixed32Kind, protoreflect.Sint32Kind, protoreflect.Int32Kind:
		u := uint32(k.Int())
		return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}, nil
	case protoreflect.BoolKind:
		if k.Bool() {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	default:
		return nil, newError(KindSchemaViolation, fmt.Sprintf("unsupported map key kind %v", kind), nil)
	}
}

func serializeMapKey(kind protoreflect.Kind, k protoreflect.MapKey) (Data, error) {
	switch kind {
	case protoreflect.StringKind:
		return SerializeText(k.String())
	case protoreflect.BytesKind:
		return SerializeBytes([]byte(k.String()))
	case protoreflect.Fixed64Kind, protoreflect.Uint64Kind:
		u := k.Uint()
		return Data{uint32(u), uint32(u >> 32)}, nil
	case protoreflect.Fixed32Kind, protoreflect.Uint32Kind:
		return Data{uint32(k.Uint())}, nil
	case protoreflect.Sfixed64Kind, protoreflect.Sint64Kind, protoreflect.Int64Kind:
		u := uint64(k.Int())
		return Data{uint32(u), uint32(u >> 32)}, nil
	case protoreflect.Sfixed32Kind, protoreflect.Sint32Kind, protoreflect.Int32Kind:
		return Data{uint32(k.Int())}, nil
	case protoreflect.BoolKind:
		if k.Bool() {
			return Data{1}, nil
		}
		return Data{0}, nil
	default:
		return nil, newError(KindSchemaViolation, fmt.Sprintf("unsupported map key kind %v", kind), nil)
	}
}

func serializeMapValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) (Data, error) {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return Serialize(v.Message())
	case protoreflect.BytesKind:
		return SerializeBytes(v.Bytes())
	case protoreflect.StringKind:
		return SerializeText(v.String())
	case protoreflect.DoubleKind:
		u := math.Float64bits(v.Float())
		return Data{uint32(u), uint32(u >> 32)}, nil
	case protoreflect.FloatKind:
		return Data{math.Float32bits(float32(v.Float()))}, nil
	case protoreflect.Fixed64Kind, protoreflect.Uint64Kind:
		u := v.Uint()
		return Data{uint32(u), uint32(u >> 32)}, nil
	case protoreflect.Fixed32Kind, protoreflect.Uint32Kind:
		return Data{uint32(v.Uint())}, nil
	case protoreflect.Sfixed64Kind, protoreflect.Sint64Kind, protoreflect.Int64Kind:
		u := uint64(v.Int())
		return Data{uint32(u), uint32(u >> 32)}, nil
	case protoreflect.Sfixed32Kind, protoreflect.Sint32Kind, protoreflect.Int32Kind:
		return Data{uint32(v.Int())}, nil
	case protoreflect.BoolKind:
		if v.Bool() {
			return Data{1}, nil
		}
		return Data{0}, nil
	case protoreflect.EnumKind:
		return Data{uint32(v.Enum())}, nil
	default:
		return nil, newError(KindSchemaViolation, fmt.Sprintf("unsupported map value kind %v", fd.Kind()), nil)
	}
}

// Deserialize populates a live protoreflect.Message from a ProtoCache
// buffer built by Serialize against the same descriptor.
func Deserialize(data Data, m protoreflect.Message) error {
	desc := m.Descriptor()
	fields := desc.Fields()
	if fields.Len() == 1 {
		fd := fields.Get(0)
		if fd.Name() == "_" && fd.Number() == 1 {
			if fd.Cardinality() != protoreflect.Repeated {
				return newError(KindSchemaViolation, "alias field \"_\" must be repeated", nil)
			}
			if fd.IsMap() {
				return deserializeMap(data, fd, m)
			}
			return deserializeArray(data, fd, m)
		}
	}

	src := NewMessage(data)
	if src.IsAbsent() {
		return newError(KindMalformed, "not a well-formed message object", nil)
	}
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		id := uint32(fd.Number()) - 1
		if !src.HasField(id) {
			continue
		}
		field := src.GetField(id)
		var err error
		switch {
		case fd.IsMap():
			err = deserializeMap(field.GetObject(), fd, m)
		case fd.Cardinality() == protoreflect.Repeated:
			err = deserializeArray(field.GetObject(), fd, m)
		default:
			err = deserializeSingle(field, fd, m)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func deserializeSingle(f Field, fd protoreflect.FieldDescriptor, m protoreflect.Message) error {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		child := m.NewField(fd).Message()
		if err := Deserialize(f.GetObject(), child); err != nil {
			return err
		}
		m.Set(fd, protoreflect.ValueOfMessage(child))
	case protoreflect.BytesKind:
		m.Set(fd, protoreflect.ValueOfBytes(Bytes(f)))
	case protoreflect.StringKind:
		m.Set(fd, protoreflect.ValueOfString(Text(f)))
	case protoreflect.DoubleKind:
		m.Set(fd, protoreflect.ValueOfFloat64(Float64(f)))
	case protoreflect.FloatKind:
		m.Set(fd, protoreflect.ValueOfFloat32(Float32(f)))
	case protoreflect.Fixed64Kind, protoreflect.Uint64Kind:
		m.Set(fd, protoreflect.ValueOfUint64(Uint64(f)))
	case protoreflect.Fixed32Kind, protoreflect.Uint32Kind:
		m.Set(fd, protoreflect.ValueOfUint32(Uint32(f)))
	case protoreflect.Sfixed64Kind, protoreflect.Sint64Kind, protoreflect.Int64Kind:
		m.Set(fd, protoreflect.ValueOfInt64(Int64(f)))
	case protoreflect.Sfixed32Kind, protoreflect.Sint32Kind, protoreflect.Int32Kind:
		m.Set(fd, protoreflect.ValueOfInt32(Int32(f)))
	case protoreflect.BoolKind:
		m.Set(fd, protoreflect.ValueOfBool(Bool(f)))
	case protoreflect.EnumKind:
		m.Set(fd, protoreflect.ValueOfEnum(protoreflect.EnumNumber(Enum(f))))
	default:
		return newError(KindSchemaViolation, fmt.Sprintf("unsupported field kind %v", fd.Kind()), nil)
	}
	return nil
}

func deserializeArray(data Data, fd protoreflect.FieldDescriptor, m protoreflect.Message) error {
	list := m.Mutable(fd).List()
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		a := NewArray(data)
		for i := uint32(0); i < a.Size(); i++ {
			child := list.NewElement().Message()
			if err := Deserialize(a.At(i).GetObject(), child); err != nil {
				return err
			}
			list.Append(protoreflect.ValueOfMessage(child))
		}
	case protoreflect.BytesKind:
		a := NewArray(data)
		for i := uint32(0); i < a.Size(); i++ {
			list.Append(protoreflect.ValueOfBytes(Bytes(a.At(i))))
		}
	case protoreflect.StringKind:
		a := NewArray(data)
		for i := uint32(0); i < a.Size(); i++ {
			list.Append(protoreflect.ValueOfString(Text(a.At(i))))
		}
	case protoreflect.DoubleKind:
		for _, v := range Numbers[float64](NewArray(data)) {
			list.Append(protoreflect.ValueOfFloat64(v))
		}
	case protoreflect.FloatKind:
		for _, v := range Numbers[float32](NewArray(data)) {
			list.Append(protoreflect.ValueOfFloat32(v))
		}
	case protoreflect.Fixed64Kind, protoreflect.Uint64Kind:
		for _, v := range Numbers[uint64](NewArray(data)) {
			list.Append(protoreflect.ValueOfUint64(v))
		}
	case protoreflect.Fixed32Kind, protoreflect.Uint32Kind:
		for _, v := range Numbers[uint32](NewArray(data)) {
			list.Append(protoreflect.ValueOfUint32(v))
		}
	case protoreflect.Sfixed64Kind, protoreflect.Sint64Kind, protoreflect.Int64Kind:
		for _, v := range Numbers[int64](NewArray(data)) {
			list.Append(protoreflect.ValueOfInt64(v))
		}
	case protoreflect.Sfixed32Kind, protoreflect.Sint32Kind, protoreflect.Int32Kind:
		for _, v := range Numbers[int32](NewArray(data)) {
			list.Append(protoreflect.ValueOfInt32(v))
		}
	case protoreflect.BoolKind:
		for _, v := range NewString(data).GetBoolArray() {
			list.Append(protoreflect.ValueOfBool(v))
		}
	case protoreflect.EnumKind:
		for _, v := range Numbers[int32](NewArray(data)) {
			list.Append(protoreflect.ValueOfEnum(protoreflect.EnumNumber(v)))
		}
	default:
		return newError(KindSchemaViolation, fmt.Sprintf("unsupported repeated field kind %v", fd.Kind()), nil)
	}
	m.Set(fd, m.Mutable(fd))
	return nil
}

func deserializeMap(data Data, fd protoreflect.FieldDescriptor, m protoreflect.Message) error {
	mp := NewMap(data)
	if mp.IsAbsent() {
		return newError(KindMalformed, "not a well-formed map object", nil)
	}
	keyFD := fd.MapKey()
	valFD := fd.MapValue()
	dst := m.Mutable(fd).Map()
	for i := uint32(0); i < mp.Size(); i++ {
		p := mp.At(i)
		key, err := deserializeMapKey(keyFD.Kind(), p.Key())
		if err != nil {
			return err
		}
		val, err := deserializeMapValue(valFD, p.Value(), dst)
		if err != nil {
			return err
		}
		dst.Set(key, val)
	}
	m.Set(fd, m.Mutable(fd))
	return nil
}

func deserializeMapKey(kind protoreflect.Kind, f Field) (protoreflect.MapKey, error) {
	switch kind {
	case protoreflect.StringKind, protoreflect.BytesKind:
		return protoreflect.ValueOfString(Text(f)).MapKey(), nil
	case protoreflect.Fixed64Kind, protoreflect.Uint64Kind:
		return protoreflect.ValueOfUint64(Uint64(f)).MapKey(), nil
	case protoreflect.Fixed32Kind, protoreflect.Uint32Kind:
		return protoreflect.ValueOfUint32(Uint32(f)).MapKey(), nil
	case protoreflect.Sfixed64Kind, protoreflect.Sint64Kind, protoreflect.Int64Kind:
		return protoreflect.ValueOfInt64(Int64(f)).MapKey(), nil
	case protoreflect.Sfixed32Kind, protoreflect.Sint32Kind, protoreflect.Int32Kind:
		return protoreflect.ValueOfInt32(Int32(f)).MapKey(), nil
	case protoreflect.BoolKind:
		return protoreflect.ValueOfBool(Bool(f)).MapKey(), nil
	default:
		return protoreflect.MapKey{}, newError(KindSchemaViolation, fmt.Sprintf("unsupported map key kind %v", kind), nil)
	}
}

func deserializeMapValue(fd protoreflect.FieldDescriptor, f Field, dst protoreflect.Map) (protoreflect.Value, error) {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		child := dst.NewValue().Message()
		if err := Deserialize(f.GetObject(), child); err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfMessage(child), nil
	case protoreflect.BytesKind:
		return protoreflect.ValueOfBytes(Bytes(f)), nil
	case protoreflect.StringKind:
		return protoreflect.ValueOfString(Text(f)), nil
	case protoreflect.DoubleKind:
		return protoreflect.ValueOfFloat64(Float64(f)), nil
	case protoreflect.FloatKind:
		return protoreflect.ValueOfFloat32(Float32(f)), nil
	case protoreflect.Fixed64Kind, protoreflect.Uint64Kind:
		return protoreflect.ValueOfUint64(Uint64(f)), nil
	case protoreflect.Fixed32Kind, protoreflect.Uint32Kind:
		return protoreflect.ValueOfUint32(Uint32(f)), nil
	case protoreflect.Sfixed64Kind, protoreflect.Sint64Kind, protoreflect.Int64Kind:
		return protoreflect.ValueOfInt64(Int64(f)), nil
	case protoreflect.Sfixed32Kind, protoreflect.Sint32Kind, protoreflect.Int32Kind:
		return protoreflect.ValueOfInt32(Int32(f)), nil
	case protoreflect.BoolKind:
		return protoreflect.ValueOfBool(Bool(f)), nil
	case protoreflect.EnumKind:
		return protoreflect.ValueOfEnum(protoreflect.EnumNumber(Enum(f))), nil
	default:
		return protoreflect.Value{}, newError(KindSchemaViolation, fmt.Sprintf("unsupported map value kind %v", fd.Kind()), nil)
	}
}

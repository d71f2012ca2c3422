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

// Package xschema builds the schema model the writer and the schema-driven
// bridge need (message/field shape, map key/value types, alias detection)
// by walking a protoreflect.FileDescriptor, rather than parsing .proto IDL
// directly. This mirrors reflection.h/reflection.cc's DescriptorPool, with
// google.golang.org/protobuf's protoreflect standing in for the original's
// own in-process FileDescriptorProto walk.
package xschema

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Type is the resolved wire-level type of a field.
type Type uint8

const (
	TypeNone Type = iota
	TypeMessage
	TypeBytes
	TypeString
	TypeDouble
	TypeFloat
	TypeUint64
	TypeUint32
	TypeInt64
	TypeInt32
	TypeBool
	TypeEnum
)

// Field describes one field of a Message, or the sole repeated field of an
// alias message.
type Field struct {
	ID       uint32 // 0-based, i.e. proto field number - 1
	Repeated bool
	Key      Type // TypeNone unless this field is a map
	Value    Type
	FullName string // message/enum full name when Value needs one, else ""
}

// IsMap reports whether this field is a map field.
func (f Field) IsMap() bool { return f.Key != TypeNone }

// IsAbsent reports whether this is the zero Field (field unresolved).
func (f Field) IsAbsent() bool { return f.Value == TypeNone }

// Message describes one registered message type: either a normal message
// with named fields, or an alias (a message with a single repeated field
// literally named "_", unwrapped transparently by reader and writer).
type Message struct {
	FullName string
	Alias    Field // Alias.Value != TypeNone for an alias message
	Fields   map[string]Field
	ByID     map[uint32]Field
}

// IsAlias reports whether this message is an alias.
func (m *Message) IsAlias() bool { return m.Alias.Value != TypeNone }

// maxFieldID and fieldCount together drive the dense-id rejection (Q2):
// the writer's section-word scheme degrades badly when field ids are
// sparse relative to how many fields actually exist, so schema
// registration rejects that shape up front instead of letting the writer
// build a pathologically large section table.
func (m *Message) maxFieldID() (max uint32, ok bool) {
	for id := range m.ByID {
		if !ok || id > max {
			max = id
			ok = true
		}
	}
	return max, ok
}

// checkDenseID enforces the bound from Q2: reject a message whose maximum
// field id is far sparser than its field count would justify. See
// DESIGN.md for why this lives here instead of in the raw writer.
func (m *Message) checkDenseID() error {
	maxID, ok := m.maxFieldID()
	if !ok {
		return nil
	}
	n := uint32(len(m.ByID))
	if maxID+1-n > 6 && maxID+1 > 2*n {
		return fmt.Errorf("xschema: message %s: field ids too sparse (max id %d over %d fields)", m.FullName, maxID, n)
	}
	if maxID+1 > 6387 {
		return fmt.Errorf("xschema: message %s: field number %d exceeds maximum of 6387", m.FullName, maxID+1)
	}
	return nil
}

// Pool is a registry of Message descriptors keyed by fully-qualified name.
type Pool struct {
	messages map[string]*Message
	enums    map[string]bool
}

// NewPool creates an empty registry.
func NewPool() *Pool {
	return &Pool{messages: make(map[string]*Message), enums: make(map[string]bool)}
}

// Find returns the registered Message for fullname, or nil.
func (p *Pool) Find(fullname string) *Message { return p.messages[fullname] }

// FromFileDescriptor walks the messages declared in fd (including nested
// ones) and returns a Pool with each of them registered, map entry types
// excepted. Files that fd imports are not walked, and deprecated message
// types are registered like any other.
func FromFileDescriptor(fd protoreflect.FileDescriptor) (*Pool, error) {
	p := NewPool()
	if err := p.registerFile(fd); err != nil {
		return nil, err
	}
	for _, m := range p.messages {
		if err := m.checkDenseID(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pool) registerFile(fd protoreflect.FileDescriptor) error {
	enums := fd.Enums()
	for i := 0; i < enums.Len(); i++ {
		p.enums[string(enums.Get(i).FullName())] = true
	}
	msgs := fd.Messages()
	for i := 0; i < msgs.Len(); i++ {
		if err := p.registerMessage(msgs.Get(i)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) registerMessage(md protoreflect.MessageDescriptor) error {
	if md.IsMapEntry() {
		return nil
	}
	nested := md.Enums()
	for i := 0; i < nested.Len(); i++ {
		p.enums[string(nested.Get(i).FullName())] = true
	}
	children := md.Messages()
	for i := 0; i < children.Len(); i++ {
		if err := p.registerMessage(children.Get(i)); err != nil {
			return err
		}
	}

	fullname := string(md.FullName())
	fields := md.Fields()
	msg := &Message{FullName: fullname, Fields: make(map[string]Field), ByID: make(map[uint32]Field)}

	if fields.Len() == 1 && fields.Get(0).Name() == "_" {
		f, err := p.convertField(fields.Get(0))
		if err != nil {
			return err
		}
		msg.Alias = f
		p.messages[fullname] = msg
		return nil
	}

	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.Number() <= 0 {
			return fmt.Errorf("xschema: message %s: field %s has non-positive number", fullname, fd.Name())
		}
		f, err := p.convertField(fd)
		if err != nil {
			return err
		}
		msg.Fields[string(fd.Name())] = f
		msg.ByID[f.ID] = f
	}
	p.messages[fullname] = msg
	return nil
}

func (p *Pool) convertField(fd protoreflect.FieldDescriptor) (Field, error) {
	f := Field{
		ID:       uint32(fd.Number()) - 1,
		Repeated: fd.Cardinality() == protoreflect.Repeated && !fd.IsMap(),
	}
	if fd.IsMap() {
		keyType, err := p.kindToType(fd.MapKey())
		if err != nil {
			return Field{}, err
		}
		if !canBeKey(keyType) {
			return Field{}, fmt.Errorf("xschema: field %s: map key type %v cannot be a key", fd.FullName(), keyType)
		}
		valType, err := p.kindToType(fd.MapValue())
		if err != nil {
			return Field{}, err
		}
		f.Key = keyType
		f.Value = valType
		f.FullName = fieldTypeName(fd.MapValue())
		return f, nil
	}
	valType, err := p.kindToType(fd)
	if err != nil {
		return Field{}, err
	}
	f.Value = valType
	f.FullName = fieldTypeName(fd)
	return f, nil
}

func fieldTypeName(fd protoreflect.FieldDescriptor) string {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return string(fd.Message().FullName())
	case protoreflect.EnumKind:
		return string(fd.Enum().FullName())
	default:
		return ""
	}
}

func (p *Pool) kindToType(fd protoreflect.FieldDescriptor) (Type, error) {
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return TypeMessage, nil
	case protoreflect.BytesKind:
		return TypeBytes, nil
	case protoreflect.StringKind:
		return TypeString, nil
	case protoreflect.DoubleKind:
		return TypeDouble, nil
	case protoreflect.FloatKind:
		return TypeFloat, nil
	case protoreflect.Fixed64Kind, protoreflect.Uint64Kind:
		return TypeUint64, nil
	case protoreflect.Fixed32Kind, protoreflect.Uint32Kind:
		return TypeUint32, nil
	case protoreflect.Sfixed64Kind, protoreflect.Sint64Kind, protoreflect.Int64Kind:
		return TypeInt64, nil
	case protoreflect.Sfixed32Kind, protoreflect.Sint32Kind, protoreflect.Int32Kind:
		return TypeInt32, nil
	case protoreflect.BoolKind:
		return TypeBool, nil
	case protoreflect.EnumKind:
		return TypeEnum, nil
	default:
		return TypeNone, fmt.Errorf("xschema: field %s: unsupported kind %v", fd.FullName(), fd.Kind())
	}
}

func canBeKey(t Type) bool {
	switch t {
	case TypeString, TypeUint64, TypeUint32, TypeInt64, TypeInt32, TypeBool:
		return true
	default:
		return false
	}
}

// ResolveValueMessage looks up the Message descriptor for a TypeMessage
// field's value type, given the pool it was registered in. Returns nil if
// the field is not message-typed or the type was never registered (e.g. it
// lives in a file the caller never fed to FromFileDescriptor).
func (p *Pool) ResolveValueMessage(f Field) *Message {
	if f.Value != TypeMessage || f.FullName == "" {
		return nil
	}
	return p.messages[f.FullName]
}

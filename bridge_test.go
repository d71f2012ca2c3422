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

	"github.com/protocache-go/protocache/internal/xschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// buildBridgeTestDescriptor assembles, by hand, a small FileDescriptorProto
// for a message with a scalar, a string, a repeated int32, a nested
// message, and a string->int32 map — exercising every field shape the
// bridge dispatches on without needing a .proto compiler in this test
// binary.
func buildBridgeTestDescriptor(t *testing.T) protoreflect.MessageDescriptor {
	t.Helper()

	label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	repeated := descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	tInt32 := descriptorpb.FieldDescriptorProto_TYPE_INT32
	tString := descriptorpb.FieldDescriptorProto_TYPE_STRING
	tMessage := descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	tBool := descriptorpb.FieldDescriptorProto_TYPE_BOOL

	inner := &descriptorpb.DescriptorProto{
		Name: proto.String("Inner"),
		Field: []*descriptorpb.FieldDescriptorProto{
			{Name: proto.String("flag"), Number: proto.Int32(1), Label: &label, Type: &tBool},
		},
	}

	entryKeyType := descriptorpb.FieldDescriptorProto_TYPE_STRING
	entryValType := descriptorpb.FieldDescriptorProto_TYPE_INT32
	mapEntry := &descriptorpb.DescriptorProto{
		Name: proto.String("TagsEntry"),
		Field: []*descriptorpb.FieldDescriptorProto{
			{Name: proto.String("key"), Number: proto.Int32(1), Label: &label, Type: &entryKeyType},
			{Name: proto.String("value"), Number: proto.Int32(2), Label: &label, Type: &entryValType},
		},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}

	root := &descriptorpb.DescriptorProto{
		Name: proto.String("Root"),
		Field: []*descriptorpb.FieldDescriptorProto{
			{Name: proto.String("id"), Number: proto.Int32(1), Label: &label, Type: &tInt32},
			{Name: proto.String("name"), Number: proto.Int32(2), Label: &label, Type: &tString},
			{Name: proto.String("values"), Number: proto.Int32(3), Label: &repeated, Type: &tInt32},
			{Name: proto.String("child"), Number: proto.Int32(4), Label: &label, Type: &tMessage, TypeName: proto.String(".bridgetest.Root.Inner")},
			{
				Name: proto.String("tags"), Number: proto.Int32(5), Label: &repeated, Type: &tMessage,
				TypeName: proto.String(".bridgetest.Root.TagsEntry"),
			},
		},
		NestedType: []*descriptorpb.DescriptorProto{inner, mapEntry},
	}

	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("bridgetest.proto"),
		Package: proto.String("bridgetest"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{root},
	}

	fd, err := protodesc.NewFile(fdp, nil)
	require.NoError(t, err)
	md := fd.Messages().ByName("Root")
	require.NotNil(t, md)
	return md
}

func TestBridgeSerializeDeserializeRoundTrip(t *testing.T) {
	md := buildBridgeTestDescriptor(t)

	pool, err := xschema.FromFileDescriptor(md.ParentFile())
	require.NoError(t, err)
	require.NotNil(t, pool.Find(string(md.FullName())))

	msg := dynamicpb.NewMessage(md)
	r := msg.ProtoReflect()
	r.Set(md.Fields().ByName("id"), protoreflect.ValueOfInt32(7))
	r.Set(md.Fields().ByName("name"), protoreflect.ValueOfString("hello bridge"))

	values := r.Mutable(md.Fields().ByName("values")).List()
	for _, v := range []int32{10, 20, 30} {
		values.Append(protoreflect.ValueOfInt32(v))
	}

	childDesc := md.Fields().ByName("child").Message()
	child := dynamicpb.NewMessage(childDesc)
	child.ProtoReflect().Set(childDesc.Fields().ByName("flag"), protoreflect.ValueOfBool(true))
	r.Set(md.Fields().ByName("child"), protoreflect.ValueOfMessage(child.ProtoReflect()))

	tags := r.Mutable(md.Fields().ByName("tags")).Map()
	tags.Set(protoreflect.ValueOfString("a").MapKey(), protoreflect.ValueOfInt32(1))
	tags.Set(protoreflect.ValueOfString("b").MapKey(), protoreflect.ValueOfInt32(2))

	data, err := Serialize(r)
	require.NoError(t, err)

	out := dynamicpb.NewMessage(md)
	require.NoError(t, Deserialize(data, out.ProtoReflect()))

	require.True(t, proto.Equal(msg, out))
}

func TestBridgeEmptyMessage(t *testing.T) {
	md := buildBridgeTestDescriptor(t)
	msg := dynamicpb.NewMessage(md)
	data, err := Serialize(msg.ProtoReflect())
	require.NoError(t, err)

	out := dynamicpb.NewMessage(md)
	require.NoError(t, Deserialize(data, out.ProtoReflect()))
	require.True(t, proto.Equal(msg, out))
}

// TestBridgeEmptySubmessageFieldTrimmed covers a present-but-empty
// submessage field nested inside an otherwise-populated message: the
// canonical encoding drops it to absent rather than storing a present
// width-1 slot, so the round trip loses the field's presence even though
// every other field survives untouched.
func TestBridgeEmptySubmessageFieldTrimmed(t *testing.T) {
	md := buildBridgeTestDescriptor(t)
	msg := dynamicpb.NewMessage(md)
	r := msg.ProtoReflect()
	r.Set(md.Fields().ByName("id"), protoreflect.ValueOfInt32(7))

	childFD := md.Fields().ByName("child")
	child := dynamicpb.NewMessage(childFD.Message())
	r.Set(childFD, protoreflect.ValueOfMessage(child.ProtoReflect()))
	require.True(t, r.Has(childFD))

	data, err := Serialize(r)
	require.NoError(t, err)
	require.False(t, NewMessage(data).HasField(3), "empty submessage field must encode as absent, not a present empty object")

	out := dynamicpb.NewMessage(md)
	require.NoError(t, Deserialize(data, out.ProtoReflect()))
	assert.False(t, out.ProtoReflect().Has(childFD))
	assert.EqualValues(t, 7, out.ProtoReflect().Get(md.Fields().ByName("id")).Int())
}

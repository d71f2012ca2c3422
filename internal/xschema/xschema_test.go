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

package xschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
)

func fieldProto(name string, num int32, label descriptorpb.FieldDescriptorProto_Label, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Label:  &label,
		Type:   &typ,
	}
}

func buildFile(t *testing.T, pkg string, messages ...*descriptorpb.DescriptorProto) *descriptorpb.FileDescriptorProto {
	t.Helper()
	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String(pkg + ".proto"),
		Package:     proto.String(pkg),
		Syntax:      proto.String("proto3"),
		MessageType: messages,
	}
}

func TestFromFileDescriptorBasicMessage(t *testing.T) {
	opt := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	msg := &descriptorpb.DescriptorProto{
		Name: proto.String("M"),
		Field: []*descriptorpb.FieldDescriptorProto{
			fieldProto("a", 1, opt, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			fieldProto("b", 2, opt, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		},
	}
	fdp := buildFile(t, "basic", msg)
	fd, err := protodesc.NewFile(fdp, nil)
	require.NoError(t, err)

	pool, err := FromFileDescriptor(fd)
	require.NoError(t, err)

	m := pool.Find("basic.M")
	require.NotNil(t, m)
	assert.False(t, m.IsAlias())
	assert.Equal(t, TypeInt32, m.Fields["a"].Value)
	assert.Equal(t, TypeString, m.Fields["b"].Value)
	assert.EqualValues(t, 0, m.Fields["a"].ID)
	assert.EqualValues(t, 1, m.Fields["b"].ID)
}

func TestFromFileDescriptorAliasMessage(t *testing.T) {
	rep := descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	alias := &descriptorpb.DescriptorProto{
		Name: proto.String("Alias"),
		Field: []*descriptorpb.FieldDescriptorProto{
			fieldProto("_", 1, rep, descriptorpb.FieldDescriptorProto_TYPE_INT32),
		},
	}
	fdp := buildFile(t, "aliastest", alias)
	fd, err := protodesc.NewFile(fdp, nil)
	require.NoError(t, err)

	pool, err := FromFileDescriptor(fd)
	require.NoError(t, err)

	m := pool.Find("aliastest.Alias")
	require.NotNil(t, m)
	assert.True(t, m.IsAlias())
	assert.Equal(t, TypeInt32, m.Alias.Value)
	assert.True(t, m.Alias.Repeated)
}

func TestFromFileDescriptorRejectsSparseIDs(t *testing.T) {
	opt := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	msg := &descriptorpb.DescriptorProto{
		Name: proto.String("Sparse"),
		Field: []*descriptorpb.FieldDescriptorProto{
			fieldProto("a", 1, opt, descriptorpb.FieldDescriptorProto_TYPE_INT32),
			fieldProto("b", 500, opt, descriptorpb.FieldDescriptorProto_TYPE_INT32),
		},
	}
	fdp := buildFile(t, "sparse", msg)
	fd, err := protodesc.NewFile(fdp, nil)
	require.NoError(t, err)

	_, err = FromFileDescriptor(fd)
	require.Error(t, err)
}

func TestFromFileDescriptorMapField(t *testing.T) {
	opt := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	rep := descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	entry := &descriptorpb.DescriptorProto{
		Name: proto.String("TagsEntry"),
		Field: []*descriptorpb.FieldDescriptorProto{
			fieldProto("key", 1, opt, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			fieldProto("value", 2, opt, descriptorpb.FieldDescriptorProto_TYPE_INT32),
		},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}
	tMessage := descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	msg := &descriptorpb.DescriptorProto{
		Name: proto.String("WithMap"),
		Field: []*descriptorpb.FieldDescriptorProto{
			{
				Name: proto.String("tags"), Number: proto.Int32(1), Label: &rep, Type: &tMessage,
				TypeName: proto.String(".maptest.WithMap.TagsEntry"),
			},
		},
		NestedType: []*descriptorpb.DescriptorProto{entry},
	}
	fdp := buildFile(t, "maptest", msg)
	fd, err := protodesc.NewFile(fdp, nil)
	require.NoError(t, err)

	pool, err := FromFileDescriptor(fd)
	require.NoError(t, err)

	m := pool.Find("maptest.WithMap")
	require.NotNil(t, m)
	f := m.Fields["tags"]
	assert.True(t, f.IsMap())
	assert.Equal(t, TypeString, f.Key)
	assert.Equal(t, TypeInt32, f.Value)

	assert.Nil(t, pool.Find("maptest.WithMap.TagsEntry"), "map entry synthetic type should not be separately registered")
}

func TestResolveValueMessage(t *testing.T) {
	opt := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	tMessage := descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	child := &descriptorpb.DescriptorProto{
		Name: proto.String("Child"),
		Field: []*descriptorpb.FieldDescriptorProto{
			fieldProto("x", 1, opt, descriptorpb.FieldDescriptorProto_TYPE_INT32),
		},
	}
	parent := &descriptorpb.DescriptorProto{
		Name: proto.String("Parent"),
		Field: []*descriptorpb.FieldDescriptorProto{
			{Name: proto.String("child"), Number: proto.Int32(1), Label: &opt, Type: &tMessage, TypeName: proto.String(".resolvetest.Child")},
		},
	}
	fdp := buildFile(t, "resolvetest", child, parent)
	fd, err := protodesc.NewFile(fdp, nil)
	require.NoError(t, err)

	pool, err := FromFileDescriptor(fd)
	require.NoError(t, err)

	p := pool.Find("resolvetest.Parent")
	require.NotNil(t, p)
	resolved := pool.ResolveValueMessage(p.Fields["child"])
	require.NotNil(t, resolved)
	assert.Equal(t, "resolvetest.Child", resolved.FullName)
}

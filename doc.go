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

// Package protocache implements a zero-copy, random-access binary encoding
// for data described by Protocol Buffers IDL.
//
// Every scalar, string, array, map, and submessage in an encoded buffer is
// addressable through word arithmetic over a 32-bit-word-aligned []uint32,
// so a reader never decodes a field it does not touch and never allocates
// to traverse the tree. The buffer is the entire contract between a writer
// and a reader: no schema is required to walk one, though a schema is
// required to know what the field ids mean.
//
// A Data value is always little-endian and always read-only; every view
// type (Message, Array, Map, String, Field) borrows from it and is a plain,
// trivially copyable value safe to share across goroutines.
package protocache

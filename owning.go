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

// OwningMessage is the second writer entry point (§4.4b): a view over an
// existing Message plus a sparse set of edits. Fields nobody touched are
// spliced back in verbatim, as the exact words Detect found for them,
// instead of being walked and rebuilt field by field; only the fields an
// edit actually touched get re-serialized. This is the shape a generated
// accessor layer wants: read an object, flip a handful of fields, write a
// new buffer that shares structure with the old one wherever possible.
//
// Splicing an unchanged field needs to know its shape (scalar, string,
// message, array, map, and for arrays/maps of references, their element
// shape too) to find its extent, which the Message header alone does not
// record (see DetectMessageBytes). Callers register one Detect function
// per field id they care about; a field with no registered detector and
// no edit is treated as permanently absent in the rebuilt buffer.
type OwningMessage struct {
	orig   Message
	count  uint32
	detect map[uint32]func(Field) Data
	dirty  map[uint32]bool
	edits  map[uint32]Data
}

// NewOwningMessage wraps an existing Message object for editing. Pass a nil
// Data to start from an empty message (every field absent until set).
func NewOwningMessage(orig Data) *OwningMessage {
	return &OwningMessage{
		orig:   NewMessage(orig),
		detect: make(map[uint32]func(Field) Data),
		dirty:  make(map[uint32]bool),
		edits:  make(map[uint32]Data),
	}
}

// Detect registers how to find field id's verbatim extent when it is
// unchanged, and extends the rebuilt message's field count to include id.
// detect is one of DetectValue, DetectString, DetectMessage, DetectArray,
// DetectMap, or a caller-built closure composing DetectArrayOfRefs /
// DetectMapOfRefs for a field of references.
func (o *OwningMessage) Detect(id uint32, detect func(Field) Data) *OwningMessage {
	o.detect[id] = detect
	if id+1 > o.count {
		o.count = id + 1
	}
	return o
}

// Set records a pre-serialized replacement blob for field id, overriding
// whatever the original buffer held there. Passing a nil/empty blob clears
// the field (absent in the rebuilt buffer).
func (o *OwningMessage) Set(id uint32, blob Data) *OwningMessage {
	o.dirty[id] = true
	o.edits[id] = blob
	if id+1 > o.count {
		o.count = id + 1
	}
	return o
}

// Clear marks field id as explicitly absent in the rebuilt buffer,
// regardless of what the original held.
func (o *OwningMessage) Clear(id uint32) *OwningMessage { return o.Set(id, nil) }

// IsDirty reports whether id has a pending Set/Clear not yet reflected in
// the original view.
func (o *OwningMessage) IsDirty(id uint32) bool { return o.dirty[id] }

// Original returns the original (pre-edit) Field at id, for callers that
// want to read-modify-write (e.g. decode a submessage, change one of its
// fields, re-encode, then Set the result).
func (o *OwningMessage) Original(id uint32) Field {
	if o.orig.IsAbsent() {
		return Field{}
	}
	return o.orig.GetField(id)
}

// Build assembles the edited message into a fresh Data buffer: each field
// id in [0, count) is either the edited blob (if dirty), the verbatim
// extent Detect found in the original (if a detector is registered and the
// original has the field), or absent.
func (o *OwningMessage) Build() (Data, error) {
	parts := make([]Data, o.count)
	for id := uint32(0); id < o.count; id++ {
		if o.dirty[id] {
			parts[id] = o.edits[id]
			continue
		}
		detect, ok := o.detect[id]
		if !ok || o.orig.IsAbsent() || !o.orig.HasField(id) {
			continue
		}
		field := o.orig.GetField(id)
		parts[id] = detect(field)
	}
	return SerializeMessage(parts)
}

// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ipc

import (
	"encoding/binary"
	"unsafe"
)

// MessageSize is the wire size of a Message, in bytes: source:i32 |
// m_type:u32 | payload[56].
const MessageSize = 64

// PayloadSize is the size, in bytes, of a Message's payload.
const PayloadSize = MessageSize - 4 - 4

// NotifyMessage is the m_type synthesized for NOTIFY deliveries.
const NotifyMessage uint32 = 0x1000

// Message is the fixed 64-byte record exchanged between MINIX processes.
// Byte layout is part of the external interface and must not change.
type Message struct {
	Source  Endpoint
	MType   uint32
	Payload [14]uint32
}

// DecodeMessage decodes a Message from its 64-byte wire form. It panics if b
// is shorter than MessageSize, since callers are expected to have already
// validated the buffer length (the guest memory reader always returns exactly
// MessageSize bytes or an error).
func DecodeMessage(b []byte) (m Message) {
	if len(b) < MessageSize {
		panic("ipc: short buffer for Message")
	}

	m.Source = Endpoint(int32(binary.LittleEndian.Uint32(b[0:4])))
	m.MType = binary.LittleEndian.Uint32(b[4:8])
	for i := 0; i < 14; i++ {
		off := 8 + i*4
		m.Payload[i] = binary.LittleEndian.Uint32(b[off : off+4])
	}

	return
}

// Encode serializes m to its 64-byte wire form.
func (m Message) Encode() (b [MessageSize]byte) {
	binary.LittleEndian.PutUint32(b[0:4], uint32(int32(m.Source)))
	binary.LittleEndian.PutUint32(b[4:8], m.MType)
	for i, w := range m.Payload {
		off := 8 + i*4
		binary.LittleEndian.PutUint32(b[off:off+4], w)
	}

	return
}

// NewNotify synthesizes the message delivered in place of a real send when a
// queued notification is consumed by RECEIVE.
func NewNotify(source Endpoint) Message {
	return Message{Source: source, MType: NotifyMessage}
}

////////////////////////////////////////////////////////////////////////
// Typed payload views
////////////////////////////////////////////////////////////////////////

// SysGetInfo is the request payload for the GETINFO kernel call.
type SysGetInfo struct {
	Request  int32
	Endpt    Endpoint
	ValPtr   uint32
	ValLen   int32
	ValPtr2  uint32
	ValLen2E int32
	_        [32]byte // padding, pads struct out to PayloadSize
}

// SysWhoAmI is the response payload for the GETINFO/GET_WHOAMI request.
type SysWhoAmI struct {
	Endpt     Endpoint
	PrivFlags int32
	InitFlags int32
	Name      [44]byte
}

// SysDiagCtl is the request payload for the DIAGCTL kernel call.
type SysDiagCtl struct {
	Code   int32
	BufPtr uint32
	BufLen int32
	_      [44]byte
}

// Compile-time size assertions: every typed payload view must occupy exactly
// PayloadSize bytes. An array with a negative constant length fails to
// compile, so a mismatch in either direction is caught at build time rather
// than surfacing as a wire-format bug.
var _ [unsafe.Sizeof(SysGetInfo{}) - PayloadSize]byte
var _ [PayloadSize - unsafe.Sizeof(SysGetInfo{})]byte

var _ [unsafe.Sizeof(SysWhoAmI{}) - PayloadSize]byte
var _ [PayloadSize - unsafe.Sizeof(SysWhoAmI{})]byte

var _ [unsafe.Sizeof(SysDiagCtl{}) - PayloadSize]byte
var _ [PayloadSize - unsafe.Sizeof(SysDiagCtl{})]byte

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

// AsynMsg flag bits. EMPTY is the zero value: a table
// slot the sender has not yet populated.
const (
	AsynEmpty     uint32 = 0x0
	AsynValid     uint32 = 0x1
	AsynDone      uint32 = 0x2
	AsynNotify    uint32 = 0x4
	AsynNoReply   uint32 = 0x8
	AsynNotifyErr uint32 = 0x10
)

// AsynValidMask is the union of every recognized flag bit; any bit outside
// this mask on a nonempty entry is invalid.
const AsynValidMask = AsynValid | AsynDone | AsynNotify | AsynNoReply | AsynNotifyErr

// AsynMsgSize is the wire size of an AsynMsg: flags(4) + dst(4) + result(4) +
// Message(64) = 76 bytes.
const AsynMsgSize = 4 + 4 + 4 + MessageSize

// AsynMsg is one entry of a sender's in-guest asynchronous message table,
// populated by the guest before SENDA and written back by try_one/try_async
// as entries are resolved.
type AsynMsg struct {
	Flags  uint32
	Dst    Endpoint
	Result int32
	Msg    Message
}

var _ [unsafe.Sizeof(AsynMsg{}) - AsynMsgSize]byte
var _ [AsynMsgSize - unsafe.Sizeof(AsynMsg{})]byte

// DecodeAsynMsg decodes one AsynMsg from its 76-byte wire form.
func DecodeAsynMsg(b []byte) (a AsynMsg) {
	if len(b) < AsynMsgSize {
		panic("ipc: short buffer for AsynMsg")
	}

	a.Flags = binary.LittleEndian.Uint32(b[0:4])
	a.Dst = Endpoint(int32(binary.LittleEndian.Uint32(b[4:8])))
	a.Result = int32(binary.LittleEndian.Uint32(b[8:12]))
	a.Msg = DecodeMessage(b[12 : 12+MessageSize])

	return
}

// Encode serializes a to its 76-byte wire form.
func (a AsynMsg) Encode() (b [AsynMsgSize]byte) {
	binary.LittleEndian.PutUint32(b[0:4], a.Flags)
	binary.LittleEndian.PutUint32(b[4:8], uint32(int32(a.Dst)))
	binary.LittleEndian.PutUint32(b[8:12], uint32(a.Result))
	msg := a.Msg.Encode()
	copy(b[12:12+MessageSize], msg[:])

	return
}

// IsValid reports whether the entry has been populated by the sender and not
// yet consumed: VALID set, DONE clear.
func (a AsynMsg) IsValid() bool {
	return a.Flags&AsynValid != 0 && a.Flags&AsynDone == 0
}

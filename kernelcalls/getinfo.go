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

package kernelcalls

import (
	"encoding/binary"
	"log"

	"github.com/jacobsa/minixsup/ipc"
)

// GETINFO sub-request numbers. Only GetWhoAmI is implemented; the rest
// require kernel image/privilege tables this package doesn't have access
// to, and are logged and rejected instead.
const (
	getKInfo  = 0
	getWhoAmI = 19
)

// GetInfoHandler implements the GETINFO kernel call. It currently answers
// only GET_WHOAMI, the sub-request that asks the kernel to fill in the
// caller's own endpoint, privilege flags, and name; every other request
// number is logged as unimplemented and fails with EINVAL.
func GetInfoHandler(caller ipc.Endpoint, msg *ipc.Message, procs ProcessTable) int32 {
	req := decodeSysGetInfo(*msg)

	switch req.Request {
	case getWhoAmI:
		name, privFlags, ok := procs.Lookup(caller)
		if !ok {
			return -6 // ESRCH: caller isn't in the table it's asking about
		}

		resp := ipc.SysWhoAmI{Endpt: caller, PrivFlags: int32(privFlags)}
		copy(resp.Name[:], name)
		encodeSysWhoAmIInto(msg, resp)
		return 0 // OK

	default:
		log.Printf("kernelcalls: GETINFO request %d from %v unimplemented", req.Request, caller)
		return -1 // EINVAL
	}
}

func decodeSysGetInfo(msg ipc.Message) (r ipc.SysGetInfo) {
	var buf [ipc.PayloadSize]byte
	for i, w := range msg.Payload {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], w)
	}

	r.Request = int32(binary.LittleEndian.Uint32(buf[0:4]))
	r.Endpt = ipc.Endpoint(int32(binary.LittleEndian.Uint32(buf[4:8])))
	r.ValPtr = binary.LittleEndian.Uint32(buf[8:12])
	r.ValLen = int32(binary.LittleEndian.Uint32(buf[12:16]))
	r.ValPtr2 = binary.LittleEndian.Uint32(buf[16:20])
	r.ValLen2E = int32(binary.LittleEndian.Uint32(buf[20:24]))

	return
}

// encodeSysWhoAmIInto overwrites msg's payload in place with resp, so the
// handler can hand a mutated Message back up for the caller to write into
// guest memory.
func encodeSysWhoAmIInto(msg *ipc.Message, resp ipc.SysWhoAmI) {
	var buf [ipc.PayloadSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(resp.Endpt)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(resp.PrivFlags))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(resp.InitFlags))
	copy(buf[12:12+len(resp.Name)], resp.Name[:])

	for i := 0; i < 14; i++ {
		msg.Payload[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
}

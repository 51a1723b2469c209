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

// DIAGCTL sub-codes. Only codeDiag (print a diagnostic string from the
// caller's address space) is implemented; the rest aren't documented well
// enough upstream to implement confidently.
const (
	codeDiag       = 1
	codeStackTrace = 2
	codeRegister   = 3
	codeUnregister = 4
)

// DiagCtlHandler implements the DIAGCTL kernel call's diagnostic-print
// sub-code: it reads a string out of the caller's address space and logs
// it. Every other sub-code fails with EINVAL.
func DiagCtlHandler(caller ipc.Endpoint, msg *ipc.Message, procs ProcessTable) int32 {
	req := decodeSysDiagCtl(*msg)

	switch req.Code {
	case codeDiag:
		buf, err := procs.ReadGuestBuf(caller, uint64(req.BufPtr), int(req.BufLen))
		if err != nil {
			return -6 // ESRCH
		}
		log.Printf("kernelcalls: diagnostic from %v: %s", caller, buf)
		return 0 // OK

	case codeStackTrace, codeRegister, codeUnregister:
		log.Printf("kernelcalls: DIAGCTL code %d from %v unimplemented", req.Code, caller)
		return -1 // EINVAL

	default:
		log.Printf("kernelcalls: DIAGCTL invalid code %d from %v", req.Code, caller)
		return -1 // EINVAL
	}
}

func decodeSysDiagCtl(msg ipc.Message) (r ipc.SysDiagCtl) {
	var buf [ipc.PayloadSize]byte
	for i, w := range msg.Payload {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], w)
	}

	r.Code = int32(binary.LittleEndian.Uint32(buf[0:4]))
	r.BufPtr = binary.LittleEndian.Uint32(buf[4:8])
	r.BufLen = int32(binary.LittleEndian.Uint32(buf[8:12]))

	return
}

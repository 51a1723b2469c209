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

// Package ipc defines the wire-level types shared between the supervisor and
// the guest processes it traces: endpoints, the fixed 64-byte message record,
// the in-guest async message table entry, and per-process IPC state.
package ipc

import "fmt"

// Endpoint identifies a process or a special sink. It is a signed 32-bit
// integer on the wire, carried in Go as int32 so negative task endpoints
// round-trip exactly.
type Endpoint int32

// Special endpoints. ANY/NONE/SELF are sentinels outside the negative
// task-id range and outside [0, EndpointSlotTop) so they can never
// collide with a real process or task endpoint.
const (
	ANY  Endpoint = 0x7ace // wildcard receiver, valid only for RECEIVE
	NONE Endpoint = 0x6ace
	SELF Endpoint = 0x5ace

	ASYNCM   Endpoint = -5
	IDLE     Endpoint = -4
	CLOCK    Endpoint = -3
	SYSTEM   Endpoint = -2
	KERNEL   Endpoint = -1
	HARDWARE Endpoint = -1
)

// Boot-time system process endpoints.
const (
	PM Endpoint = iota
	VFS
	RS
	MEM
	SCHED
	TTY
	DS
	MIB
	VM
	PFS
	MFS
	INIT
)

// EndpointSlotTop bounds the user-endpoint range: user endpoints occupy
// [0, EndpointSlotTop-3).
const EndpointSlotTop = 256

func (e Endpoint) String() string {
	switch e {
	case ANY:
		return "ANY"
	case NONE:
		return "NONE"
	case ASYNCM:
		return "ASYNCM"
	case IDLE:
		return "IDLE"
	case CLOCK:
		return "CLOCK"
	case SYSTEM:
		return "SYSTEM"
	case KERNEL:
		return "KERNEL/HARDWARE"
	}
	return fmt.Sprintf("%d", int32(e))
}

// Privilege flag bits for a process slot's s_flags.
const (
	PrivPreemptible = 0x002
	PrivBillable    = 0x004
	PrivDynPrivID   = 0x008
	PrivSysProc     = 0x010
	PrivCheckIOPort = 0x020
	PrivCheckIRQ    = 0x040
	PrivCheckMem    = 0x080
	PrivRootSysProc = 0x100
	PrivVMSysProc   = 0x200
	PrivLUSysProc   = 0x400
	PrivRstSysProc  = 0x800
)

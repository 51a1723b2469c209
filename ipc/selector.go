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

import "fmt"

// Selector is the IPC call number a guest places in rcx on an INT 0x21
// trap.
type Selector int32

const (
	SEND          Selector = 1
	RECEIVE       Selector = 2
	SENDREC       Selector = 3
	NOTIFY        Selector = 4
	SENDNB        Selector = 5
	MinixKerninfo Selector = 6
	SENDA         Selector = 16
)

func (s Selector) String() string {
	switch s {
	case SEND:
		return "SEND"
	case RECEIVE:
		return "RECEIVE"
	case SENDREC:
		return "SENDREC"
	case NOTIFY:
		return "NOTIFY"
	case SENDNB:
		return "SENDNB"
	case MinixKerninfo:
		return "MINIX_KERNINFO"
	case SENDA:
		return "SENDA"
	default:
		return fmt.Sprintf("Selector(%d)", int32(s))
	}
}

// Valid reports whether s is one of the seven recognized IPC selectors.
func (s Selector) Valid() bool {
	switch s {
	case SEND, RECEIVE, SENDREC, NOTIFY, SENDNB, MinixKerninfo, SENDA:
		return true
	default:
		return false
	}
}

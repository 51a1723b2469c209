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

// Package minixsup hosts a MINIX-like microkernel's IPC core on top of a
// traced Linux process.
//
// The primary elements of interest are:
//
//  *  Supervisor, which owns a process table and guest memory access and
//     dispatches trap events (HandleTrap) into kernel-call or IPC handling.
//
//  *  The ipc package, defining the wire-level types shared with the guest:
//     Endpoint, Message, AsynMsg.
//
//  *  The kernelcalls package, holding the pluggable numbered kernel-call
//     handlers invoked on an `int 0x20` trap.
//
// Each guest process is a real, separately scheduled Linux process; the
// supervisor intercepts its `int 0x20`/`int 0x21` traps and emulates the
// microkernel's message-passing primitives by reading and writing the
// guest's registers and address space via ptrace.
package minixsup

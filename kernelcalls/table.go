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

// Package kernelcalls holds the numbered kernel-call handler table invoked
// by the supervisor's dispatcher. Each handler is a self-contained plug-in:
// it receives the caller's endpoint, the request message (with Source
// already overwritten to the caller), and the process table, and returns an
// integer result to be written back into the request's m_type field.
package kernelcalls

import "github.com/jacobsa/minixsup/ipc"

// Base is the first kernel-call number; call numbers occupy
// [Base, Base+NumCalls).
const Base = 0x600

// NumCalls bounds the dispatch table; a call number >= Base+NumCalls is out
// of range and resolves to the unimplemented stub.
const NumCalls = 64

// Call numbers, as offsets from Base.
const (
	GetInfo = Base + 14
	DiagCtl = Base + 50
	Exit    = Base + 60
)

// ErrUnimplemented is the result returned by a call number with no
// registered handler, or one that is out of range.
const ErrUnimplemented int32 = -6

// Handler processes one kernel-call request. msg is mutable: a handler that
// produces a reply payload (GETINFO's sub-requests, for instance) writes it
// directly into msg.Payload, and the caller writes the mutated message back
// into the guest's buffer. Returning a non-zero value means failure;
// handlers never panic on malformed requests, they encode the failure in
// the return value instead.
type Handler func(caller ipc.Endpoint, msg *ipc.Message, procs ProcessTable) int32

// ProcessTable is the minimal view a handler needs of the process table, so
// this package doesn't import internal/proctable and create a dependency
// cycle back into the root package's wiring.
type ProcessTable interface {
	// Lookup returns (name, privFlags, ok) for endpoint.
	Lookup(endpoint ipc.Endpoint) (name string, privFlags uint16, ok bool)

	// ReadGuestBuf reads n bytes at addr from endpoint's address space.
	ReadGuestBuf(endpoint ipc.Endpoint, addr uint64, n int) ([]byte, error)
}

func unimplemented(ipc.Endpoint, *ipc.Message, ProcessTable) int32 {
	return ErrUnimplemented
}

// Table is a fixed-size dispatch table indexed by call number minus Base.
// Unregistered slots resolve to a stub that returns ErrUnimplemented.
type Table struct {
	handlers [NumCalls]Handler
}

// NewTable returns a Table with the built-in handlers registered
// (GETINFO, DIAGCTL, EXIT) and every other slot pointed at the
// unimplemented stub.
func NewTable() *Table {
	t := &Table{}
	for i := range t.handlers {
		t.handlers[i] = unimplemented
	}
	t.Register(GetInfo, GetInfoHandler)
	t.Register(DiagCtl, DiagCtlHandler)
	t.Register(Exit, ExitHandler)
	return t
}

// Register installs handler at call number num, overwriting any existing
// registration. It panics if num is out of [Base, Base+NumCalls).
func (t *Table) Register(num int32, handler Handler) {
	t.handlers[num-Base] = handler
}

// Dispatch invokes the handler registered for msg.MType, or the
// unimplemented stub if the call number is out of range. msg is passed by
// pointer so a handler's reply payload reaches the caller.
func (t *Table) Dispatch(caller ipc.Endpoint, msg *ipc.Message, procs ProcessTable) int32 {
	num := int32(msg.MType)
	if num < Base || num >= Base+NumCalls {
		return ErrUnimplemented
	}
	return t.handlers[num-Base](caller, msg, procs)
}

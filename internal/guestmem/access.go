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

// Package guestmem isolates the one piece of this repository that talks
// directly to a traced process: register and memory access via ptrace. The
// rest of the supervisor sees only the GuestMemory interface, so the IPC
// engine can be tested against an in-process fake.
package guestmem

import "golang.org/x/sys/unix"

// Instruction classifies the byte at a guest's current instruction pointer,
// to the extent the trap dispatcher cares.
type Instruction struct {
	// IsInt is true if the guest is stopped at an `int imm8` instruction.
	IsInt bool

	// Imm8 holds the interrupt vector when IsInt is true (0x20 for a kernel
	// call, 0x21 for IPC).
	Imm8 byte
}

// GuestMemory is the set of primitives the supervisor needs from a traced
// process: its registers, its flat address space, and the ability to resume
// or signal it. A real implementation (Ptrace) backs this with Linux
// ptrace(2); tests use an in-process Fake.
type GuestMemory interface {
	// GetRegs returns the guest's current general-purpose registers.
	GetRegs() (unix.PtraceRegs, error)

	// SetRegs installs new general-purpose registers in the guest.
	SetRegs(regs unix.PtraceRegs) error

	// ReadWord reads one 8-byte word at addr in the guest's address space.
	ReadWord(addr uint64) (uint64, error)

	// WriteWord writes one 8-byte word at addr in the guest's address space.
	WriteWord(addr uint64, word uint64) error

	// ReadBuf reads len(buf) bytes starting at addr, rounding up internally
	// to whole words.
	ReadBuf(addr uint64, buf []byte) error

	// WriteBuf writes buf starting at addr, rounding up internally to whole
	// words (the trailing partial word is read-modify-written).
	WriteBuf(addr uint64, buf []byte) error

	// ReadInstruction classifies the instruction at the guest's current
	// instruction pointer.
	ReadInstruction() (Instruction, error)

	// Continue resumes the guest, optionally delivering sig (0 for none).
	Continue(sig int) error

	// Stop sends sig to the guest without resuming it from its current
	// ptrace-stop (used to simulate a kernel-delivered signal).
	Stop(sig int) error

	// Pid returns the guest's OS process id, for logging.
	Pid() int
}

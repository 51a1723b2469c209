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

package guestmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Fake is an in-process GuestMemory backed by a plain byte slice, so the IPC
// engine's tests don't need a real traced process. It has no concept of
// actually running code: Continue and Stop just record that they were
// called.
type Fake struct {
	Mem  []byte
	Regs unix.PtraceRegs

	// PidVal is returned by Pid(); tests give each Fake a distinct value so
	// a process table built out of several Fakes doesn't collide in its
	// pid index. Defaults to -1, matching a process with no real OS pid.
	PidVal int

	ContinueCalls int
	LastSignal    int
	Stopped       bool

	// NextInstruction is returned by ReadInstruction; tests set it directly
	// rather than encoding an `int imm8` into Mem at Regs.Rip.
	NextInstruction Instruction
}

// NewFake returns a Fake with a zeroed memory region of the given size.
func NewFake(memSize int) *Fake {
	return &Fake{Mem: make([]byte, memSize), PidVal: -1}
}

func (f *Fake) Pid() int { return f.PidVal }

func (f *Fake) GetRegs() (unix.PtraceRegs, error) { return f.Regs, nil }

func (f *Fake) SetRegs(regs unix.PtraceRegs) error {
	f.Regs = regs
	return nil
}

func (f *Fake) checkBounds(addr uint64, n int) error {
	if addr > uint64(len(f.Mem)) || int(addr)+n > len(f.Mem) {
		return fmt.Errorf("guestmem: fake access out of bounds: addr %#x len %d (mem size %d)", addr, n, len(f.Mem))
	}
	return nil
}

func (f *Fake) ReadWord(addr uint64) (uint64, error) {
	if err := f.checkBounds(addr, 8); err != nil {
		return 0, err
	}
	var word uint64
	for i := 0; i < 8; i++ {
		word |= uint64(f.Mem[int(addr)+i]) << (8 * i)
	}
	return word, nil
}

func (f *Fake) WriteWord(addr uint64, word uint64) error {
	if err := f.checkBounds(addr, 8); err != nil {
		return err
	}
	for i := 0; i < 8; i++ {
		f.Mem[int(addr)+i] = byte(word >> (8 * i))
	}
	return nil
}

func (f *Fake) ReadBuf(addr uint64, buf []byte) error {
	if err := f.checkBounds(addr, len(buf)); err != nil {
		return err
	}
	copy(buf, f.Mem[addr:])
	return nil
}

func (f *Fake) WriteBuf(addr uint64, buf []byte) error {
	if err := f.checkBounds(addr, len(buf)); err != nil {
		return err
	}
	copy(f.Mem[addr:], buf)
	return nil
}

func (f *Fake) ReadInstruction() (Instruction, error) {
	return f.NextInstruction, nil
}

func (f *Fake) Continue(sig int) error {
	f.ContinueCalls++
	f.LastSignal = sig
	f.Stopped = false
	return nil
}

func (f *Fake) Stop(sig int) error {
	f.LastSignal = sig
	f.Stopped = true
	return nil
}

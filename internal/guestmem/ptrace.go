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

//go:build linux

package guestmem

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// Ptrace is a GuestMemory backed by Linux ptrace(2) against a real traced
// process. The tracee must already be stopped (e.g. freshly PTRACE_ATTACHed
// or PTRACE_TRACEME'd and just execve'd) before any method is called.
type Ptrace struct {
	pid int
}

// NewPtrace wraps an already-attached, stopped tracee with the given pid.
// Attaching and waiting for the initial stop is the caller's responsibility
// (spawning guests is out of scope for this package).
func NewPtrace(pid int) *Ptrace {
	return &Ptrace{pid: pid}
}

// Attach issues PTRACE_ATTACH against pid, the raw-syscall idiom used
// because golang.org/x/sys/unix does not wrap PTRACE_ATTACH with a typed
// helper. Callers must waitpid(pid) for the resulting stop before using the
// returned Ptrace.
func Attach(pid int) (*Ptrace, error) {
	if _, _, errno := unix.RawSyscall6(unix.SYS_PTRACE, unix.PTRACE_ATTACH, uintptr(pid), 0, 0, 0, 0); errno != 0 {
		return nil, fmt.Errorf("guestmem: PTRACE_ATTACH pid %d: %w", pid, errno)
	}
	return &Ptrace{pid: pid}, nil
}

// Detach issues PTRACE_DETACH, letting the guest run free.
func (p *Ptrace) Detach() error {
	if _, _, errno := unix.RawSyscall6(unix.SYS_PTRACE, unix.PTRACE_DETACH, uintptr(p.pid), 0, 0, 0, 0); errno != 0 {
		return fmt.Errorf("guestmem: PTRACE_DETACH pid %d: %w", p.pid, errno)
	}
	return nil
}

func (p *Ptrace) Pid() int { return p.pid }

func (p *Ptrace) GetRegs() (regs unix.PtraceRegs, err error) {
	if err = unix.PtraceGetRegs(p.pid, &regs); err != nil {
		err = fmt.Errorf("guestmem: PTRACE_GETREGS pid %d: %w", p.pid, err)
	}
	return
}

func (p *Ptrace) SetRegs(regs unix.PtraceRegs) error {
	if err := unix.PtraceSetRegs(p.pid, &regs); err != nil {
		return fmt.Errorf("guestmem: PTRACE_SETREGS pid %d: %w", p.pid, err)
	}
	return nil
}

func (p *Ptrace) ReadWord(addr uint64) (uint64, error) {
	var buf [8]byte
	if _, err := unix.PtracePeekData(p.pid, uintptr(addr), buf[:]); err != nil {
		return 0, fmt.Errorf("guestmem: PEEKDATA pid %d addr %#x: %w", p.pid, addr, err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (p *Ptrace) WriteWord(addr uint64, word uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	if _, err := unix.PtracePokeData(p.pid, uintptr(addr), buf[:]); err != nil {
		return fmt.Errorf("guestmem: POKEDATA pid %d addr %#x: %w", p.pid, addr, err)
	}
	return nil
}

// ReadBuf reads len(buf) bytes starting at addr, one word at a time, and
// trims the final partial word down to size.
func (p *Ptrace) ReadBuf(addr uint64, buf []byte) error {
	for off := 0; off < len(buf); off += 8 {
		word, err := p.ReadWord(addr + uint64(off))
		if err != nil {
			return err
		}
		var wbuf [8]byte
		binary.LittleEndian.PutUint64(wbuf[:], word)
		copy(buf[off:], wbuf[:])
	}
	return nil
}

// WriteBuf writes buf starting at addr. When len(buf) isn't a multiple of 8,
// the final word is read-modify-written so bytes past the end of buf are
// left untouched in guest memory.
func (p *Ptrace) WriteBuf(addr uint64, buf []byte) error {
	full := len(buf) - len(buf)%8
	for off := 0; off < full; off += 8 {
		if err := p.WriteWord(addr+uint64(off), binary.LittleEndian.Uint64(buf[off:off+8])); err != nil {
			return err
		}
	}

	if tail := len(buf) - full; tail > 0 {
		word, err := p.ReadWord(addr + uint64(full))
		if err != nil {
			return err
		}
		var wbuf [8]byte
		binary.LittleEndian.PutUint64(wbuf[:], word)
		copy(wbuf[:tail], buf[full:])
		if err := p.WriteWord(addr+uint64(full), binary.LittleEndian.Uint64(wbuf[:])); err != nil {
			return err
		}
	}

	return nil
}

func (p *Ptrace) ReadInstruction() (Instruction, error) {
	regs, err := p.GetRegs()
	if err != nil {
		return Instruction{}, err
	}

	word, err := p.ReadWord(regs.Rip)
	if err != nil {
		return Instruction{}, err
	}

	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], word)
	if b[0] == 0xCD { // x86 `int imm8`
		return Instruction{IsInt: true, Imm8: b[1]}, nil
	}
	return Instruction{}, nil
}

func (p *Ptrace) Continue(sig int) error {
	if err := unix.PtraceCont(p.pid, sig); err != nil {
		return fmt.Errorf("guestmem: PTRACE_CONT pid %d: %w", p.pid, err)
	}
	return nil
}

// Stop delivers sig to the guest via tgkill without resuming it from its
// ptrace-stop, the raw-syscall idiom for simulating a kernel-delivered
// signal while the tracee remains stopped for inspection.
func (p *Ptrace) Stop(sig int) error {
	if _, _, errno := unix.RawSyscall(unix.SYS_TGKILL, uintptr(p.pid), uintptr(p.pid), uintptr(sig)); errno != 0 {
		return fmt.Errorf("guestmem: tgkill pid %d sig %d: %w", p.pid, sig, errno)
	}
	return nil
}

// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package minixsup

import (
	"fmt"

	"github.com/jacobsa/minixsup/internal/proctable"
	"github.com/jacobsa/minixsup/ipc"
	"golang.org/x/sys/unix"
)

// Trap vectors the guest uses for `int imm8`.
const (
	trapKernelCall byte = 0x20
	trapIPC        byte = 0x21
)

// dispatchTrap is the C5 trap dispatcher. caller's host process is stopped
// at a trap; this reads the faulting instruction, classifies it, advances
// the guest's rip past the two-byte `int imm8` encoding, and routes to
// kernel-call handling, IPC handling, or simulated-fault delivery.
func (s *Supervisor) dispatchTrap(caller ipc.Endpoint) error {
	slot := s.procs.Get(caller)
	if slot == nil {
		return fmt.Errorf("minixsup: dispatchTrap: no process table entry for %v", caller)
	}

	insn, err := slot.Mem.ReadInstruction()
	if err != nil {
		return &PtraceError{Endpoint: caller, Op: "read instruction", Err: err}
	}

	if !insn.IsInt {
		return s.deliverFault(caller, slot)
	}

	regs, err := slot.Mem.GetRegs()
	if err != nil {
		return &PtraceError{Endpoint: caller, Op: "get regs", Err: err}
	}
	regs.Rip += 2
	if err := slot.Mem.SetRegs(regs); err != nil {
		return &PtraceError{Endpoint: caller, Op: "set regs", Err: err}
	}

	switch insn.Imm8 {
	case trapKernelCall:
		return s.handleKernelCallTrap(caller, slot, regs)
	case trapIPC:
		return s.handleIPCTrap(caller, slot, regs)
	default:
		return s.deliverFault(caller, slot)
	}
}

// deliverFault reports an unrecognized trap instruction to the guest as a
// simulated segmentation fault. Repeated faults are a controller policy
// (killing the guest), not this package's concern.
func (s *Supervisor) deliverFault(caller ipc.Endpoint, slot *proctable.Slot) error {
	s.debugf("%v: unrecognized trap instruction, delivering SIGSEGV", caller)
	if err := slot.Mem.Stop(int(unix.SIGSEGV)); err != nil {
		return &PtraceError{Endpoint: caller, Op: "deliver SIGSEGV", Err: err}
	}
	return nil
}

// handleIPCTrap decodes an INT 0x21 trap's selector/peer/buffer out of
// rcx/rax/rbx and routes it to the synchronous engine (C6), the
// asynchronous engine (C7, SENDA), or the MINIX_KERNINFO fast path.
//
// SENDA's register convention differs from the other selectors: rax is the
// guest address of the async table rather than a destination endpoint, and
// rbx is the entry count rather than a message buffer pointer. This is the
// one place that distinction is made; doSenda takes a table address and a
// count directly.
func (s *Supervisor) handleIPCTrap(caller ipc.Endpoint, slot *proctable.Slot, regs unix.PtraceRegs) error {
	sel := ipc.Selector(int32(regs.Rcx))

	if !sel.Valid() {
		return s.finishIPC(caller, slot, EBADCALL, nil)
	}

	switch sel {
	case ipc.MinixKerninfo:
		return s.handleMinixKerninfo(caller, slot)

	case ipc.SENDA:
		tabAddr := regs.Rax
		size := uint32(regs.Rbx)
		res, err := s.doSenda(caller, tabAddr, size)
		return s.finishIPC(caller, slot, res, err)

	default:
		peer := ipc.Endpoint(int32(regs.Rax))
		bufAddr := regs.Rbx

		if peer == ipc.ANY && sel != ipc.RECEIVE {
			return s.finishIPC(caller, slot, EINVAL, nil)
		}

		res, err := s.doIPC(caller, sel, peer, bufAddr)
		return s.finishIPC(caller, slot, res, err)
	}
}

// finishIPC completes one IPC trap. If err is errLeftBlocked, the caller
// was deliberately left stopped as part of the rendezvous protocol (a
// blocking SEND/RECEIVE with no immediate partner) and nothing more is
// done. Any other non-nil err is a host-visible failure, propagated
// unresumed. Otherwise result is written into the caller's rax and the
// caller is resumed.
func (s *Supervisor) finishIPC(caller ipc.Endpoint, slot *proctable.Slot, result int32, err error) error {
	if err != nil {
		if err == errLeftBlocked {
			return nil
		}
		return err
	}

	regs, err := slot.Mem.GetRegs()
	if err != nil {
		return &PtraceError{Endpoint: caller, Op: "get regs", Err: err}
	}
	regs.Rax = uint64(int64(result))
	if err := slot.Mem.SetRegs(regs); err != nil {
		return &PtraceError{Endpoint: caller, Op: "set regs", Err: err}
	}

	slot.State = ipc.RunningState()
	if err := slot.Mem.Continue(0); err != nil {
		return &PtraceError{Endpoint: caller, Op: "continue", Err: err}
	}

	return nil
}

// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package minixsup

import (
	"golang.org/x/sys/unix"

	"github.com/jacobsa/minixsup/internal/proctable"
	"github.com/jacobsa/minixsup/ipc"
)

// handleKernelCallTrap implements C8's read-dispatch-writeback cycle for an
// INT 0x20 trap: the request message lives at the guest address in rax: its
// Source field is overwritten with the caller endpoint before dispatch, the
// registered handler (or the unimplemented stub) produces an integer
// result, and that result is stored back into the message's m_type field —
// any payload mutation the handler made is written back alongside it.
func (s *Supervisor) handleKernelCallTrap(caller ipc.Endpoint, slot *proctable.Slot, regs unix.PtraceRegs) error {
	msgAddr := regs.Rax

	buf := make([]byte, ipc.MessageSize)
	if err := slot.Mem.ReadBuf(msgAddr, buf); err != nil {
		return &PtraceError{Endpoint: caller, Op: "read kernel-call message", Err: err}
	}

	msg := ipc.DecodeMessage(buf)
	msg.Source = caller

	result := s.calls.Dispatch(caller, &msg, s.procs)
	msg.MType = uint32(result)

	enc := msg.Encode()
	if err := slot.Mem.WriteBuf(msgAddr, enc[:]); err != nil {
		return &PtraceError{Endpoint: caller, Op: "write kernel-call message", Err: err}
	}

	if err := slot.Mem.Continue(0); err != nil {
		return &PtraceError{Endpoint: caller, Op: "continue", Err: err}
	}

	return nil
}

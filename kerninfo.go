// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package minixsup

import (
	"encoding/binary"

	"github.com/jacobsa/minixsup/internal/guestmem"
	"github.com/jacobsa/minixsup/internal/proctable"
	"github.com/jacobsa/minixsup/ipc"
)

// MinixKerninfoSize is the wire size of the MinixKerninfo header: magic(4) +
// version(4) + flags(4) + kerninfo_ptr(4) + kclockinfo_ptr(4), padded out to
// a round 32 bytes so the Clockinfo trailer starts at a well-aligned
// offset.
const MinixKerninfoSize = 32

// MinixKerninfo is the header of the shared kernel-info page mapped into a
// requesting guest at SharedBaseAddr. KclockinfoPtr always equals
// SharedBaseAddr + MinixKerninfoSize.
type MinixKerninfo struct {
	Magic         uint32
	Version       uint32
	Flags         uint32
	KerninfoPtr   uint32
	KclockinfoPtr uint32
}

// Encode serializes k to its wire form, zero-padded out to
// MinixKerninfoSize.
func (k MinixKerninfo) Encode() (b [MinixKerninfoSize]byte) {
	binary.LittleEndian.PutUint32(b[0:4], k.Magic)
	binary.LittleEndian.PutUint32(b[4:8], k.Version)
	binary.LittleEndian.PutUint32(b[8:12], k.Flags)
	binary.LittleEndian.PutUint32(b[12:16], k.KerninfoPtr)
	binary.LittleEndian.PutUint32(b[16:20], k.KclockinfoPtr)
	return
}

// ClockinfoSize is the wire size of the Clockinfo trailer: hz(4) + pad(4) +
// uptime(8) + boottime(8) = 24 bytes.
const ClockinfoSize = 24

// Clockinfo is the fixed-tick clock record appended after MinixKerninfo on
// the shared page. Uptime and BootTime stay zero: this repository models
// only a constant tick rate, not real timers or wall-clock advancement, so
// HertzVal alone is meaningful.
type Clockinfo struct {
	HertzVal uint32
	Uptime   uint64
	BootTime uint64
}

// DefaultHertz is the constant tick rate reported in the shared clock page.
const DefaultHertz uint32 = 60

// Encode serializes c to its wire form.
func (c Clockinfo) Encode() (b [ClockinfoSize]byte) {
	binary.LittleEndian.PutUint32(b[0:4], c.HertzVal)
	binary.LittleEndian.PutUint64(b[8:16], c.Uptime)
	binary.LittleEndian.PutUint64(b[16:24], c.BootTime)
	return
}

// handleMinixKerninfo implements the MINIX_KERNINFO fast path: on a
// requesting process's first request, it attaches the shared
// kernel-info page via the configured KerninfoAttacher, writes the
// MinixKerninfo+Clockinfo record into it, and caches the attachment so
// later requests skip straight to returning the address. The address is
// always returned in rbx, matching this call's ABI rather than the
// rax-result convention other IPC selectors use.
func (s *Supervisor) handleMinixKerninfo(caller ipc.Endpoint, slot *proctable.Slot) error {
	if !slot.KerninfoAttached {
		if s.cfg.KerninfoAttacher == nil {
			return s.finishIPC(caller, slot, ESRCH, nil)
		}
		if err := s.cfg.KerninfoAttacher(slot.Mem); err != nil {
			return &PtraceError{Endpoint: caller, Op: "attach kerninfo page", Err: err}
		}
		if err := s.writeKerninfoPage(slot.Mem); err != nil {
			return &PtraceError{Endpoint: caller, Op: "write kerninfo page", Err: err}
		}
		slot.KerninfoAttached = true
	}

	regs, err := slot.Mem.GetRegs()
	if err != nil {
		return &PtraceError{Endpoint: caller, Op: "get regs", Err: err}
	}
	regs.Rbx = SharedBaseAddr
	if err := slot.Mem.SetRegs(regs); err != nil {
		return &PtraceError{Endpoint: caller, Op: "set regs", Err: err}
	}

	slot.State = ipc.RunningState()
	if err := slot.Mem.Continue(0); err != nil {
		return &PtraceError{Endpoint: caller, Op: "continue", Err: err}
	}

	return nil
}

// writeKerninfoPage writes the MinixKerninfo header followed by the
// Clockinfo trailer into mem at SharedBaseAddr.
func (s *Supervisor) writeKerninfoPage(mem guestmem.GuestMemory) error {
	kernInfo := MinixKerninfo{
		Magic:         KerninfoMagic,
		Version:       1,
		KerninfoPtr:   uint32(SharedBaseAddr),
		KclockinfoPtr: uint32(SharedBaseAddr) + MinixKerninfoSize,
	}
	enc := kernInfo.Encode()
	if err := mem.WriteBuf(SharedBaseAddr, enc[:]); err != nil {
		return err
	}

	clock := Clockinfo{HertzVal: DefaultHertz}
	cenc := clock.Encode()
	return mem.WriteBuf(SharedBaseAddr+MinixKerninfoSize, cenc[:])
}

// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package minixsup

import (
	"encoding/binary"

	"github.com/jacobsa/minixsup/internal/guestmem"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

type KerninfoTest struct {
	sup           *Supervisor
	attacherCalls int
}

func init() { RegisterTestSuite(&KerninfoTest{}) }

func (t *KerninfoTest) SetUp(ti *TestInfo) {
	t.attacherCalls = 0
	t.sup = NewSupervisor(SupervisorConfig{
		KerninfoAttacher: func(mem guestmem.GuestMemory) error {
			t.attacherCalls++
			return nil
		},
	})
}

func (t *KerninfoTest) FirstRequestAttachesAndWritesThePage() {
	mem := addProc(t.sup, 90, "guest")
	slot := t.sup.procs.Get(90)

	err := t.sup.handleMinixKerninfo(90, slot)

	AssertEq(nil, err)
	ExpectEq(1, t.attacherCalls)
	ExpectTrue(slot.KerninfoAttached)
	ExpectEq(SharedBaseAddr, mem.Regs.Rbx)
	ExpectEq(1, mem.ContinueCalls)

	var buf [4]byte
	AssertEq(nil, mem.ReadBuf(SharedBaseAddr, buf[:]))
	ExpectEq(KerninfoMagic, binary.LittleEndian.Uint32(buf[:]))

	var clockBuf [4]byte
	AssertEq(nil, mem.ReadBuf(SharedBaseAddr+MinixKerninfoSize, clockBuf[:]))
	ExpectEq(DefaultHertz, binary.LittleEndian.Uint32(clockBuf[:]))
}

func (t *KerninfoTest) SecondRequestSkipsReattachingButStillReturnsTheAddress() {
	mem := addProc(t.sup, 91, "guest")
	slot := t.sup.procs.Get(91)

	AssertEq(nil, t.sup.handleMinixKerninfo(91, slot))
	ExpectEq(1, t.attacherCalls)

	AssertEq(nil, t.sup.handleMinixKerninfo(91, slot))

	ExpectEq(1, t.attacherCalls)
	ExpectEq(SharedBaseAddr, mem.Regs.Rbx)
	ExpectEq(2, mem.ContinueCalls)
}

func (t *KerninfoTest) NoAttacherConfiguredFailsWithESRCH() {
	bareSup := NewSupervisor(SupervisorConfig{})
	mem := addProc(bareSup, 92, "guest")
	slot := bareSup.procs.Get(92)

	err := bareSup.handleMinixKerninfo(92, slot)

	AssertEq(nil, err)
	ExpectFalse(slot.KerninfoAttached)
	ExpectEq(int32(ESRCH), int32(mem.Regs.Rax))
	ExpectEq(1, mem.ContinueCalls)
}

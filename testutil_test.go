// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package minixsup

import (
	"github.com/jacobsa/minixsup/internal/guestmem"
	"github.com/jacobsa/minixsup/internal/proctable"
	"github.com/jacobsa/minixsup/ipc"
)

// testMemSize is large enough for any test to place a Message, an AsynMsg
// table, or the shared kernel-info page without colliding with the buffer
// addresses the tests pick for receive buffers.
const testMemSize = 1 << 20

// newTestSupervisor returns a Supervisor with no KerninfoAttacher configured;
// tests that exercise MINIX_KERNINFO install their own config directly.
func newTestSupervisor() *Supervisor {
	return NewSupervisor(SupervisorConfig{})
}

// addProc inserts endpoint into sup's process table with a fresh Fake guest
// memory region and returns the Fake, so the test can set up registers and
// read back written buffers directly. Each Fake is given a distinct PidVal
// so several of them can coexist in one process table.
func addProc(sup *Supervisor, endpoint ipc.Endpoint, name string) *guestmem.Fake {
	mem := guestmem.NewFake(testMemSize)
	mem.PidVal = 10000 + int(endpoint)

	slot := proctable.NewSlot(endpoint, name, mem)
	if err := sup.procs.Insert(slot); err != nil {
		panic(err)
	}

	return mem
}

// writeMessageAt encodes msg into mem at addr, panicking on failure (every
// test's Fake is large enough that this never fails for valid addresses).
func writeMessageAt(mem *guestmem.Fake, addr uint64, msg ipc.Message) {
	enc := msg.Encode()
	if err := mem.WriteBuf(addr, enc[:]); err != nil {
		panic(err)
	}
}

// readMessageAt decodes a Message out of mem at addr.
func readMessageAt(mem *guestmem.Fake, addr uint64) ipc.Message {
	buf := make([]byte, ipc.MessageSize)
	if err := mem.ReadBuf(addr, buf); err != nil {
		panic(err)
	}
	return ipc.DecodeMessage(buf)
}

// writeAsynTableAt encodes entries back-to-back into mem starting at addr.
func writeAsynTableAt(mem *guestmem.Fake, addr uint64, entries []ipc.AsynMsg) {
	for i, e := range entries {
		enc := e.Encode()
		off := addr + uint64(i)*ipc.AsynMsgSize
		if err := mem.WriteBuf(off, enc[:]); err != nil {
			panic(err)
		}
	}
}

// readAsynEntryAt decodes the i'th AsynMsg of a table based at addr.
func readAsynEntryAt(mem *guestmem.Fake, addr uint64, i int) ipc.AsynMsg {
	off := addr + uint64(i)*ipc.AsynMsgSize
	buf := make([]byte, ipc.AsynMsgSize)
	if err := mem.ReadBuf(off, buf); err != nil {
		panic(err)
	}
	return ipc.DecodeAsynMsg(buf)
}

// recvBufAddr and sendBufAddr are arbitrary, well-separated guest addresses
// tests use as RECEIVE/SEND buffer pointers; kept out of the low addresses
// so they never alias the asyn table addresses a test also picks.
const (
	recvBufAddr = 0x1000
	sendBufAddr = 0x2000
	asynTabAddr = 0x3000
)

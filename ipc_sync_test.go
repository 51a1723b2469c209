// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package minixsup

import (
	"github.com/jacobsa/minixsup/ipc"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

// SyncIPCTest exercises SEND/RECEIVE/SENDREC/NOTIFY/SENDNB directly against
// the supervisor's sync engine, independent of trap dispatch: each test
// drives doIPC/doSendRec/doNotify the way dispatchTrap would, after manually
// staging the blocked process's own Mem.Regs.Rbx the way a real ptrace-stop
// would have left it (a process already stopped in Receiving/Sending keeps
// whatever rbx it last set before trapping; that's what a later immediate
// delivery writes into).
type SyncIPCTest struct {
	sup *Supervisor
}

func init() { RegisterTestSuite(&SyncIPCTest{}) }

func (t *SyncIPCTest) SetUp(ti *TestInfo) {
	t.sup = newTestSupervisor()
}

func (t *SyncIPCTest) ReceiveFirstThenSendDeliversImmediately() {
	receiver := addProc(t.sup, 10, "receiver")
	sender := addProc(t.sup, 11, "sender")
	receiver.Regs.Rbx = recvBufAddr

	_, err := t.sup.doIPC(10, ipc.RECEIVE, ipc.ANY, recvBufAddr)
	AssertEq(errLeftBlocked, err)
	ExpectEq(ipc.Receiving, t.sup.procs.Get(10).State.Kind)

	writeMessageAt(sender, sendBufAddr, ipc.Message{MType: 42})
	res, err := t.sup.doIPC(11, ipc.SEND, 10, sendBufAddr)

	AssertEq(nil, err)
	ExpectEq(int32(OK), res)
	ExpectEq(1, receiver.ContinueCalls)
	ExpectEq(ipc.Running, t.sup.procs.Get(10).State.Kind)

	got := readMessageAt(receiver, recvBufAddr)
	ExpectEq(uint32(42), got.MType)
	ExpectEq(ipc.Endpoint(11), got.Source)
}

func (t *SyncIPCTest) SendFirstQueuesThenReceiveDequeues() {
	receiver := addProc(t.sup, 12, "receiver")
	sender := addProc(t.sup, 13, "sender")

	writeMessageAt(sender, sendBufAddr, ipc.Message{MType: 7})
	_, err := t.sup.doIPC(13, ipc.SEND, 12, sendBufAddr)
	AssertEq(errLeftBlocked, err)
	ExpectEq(ipc.Sending, t.sup.procs.Get(13).State.Kind)
	ExpectEq(0, sender.ContinueCalls)

	res, err := t.sup.doIPC(12, ipc.RECEIVE, ipc.ANY, recvBufAddr)

	AssertEq(nil, err)
	ExpectEq(int32(OK), res)
	ExpectEq(ipc.Running, t.sup.procs.Get(13).State.Kind)
	ExpectEq(1, sender.ContinueCalls)

	got := readMessageAt(receiver, recvBufAddr)
	ExpectEq(uint32(7), got.MType)
	ExpectEq(ipc.Endpoint(13), got.Source)
}

func (t *SyncIPCTest) SendNonBlockingFailsWithENOTREADYWhenNotReceiving() {
	addProc(t.sup, 14, "dst")
	sender := addProc(t.sup, 15, "sender")
	writeMessageAt(sender, sendBufAddr, ipc.Message{MType: 1})

	res, err := t.sup.doIPC(15, ipc.SENDNB, 14, sendBufAddr)

	AssertEq(nil, err)
	ExpectEq(int32(ENOTREADY), res)
	ExpectEq(ipc.Running, t.sup.procs.Get(15).State.Kind)
}

func (t *SyncIPCTest) PlainSendBlocksWhenNotReceiving() {
	addProc(t.sup, 16, "dst")
	sender := addProc(t.sup, 17, "sender")
	writeMessageAt(sender, sendBufAddr, ipc.Message{MType: 1})

	_, err := t.sup.doIPC(17, ipc.SEND, 16, sendBufAddr)

	AssertEq(errLeftBlocked, err)
	ExpectEq(ipc.Sending, t.sup.procs.Get(17).State.Kind)
}

// SendRecDeferredReplyScenario matches the literal walkthrough: 41
// SENDREC(42, ...) blocks; 42 RECEIVE(ANY) dequeues the request and leaves
// 41 stopped in Receiving(42), awaiting the reply; 42's own SEND back to 41
// completes the rendezvous and clears 41's reply_pending bit.
func (t *SyncIPCTest) SendRecDeferredReplyScenario() {
	a := addProc(t.sup, 41, "a")
	b := addProc(t.sup, 42, "b")
	a.Regs.Rbx = sendBufAddr // same buffer reused for the reply half

	writeMessageAt(a, sendBufAddr, ipc.Message{MType: 100})
	_, err := t.sup.doSendRec(41, 42, sendBufAddr)

	AssertEq(errLeftBlocked, err)
	aSlot := t.sup.procs.Get(41)
	ExpectEq(ipc.Sending, aSlot.State.Kind)
	ExpectTrue(aSlot.ReplyPending)

	res, err := t.sup.doIPC(42, ipc.RECEIVE, ipc.ANY, recvBufAddr)

	AssertEq(nil, err)
	ExpectEq(int32(OK), res)

	aSlot = t.sup.procs.Get(41)
	ExpectEq(ipc.Receiving, aSlot.State.Kind)
	ExpectEq(ipc.Endpoint(42), aSlot.State.Target)
	ExpectEq(0, a.ContinueCalls)

	got := readMessageAt(b, recvBufAddr)
	ExpectEq(uint32(100), got.MType)
	ExpectEq(ipc.Endpoint(41), got.Source)

	writeMessageAt(b, sendBufAddr, ipc.Message{MType: 200})
	res, err = t.sup.doIPC(42, ipc.SEND, 41, sendBufAddr)

	AssertEq(nil, err)
	ExpectEq(int32(OK), res)
	ExpectEq(ipc.Running, t.sup.procs.Get(41).State.Kind)
	ExpectFalse(t.sup.procs.Get(41).ReplyPending)
	ExpectEq(1, a.ContinueCalls)

	reply := readMessageAt(a, sendBufAddr)
	ExpectEq(uint32(200), reply.MType)
	ExpectEq(ipc.Endpoint(42), reply.Source)
}

// SendDetectsCycleAndFailsWithEDEADSRCDST covers the graph-walk case: A is
// blocked sending to B, which is blocked sending to C; C attempting to SEND
// to A would close the cycle, so it fails immediately instead of blocking
// forever.
func (t *SyncIPCTest) SendDetectsCycleAndFailsWithEDEADSRCDST() {
	a := addProc(t.sup, 30, "a")
	b := addProc(t.sup, 31, "b")
	c := addProc(t.sup, 32, "c")

	writeMessageAt(a, sendBufAddr, ipc.Message{MType: 1})
	_, err := t.sup.doIPC(30, ipc.SEND, 31, sendBufAddr)
	AssertEq(errLeftBlocked, err)

	writeMessageAt(b, sendBufAddr, ipc.Message{MType: 2})
	_, err = t.sup.doIPC(31, ipc.SEND, 32, sendBufAddr)
	AssertEq(errLeftBlocked, err)

	writeMessageAt(c, sendBufAddr, ipc.Message{MType: 3})
	res, err := t.sup.doIPC(32, ipc.SEND, 30, sendBufAddr)

	AssertEq(nil, err)
	ExpectEq(int32(EDEADSRCDST), res)
	ExpectEq(ipc.Running, t.sup.procs.Get(32).State.Kind)
}

func (t *SyncIPCTest) NotifyDeliversImmediatelyWhenReceiving() {
	dst := addProc(t.sup, 20, "dst")
	dst.Regs.Rbx = recvBufAddr

	_, err := t.sup.doIPC(20, ipc.RECEIVE, ipc.ANY, recvBufAddr)
	AssertEq(errLeftBlocked, err)

	res, err := t.sup.doIPC(21, ipc.NOTIFY, 20, 0)

	AssertEq(nil, err)
	ExpectEq(int32(OK), res)
	ExpectEq(1, dst.ContinueCalls)
	ExpectEq(ipc.Running, t.sup.procs.Get(20).State.Kind)

	got := readMessageAt(dst, recvBufAddr)
	ExpectEq(ipc.NotifyMessage, got.MType)
	ExpectEq(ipc.Endpoint(21), got.Source)
}

func (t *SyncIPCTest) NotifyQueuesWhenNotReceivingThenSurfacesOnReceive() {
	dst := addProc(t.sup, 22, "dst")

	res, err := t.sup.doIPC(23, ipc.NOTIFY, 22, 0)
	AssertEq(nil, err)
	ExpectEq(int32(OK), res)
	ExpectTrue(t.sup.procs.Get(22).HasPendingNotify(23))

	res, err = t.sup.doIPC(22, ipc.RECEIVE, ipc.ANY, recvBufAddr)

	AssertEq(nil, err)
	ExpectEq(int32(OK), res)
	ExpectFalse(t.sup.procs.Get(22).HasPendingNotify(23))

	got := readMessageAt(dst, recvBufAddr)
	ExpectEq(ipc.NotifyMessage, got.MType)
	ExpectEq(ipc.Endpoint(23), got.Source)
}

// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package minixsup

import (
	"github.com/jacobsa/minixsup/internal/proctable"
	"github.com/jacobsa/minixsup/ipc"
)

// noAsynTable is the guest ABI's 32-bit s_asyntab value for "no async table
// registered". Process table slots do not store it: a slot with no
// registered table has AsynTable == 0 and AsynTableLen == 0.
const noAsynTable = 0xFFFFFFFF

// mayAsyncSendTo reports whether src is permitted to SENDA to dst. This
// repository doesn't model a per-endpoint privilege send-mask (the source
// material gestures at one but never specifies it), so every destination
// present in the table is permitted; ECALLDENIED is defined but never
// produced.
func mayAsyncSendTo(src, dst ipc.Endpoint) bool {
	return true
}

// doSenda implements SENDA(caller, tabAddr, size): scans the caller's async
// table attempting immediate delivery, queues what it can't deliver, and
// persists the caller's table pointer if anything remains undone.
func (s *Supervisor) doSenda(caller ipc.Endpoint, tabAddr uint64, size uint32) (int32, error) {
	callerSlot := s.procs.Get(caller)

	if size == 0 {
		callerSlot.AsynTable = 0
		callerSlot.AsynTableLen = 0
		return OK, nil
	}

	var anyUndone bool
	var notifyAccrued bool

	for i := uint32(0); i < size; i++ {
		entryAddr := tabAddr + uint64(i)*ipc.AsynMsgSize
		buf := make([]byte, ipc.AsynMsgSize)
		if err := callerSlot.Mem.ReadBuf(entryAddr, buf); err != nil {
			return 0, &PtraceError{Endpoint: caller, Op: "read async table entry", Err: err}
		}
		entry := ipc.DecodeAsynMsg(buf)

		if entry.Flags == ipc.AsynEmpty || entry.Flags&ipc.AsynDone != 0 {
			continue
		}

		if entry.Flags&^ipc.AsynValidMask != 0 || entry.Flags&ipc.AsynValid == 0 {
			// Malformed: logged and skipped. No EINVAL result is written
			// back, so the entry is left as-is.
			s.debugf("%v: SENDA entry %d has invalid flags %#x, skipping", caller, i, entry.Flags)
			continue
		}

		dst := entry.Dst
		dstSlot := s.procs.Get(dst)

		var result int32
		switch {
		case dstSlot == nil:
			result = EDEADSRCDST
		case !mayAsyncSendTo(caller, dst):
			result = ECALLDENIED
		default:
			result = OK
		}

		delivered := false
		if result == OK && willReceive(dstSlot, caller) &&
			(entry.Flags&ipc.AsynNoReply != 0 || !dstSlot.ReplyPending) {
			dstRegs, err := dstSlot.Mem.GetRegs()
			if err != nil {
				return 0, &PtraceError{Endpoint: dst, Op: "get regs", Err: err}
			}

			msg := entry.Msg
			msg.Source = caller
			enc := msg.Encode()
			if err := dstSlot.Mem.WriteBuf(dstRegs.Rbx, enc[:]); err != nil {
				return 0, &PtraceError{Endpoint: dst, Op: "write receive buffer", Err: err}
			}

			switch dstSlot.State.Kind {
			case ipc.Receiving:
				dstSlot.ReplyPending = false
				dstSlot.State = ipc.RunningState()
				if err := dstSlot.Mem.Continue(0); err != nil {
					return 0, &PtraceError{Endpoint: dst, Op: "continue", Err: err}
				}
			case ipc.SendReceiving:
				dstSlot.State = ipc.SendingState(dstSlot.State.Peer)
			}

			entry.Flags |= ipc.AsynDone
			entry.Result = OK
			delivered = true
		} else if result == OK {
			if dstSlot != nil {
				dstSlot.AddAsyncPending(caller)
			}
			anyUndone = true
		} else {
			entry.Flags |= ipc.AsynDone
			entry.Result = result
			delivered = true
		}

		if delivered {
			enc := entry.Encode()
			if err := callerSlot.Mem.WriteBuf(entryAddr, enc[:]); err != nil {
				return 0, &PtraceError{Endpoint: caller, Op: "write async table entry", Err: err}
			}
		}

		if entry.Flags&ipc.AsynNotify != 0 || (entry.Flags&ipc.AsynNotifyErr != 0 && result != OK) {
			notifyAccrued = true
		}
	}

	if notifyAccrued {
		s.queueAsynNotify(caller)
	}

	if anyUndone {
		callerSlot.AsynTable = tabAddr
		callerSlot.AsynTableLen = size
	} else {
		callerSlot.AsynTable = 0
		callerSlot.AsynTableLen = 0
	}

	return OK, nil
}

// queueAsynNotify records that caller is owed a notification from ASYNCM,
// the same delivery path a real NOTIFY uses.
func (s *Supervisor) queueAsynNotify(caller ipc.Endpoint) {
	callerSlot := s.procs.Get(caller)
	if willReceive(callerSlot, ipc.ASYNCM) {
		return // nothing to do synchronously outside a RECEIVE trap
	}
	callerSlot.AddPendingNotify(ipc.ASYNCM)
}

// tryOne attempts opportunistic delivery from src's async table to dst,
// writing directly into the buffer at dstBufAddr (dst's own rbx, since
// tryOne is only ever invoked on behalf of dst's own in-flight RECEIVE).
//
// The scan stops at the first entry it resolves one way or the other (a
// malformed entry is resolved as EINVAL, a matching deliverable entry as
// OK); entries it merely skips over (empty, already done, wrong
// destination, not yet receivable) are left untouched for a later attempt.
func (s *Supervisor) tryOne(src, dst ipc.Endpoint, dstBufAddr uint64) (int32, error) {
	dstSlot := s.procs.Get(dst)
	dstSlot.RemoveAsyncPending(src)

	srcSlot := s.procs.Get(src)
	if srcSlot == nil || srcSlot.AsynTableLen == 0 {
		return EAGAIN, nil
	}
	if !mayAsyncSendTo(src, dst) {
		return ECALLDENIED, nil
	}

	doNotify := false
	done := true
	r := EAGAIN

	for i := uint32(0); i < srcSlot.AsynTableLen; i++ {
		entryAddr := srcSlot.AsynTable + uint64(i)*ipc.AsynMsgSize
		buf := make([]byte, ipc.AsynMsgSize)
		if err := srcSlot.Mem.ReadBuf(entryAddr, buf); err != nil {
			return 0, &PtraceError{Endpoint: src, Op: "read async table entry", Err: err}
		}
		entry := ipc.DecodeAsynMsg(buf)

		if entry.Flags == ipc.AsynEmpty {
			continue
		}

		invalid := entry.Flags&^ipc.AsynValidMask != 0 || entry.Flags&ipc.AsynValid == 0
		if invalid {
			r = EINVAL
		} else if entry.Flags&ipc.AsynDone != 0 {
			continue
		}

		done = false

		if r != EINVAL {
			if entry.Dst != dst {
				continue
			}
			// dst's receive filter was already applied to src by tryAsync.
			if entry.Flags&ipc.AsynNoReply == 0 && dstSlot.ReplyPending {
				continue
			}

			r = OK
			msg := entry.Msg
			msg.Source = src
			enc := msg.Encode()
			if err := dstSlot.Mem.WriteBuf(dstBufAddr, enc[:]); err != nil {
				return 0, &PtraceError{Endpoint: dst, Op: "write receive buffer", Err: err}
			}
		}

		entry.Result = r
		entry.Flags |= ipc.AsynDone
		if entry.Flags&ipc.AsynNotify != 0 || (r != OK && entry.Flags&ipc.AsynNotifyErr != 0) {
			doNotify = true
		}

		enc := entry.Encode()
		if err := srcSlot.Mem.WriteBuf(entryAddr, enc[:]); err != nil {
			return 0, &PtraceError{Endpoint: src, Op: "write async table entry", Err: err}
		}

		break
	}

	if doNotify {
		if _, err := s.doNotify(ipc.ASYNCM, src); err != nil {
			return 0, err
		}
	}

	if done {
		srcSlot.AsynTable = 0
		srcSlot.AsynTableLen = 0
	} else {
		// Diverges from the observed original behaviour (which re-queues
		// src on dst's notify_pending here, apparently a copy-paste slip):
		// re-queue on dst's async_pending so a later RECEIVE retries
		// delivery from src.
		dstSlot.AddAsyncPending(src)
	}

	return r, nil
}

// tryAsync is the RECEIVE-side hook: it snapshots caller's async_pending and
// attempts delivery from each candidate sender until one succeeds.
func (s *Supervisor) tryAsync(callerSlot *proctable.Slot, src ipc.Endpoint, bufAddr uint64) (bool, error) {
	candidates := append([]ipc.Endpoint(nil), callerSlot.AsyncPending...)

	for _, sender := range candidates {
		if !canReceive(src, sender) {
			continue
		}

		result, err := s.tryOne(sender, callerSlot.Endpoint, bufAddr)
		if err != nil {
			return false, err
		}
		if result == OK {
			return true, nil
		}
	}

	return false, nil
}

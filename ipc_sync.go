// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package minixsup

import (
	"github.com/jacobsa/minixsup/internal/proctable"
	"github.com/jacobsa/minixsup/ipc"
)

// canReceive reports whether a process blocked Receiving(e) may accept a
// message from s. The caller guarantees s != ANY.
func canReceive(e, s ipc.Endpoint) bool {
	return e == ipc.ANY || e == s
}

// willReceive reports whether d is currently positioned to accept a message
// from s without blocking.
func willReceive(d *proctable.Slot, s ipc.Endpoint) bool {
	return d.State.Kind == ipc.Receiving && canReceive(d.State.Target, s)
}

// doIPC is the synchronous-engine entry point invoked by the trap
// dispatcher for every INT 0x21 trap other than SENDA. caller is already
// resolved; sel/peer/bufAddr come straight out of rcx/rax/rbx.
func (s *Supervisor) doIPC(caller ipc.Endpoint, sel ipc.Selector, peer ipc.Endpoint, bufAddr uint64) (int32, error) {
	if sel == ipc.RECEIVE {
		if peer != ipc.ANY && (peer < 0 || int(peer) >= proctable.Capacity || s.procs.Get(peer) == nil) {
			return EDEADSRCDST, nil
		}
	} else {
		if peer < 0 || int(peer) >= proctable.Capacity || s.procs.Get(peer) == nil {
			return EDEADSRCDST, nil
		}
	}

	switch sel {
	case ipc.SEND:
		return s.doSend(caller, peer, bufAddr, false)
	case ipc.SENDNB:
		return s.doSend(caller, peer, bufAddr, true)
	case ipc.RECEIVE:
		return s.doReceive(caller, peer, bufAddr)
	case ipc.SENDREC:
		return s.doSendRec(caller, peer, bufAddr)
	case ipc.NOTIFY:
		return s.doNotify(caller, peer)
	default:
		return EBADCALL, nil
	}
}

// doSend implements SEND (nonBlocking == false) and SENDNB (true).
func (s *Supervisor) doSend(caller, dst ipc.Endpoint, bufAddr uint64, nonBlocking bool) (int32, error) {
	callerSlot := s.procs.Get(caller)
	dstSlot := s.procs.Get(dst)

	if willReceive(dstSlot, caller) {
		buf := make([]byte, ipc.MessageSize)
		if err := callerSlot.Mem.ReadBuf(bufAddr, buf); err != nil {
			return 0, &PtraceError{Endpoint: caller, Op: "read send buffer", Err: err}
		}

		msg := ipc.DecodeMessage(buf)
		msg.Source = caller

		dstRegs, err := dstSlot.Mem.GetRegs()
		if err != nil {
			return 0, &PtraceError{Endpoint: dst, Op: "get regs", Err: err}
		}

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

		return OK, nil
	}

	if nonBlocking {
		return ENOTREADY, nil
	}

	if s.procs.WouldDeadlock(caller, dst) {
		return EDEADSRCDST, nil
	}

	buf := make([]byte, ipc.MessageSize)
	if err := callerSlot.Mem.ReadBuf(bufAddr, buf); err != nil {
		return 0, &PtraceError{Endpoint: caller, Op: "read send buffer", Err: err}
	}
	msg := ipc.DecodeMessage(buf)

	callerSlot.State = ipc.SendingState(dst)
	dstSlot.Queue.Insert(caller, msg)

	return 0, errLeftBlocked
}

// doReceive implements RECEIVE. src may be ipc.ANY.
func (s *Supervisor) doReceive(caller, src ipc.Endpoint, bufAddr uint64) (int32, error) {
	callerSlot := s.procs.Get(caller)

	if callerSlot.State.Kind == ipc.Sending {
		callerSlot.State = ipc.SendReceivingState(callerSlot.State.Target)
		return 0, errLeftBlocked
	}

	replyPending := callerSlot.ReplyPending
	callerSlot.ReplyPending = false

	if !replyPending {
		if sender, ok := callerSlot.TakePendingNotify(func(e ipc.Endpoint) bool { return canReceive(src, e) }); ok {
			enc := ipc.NewNotify(sender).Encode()
			if err := callerSlot.Mem.WriteBuf(bufAddr, enc[:]); err != nil {
				return 0, &PtraceError{Endpoint: caller, Op: "write receive buffer", Err: err}
			}
			return OK, nil
		}
	}

	if ok, err := s.tryAsync(callerSlot, src, bufAddr); err != nil {
		return 0, err
	} else if ok {
		return OK, nil
	}

	if sender, msg, ok := callerSlot.Queue.Get(func(e ipc.Endpoint) bool { return canReceive(src, e) }); ok {
		msg.Source = sender
		enc := msg.Encode()
		if err := callerSlot.Mem.WriteBuf(bufAddr, enc[:]); err != nil {
			return 0, &PtraceError{Endpoint: caller, Op: "write receive buffer", Err: err}
		}

		senderSlot := s.procs.Get(sender)
		switch senderSlot.State.Kind {
		case ipc.SendReceiving:
			senderSlot.State = ipc.ReceivingState(senderSlot.State.Peer)
		case ipc.Sending:
			if senderSlot.ReplyPending {
				// This sender's blocked send was the first half of a
				// SENDREC: now that it's delivered, the sender is still
				// stopped, waiting on the reply from the same peer.
				senderSlot.State = ipc.ReceivingState(caller)
			} else {
				senderSlot.State = ipc.RunningState()
				if err := senderSlot.Mem.Continue(0); err != nil {
					return 0, &PtraceError{Endpoint: sender, Op: "continue", Err: err}
				}
			}
		}

		return OK, nil
	}

	callerSlot.State = ipc.ReceivingState(src)
	return 0, errLeftBlocked
}

// doSendRec implements SENDREC: a SEND immediately followed by a RECEIVE
// from the same peer, with reply_pending tracked across the deferred gap.
func (s *Supervisor) doSendRec(caller, dst ipc.Endpoint, bufAddr uint64) (int32, error) {
	callerSlot := s.procs.Get(caller)
	callerSlot.ReplyPending = true

	res, err := s.doSend(caller, dst, bufAddr, false)
	if err != nil {
		return 0, err
	}
	if res != OK {
		callerSlot.ReplyPending = false
		return res, nil
	}

	return s.doReceive(caller, dst, bufAddr)
}

// doNotify implements NOTIFY: either an immediate synthesized delivery, or
// queueing on dst's notify_pending set.
func (s *Supervisor) doNotify(caller, dst ipc.Endpoint) (int32, error) {
	dstSlot := s.procs.Get(dst)

	if willReceive(dstSlot, caller) {
		dstRegs, err := dstSlot.Mem.GetRegs()
		if err != nil {
			return 0, &PtraceError{Endpoint: dst, Op: "get regs", Err: err}
		}

		enc := ipc.NewNotify(caller).Encode()
		if err := dstSlot.Mem.WriteBuf(dstRegs.Rbx, enc[:]); err != nil {
			return 0, &PtraceError{Endpoint: dst, Op: "write receive buffer", Err: err}
		}

		dstSlot.ReplyPending = false
		dstSlot.State = ipc.RunningState()
		if err := dstSlot.Mem.Continue(0); err != nil {
			return 0, &PtraceError{Endpoint: dst, Op: "continue", Err: err}
		}

		return OK, nil
	}

	dstSlot.AddPendingNotify(caller)
	return OK, nil
}

// errLeftBlocked is a sentinel, never surfaced past the dispatcher: it
// tells the caller that the guest was deliberately left stopped and no
// value should be written back into rax.
var errLeftBlocked = leftBlockedError{}

type leftBlockedError struct{}

func (leftBlockedError) Error() string { return "minixsup: caller left blocked" }

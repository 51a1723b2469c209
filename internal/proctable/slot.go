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

package proctable

import (
	"github.com/jacobsa/minixsup/internal/guestmem"
	"github.com/jacobsa/minixsup/internal/senderqueue"
	"github.com/jacobsa/minixsup/ipc"
)

// Slot is one endpoint's worth of process state: its IPC state machine
// position, the senders blocked on it, and its pending notification/async
// bits.
type Slot struct {
	// Endpoint this slot is indexed by; kept here too so a *Slot carries its
	// own identity once looked up.
	Endpoint ipc.Endpoint

	// Mem is how the supervisor reads/writes this process's registers and
	// address space. Nil for slots representing pseudo-processes that are
	// never traced (e.g. a deadlock-detection placeholder in tests).
	Mem guestmem.GuestMemory

	// Name is the process's program name, used only for logging.
	Name string

	// SFlags holds the privilege flag bits.
	SFlags uint16

	// State is this process's current IPC rendezvous state.
	State ipc.ProcessState

	// Queue holds the processes currently blocked SENDing to this one.
	Queue senderqueue.Queue

	// PendingNotify is the set of endpoints that have NOTIFYd this process
	// while it wasn't ready to receive: a bitmap keyed by
	// endpoint would also work, but this spec's notify source set is small
	// enough that a slice reads more plainly.
	PendingNotify []ipc.Endpoint

	// ReplyPending is set by SENDREC's send half and cleared the next time
	// this process completes a RECEIVE; while set, RECEIVE skips pending
	// notifications in favor of the deferred reply.
	ReplyPending bool

	// AsynTable, if non-zero, is the guest virtual address of this
	// process's AsynMsg table, set by the most recent SENDA.
	AsynTable    uint64
	AsynTableLen uint32

	// AsyncPending is the set of endpoints with an outstanding SENDA entry
	// addressed to this process, in the order they became deliverable
	// candidates. try_async drains this on RECEIVE.
	AsyncPending []ipc.Endpoint

	// KerninfoAttached records whether the MINIX_KERNINFO shared page has
	// already been mapped into this process: the attach is
	// done at most once per process.
	KerninfoAttached bool
}

// AddAsyncPending records that sender has at least one undelivered SENDA
// entry addressed to this process, if not already recorded.
func (s *Slot) AddAsyncPending(sender ipc.Endpoint) {
	for _, e := range s.AsyncPending {
		if e == sender {
			return
		}
	}
	s.AsyncPending = append(s.AsyncPending, sender)
}

// RemoveAsyncPending removes the first occurrence of sender, if present.
func (s *Slot) RemoveAsyncPending(sender ipc.Endpoint) {
	for i, e := range s.AsyncPending {
		if e == sender {
			s.AsyncPending = append(s.AsyncPending[:i], s.AsyncPending[i+1:]...)
			return
		}
	}
}

// NewSlot returns a freshly booted, Running slot for endpoint.
func NewSlot(endpoint ipc.Endpoint, name string, mem guestmem.GuestMemory) *Slot {
	return &Slot{
		Endpoint: endpoint,
		Mem:      mem,
		Name:     name,
		State:    ipc.RunningState(),
	}
}

// HasPendingNotify reports whether source has a queued notification for
// this slot.
func (s *Slot) HasPendingNotify(source ipc.Endpoint) bool {
	for _, e := range s.PendingNotify {
		if e == source {
			return true
		}
	}
	return false
}

// AddPendingNotify records a notification from source, if not already
// pending.
func (s *Slot) AddPendingNotify(source ipc.Endpoint) {
	if !s.HasPendingNotify(source) {
		s.PendingNotify = append(s.PendingNotify, source)
	}
}

// TakePendingNotify removes and returns one pending notifier satisfying
// predicate, preferring the lowest endpoint value (the tie-break used for
// an ANY-receive matching more than one pending notifier).
func (s *Slot) TakePendingNotify(predicate func(ipc.Endpoint) bool) (ipc.Endpoint, bool) {
	best := -1
	for i, e := range s.PendingNotify {
		if !predicate(e) {
			continue
		}
		if best == -1 || e < s.PendingNotify[best] {
			best = i
		}
	}

	if best == -1 {
		return 0, false
	}

	e := s.PendingNotify[best]
	s.PendingNotify = append(s.PendingNotify[:best], s.PendingNotify[best+1:]...)
	return e, true
}

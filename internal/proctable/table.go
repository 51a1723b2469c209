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

// Package proctable is the endpoint-indexed process table: a fixed-capacity
// array of slots plus a pid-to-endpoint index, guarded by an
// invariant-checking mutex.
package proctable

import (
	"fmt"

	"github.com/jacobsa/minixsup/ipc"
	"github.com/jacobsa/syncutil"
)

// Capacity is the number of endpoint slots the table holds:
// enough to cover the boot-time system processes plus the full user
// endpoint range below ipc.EndpointSlotTop.
const Capacity = ipc.EndpointSlotTop

// Table is the process table: slots indexed by endpoint, plus a pid index
// for reverse lookup from a ptrace-stopped pid.
type Table struct {
	// When acquiring this lock, the caller must hold no other locks.
	mu syncutil.InvariantMutex

	slots [Capacity]*Slot     // GUARDED_BY(mu)
	byPid map[int]ipc.Endpoint // GUARDED_BY(mu)
}

// New returns an empty process table with invariant checking enabled.
func New() *Table {
	t := &Table{byPid: make(map[int]ipc.Endpoint)}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

// checkInvariants enforces the process table's five invariants:
//  1. every populated slot's Endpoint field matches its index
//  2. byPid agrees exactly with the populated slots' pids
//  3. no two slots share a pid
//  4. a slot's AsynTableLen is zero iff AsynTable is zero
//  5. a Sending/Receiving/SendReceiving slot's Target/Peer is never its own
//     endpoint (no process blocks on itself)
func (t *Table) checkInvariants() {
	seenPids := make(map[int]ipc.Endpoint)

	for i, s := range t.slots {
		if s == nil {
			continue
		}

		if int(s.Endpoint) != i {
			panic(fmt.Sprintf("proctable: slot %d holds endpoint %v", i, s.Endpoint))
		}

		if s.Mem != nil {
			if prior, ok := seenPids[s.Mem.Pid()]; ok {
				panic(fmt.Sprintf("proctable: pid %d claimed by both %v and %v", s.Mem.Pid(), prior, s.Endpoint))
			}
			seenPids[s.Mem.Pid()] = s.Endpoint
		}

		if (s.AsynTable == 0) != (s.AsynTableLen == 0) {
			panic(fmt.Sprintf("proctable: slot %v has inconsistent AsynTable/AsynTableLen", s.Endpoint))
		}

		switch s.State.Kind {
		case ipc.Sending:
			if s.State.Target == s.Endpoint {
				panic(fmt.Sprintf("proctable: slot %v is Sending to itself", s.Endpoint))
			}
		case ipc.Receiving:
			if s.State.Target == s.Endpoint {
				panic(fmt.Sprintf("proctable: slot %v is Receiving from itself", s.Endpoint))
			}
		case ipc.SendReceiving:
			if s.State.Peer == s.Endpoint {
				panic(fmt.Sprintf("proctable: slot %v is SendReceiving with itself", s.Endpoint))
			}
		}
	}

	for pid, endpoint := range t.byPid {
		s := t.slots[int(endpoint)]
		if s == nil || s.Mem == nil || s.Mem.Pid() != pid {
			panic(fmt.Sprintf("proctable: byPid[%d]=%v doesn't match slot contents", pid, endpoint))
		}
	}
}

// Get returns the slot at endpoint, or nil if unoccupied. endpoint must be
// in [0, Capacity).
func (t *Table) Get(endpoint ipc.Endpoint) *Slot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.slots[int(endpoint)]
}

// GetByPid returns the slot whose traced process has the given Linux pid,
// or nil if none.
func (t *Table) GetByPid(pid int) *Slot {
	t.mu.Lock()
	defer t.mu.Unlock()

	endpoint, ok := t.byPid[pid]
	if !ok {
		return nil
	}
	return t.slots[int(endpoint)]
}

// Insert adds slot at its own Endpoint. It returns an error if that slot is
// already occupied.
func (t *Table) Insert(slot *Slot) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := int(slot.Endpoint)
	if idx < 0 || idx >= Capacity {
		return fmt.Errorf("proctable: endpoint %v out of range [0, %d)", slot.Endpoint, Capacity)
	}
	if t.slots[idx] != nil {
		return fmt.Errorf("proctable: endpoint %v already occupied", slot.Endpoint)
	}

	t.slots[idx] = slot
	if slot.Mem != nil {
		t.byPid[slot.Mem.Pid()] = slot.Endpoint
	}

	return nil
}

// Remove clears the slot at endpoint, if any, and returns it.
func (t *Table) Remove(endpoint ipc.Endpoint) *Slot {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := int(endpoint)
	s := t.slots[idx]
	if s == nil {
		return nil
	}

	t.slots[idx] = nil
	if s.Mem != nil {
		delete(t.byPid, s.Mem.Pid())
	}

	return s
}

// Lookup returns a slot's name and privilege flags, for kernel-call
// handlers that need to answer requests like GET_WHOAMI without a direct
// dependency on this package's Slot type.
func (t *Table) Lookup(endpoint ipc.Endpoint) (name string, privFlags uint16, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := int(endpoint)
	if idx < 0 || idx >= Capacity || t.slots[idx] == nil {
		return "", 0, false
	}

	s := t.slots[idx]
	return s.Name, s.SFlags, true
}

// ReadGuestBuf reads n bytes at addr from endpoint's traced address space,
// for kernel-call handlers (like DIAGCTL) that need to pull a buffer out of
// the caller without a direct dependency on internal/guestmem.
func (t *Table) ReadGuestBuf(endpoint ipc.Endpoint, addr uint64, n int) ([]byte, error) {
	t.mu.Lock()
	s := t.slots[int(endpoint)]
	t.mu.Unlock()

	if s == nil || s.Mem == nil {
		return nil, fmt.Errorf("proctable: no guest memory access for endpoint %v", endpoint)
	}

	buf := make([]byte, n)
	if err := s.Mem.ReadBuf(addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// PidToEndpoint looks up the endpoint for a traced pid.
func (t *Table) PidToEndpoint(pid int) (ipc.Endpoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byPid[pid]
	return e, ok
}

// WouldDeadlock reports whether having `from` start SENDing to `to` would
// complete a cycle in the "blocked sending to" relation: from -> to -> ...
// -> from, where every hop in
// the chain is itself a process currently blocked sending.
//
// This is additive: callers that never invoke it get the plain MINIX
// behavior of blocking forever on a real deadlock.
func (t *Table) WouldDeadlock(from, to ipc.Endpoint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := to
	for {
		if cur == from {
			return true
		}

		s := t.slots[int(cur)]
		if s == nil || s.State.Kind != ipc.Sending {
			return false
		}

		cur = s.State.Target
	}
}

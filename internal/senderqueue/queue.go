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

// Package senderqueue holds the FIFO of blocked senders attached to each
// process table slot: every process waiting to SEND to a
// given target sits here until that target calls RECEIVE.
package senderqueue

import "github.com/jacobsa/minixsup/ipc"

type entry struct {
	sender ipc.Endpoint
	msg    ipc.Message
}

// Queue is a FIFO of (sender, Message) pairs with predicate-based removal.
// Consumed entries are tombstoned in place (nil) rather than spliced out
// immediately, so Get never shifts the backing slice; tombstones are
// compacted away once they outnumber live entries.
//
// The zero Queue is ready to use.
type Queue struct {
	data      []*entry
	liveCount int
}

// Insert appends a message from sender to the back of the queue.
func (q *Queue) Insert(sender ipc.Endpoint, msg ipc.Message) {
	q.data = append(q.data, &entry{sender: sender, msg: msg})
	q.liveCount++
}

// Get returns and removes the first queued message whose sender satisfies
// predicate, in FIFO order. It reports false if no entry matches.
func (q *Queue) Get(predicate func(ipc.Endpoint) bool) (ipc.Endpoint, ipc.Message, bool) {
	idx := -1
	for i, e := range q.data {
		if e != nil && predicate(e.sender) {
			idx = i
			break
		}
	}

	if idx == -1 {
		return 0, ipc.Message{}, false
	}

	e := q.data[idx]
	q.data[idx] = nil
	q.liveCount--

	// Drop trailing tombstones; there can be more than one if the entry we
	// just removed was already preceded by tombstones at the tail.
	for len(q.data) > 0 && q.data[len(q.data)-1] == nil {
		q.data = q.data[:len(q.data)-1]
	}

	// Compact once tombstones outnumber live entries, so a queue that's
	// mostly been drained doesn't keep scanning dead slots forever.
	if q.liveCount*2 < len(q.data) {
		q.compact()
	}

	return e.sender, e.msg, true
}

func (q *Queue) compact() {
	live := make([]*entry, 0, q.liveCount)
	for _, e := range q.data {
		if e != nil {
			live = append(live, e)
		}
	}
	q.data = live
}

// Len returns the number of live (non-tombstoned) entries.
func (q *Queue) Len() int {
	return q.liveCount
}

// Empty reports whether the queue holds no live entries.
func (q *Queue) Empty() bool {
	return q.liveCount == 0
}

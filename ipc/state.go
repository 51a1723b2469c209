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

package ipc

import "fmt"

// StateKind discriminates the variants of ProcessState.
type StateKind int

const (
	// Running means the process is neither blocked sending nor receiving.
	Running StateKind = iota

	// Sending means the process is blocked in SEND/SENDREC, waiting for
	// Target to call RECEIVE (or ANY-receive) for it.
	Sending

	// Receiving means the process is blocked in RECEIVE, waiting for a
	// message from Target (which may be ANY).
	Receiving

	// SendReceiving means the process issued SENDREC and is blocked first
	// sending to, then receiving from, the same Peer.
	SendReceiving
)

func (k StateKind) String() string {
	switch k {
	case Running:
		return "Running"
	case Sending:
		return "Sending"
	case Receiving:
		return "Receiving"
	case SendReceiving:
		return "SendReceiving"
	default:
		return fmt.Sprintf("StateKind(%d)", int(k))
	}
}

// ProcessState is the tagged variant describing what a process slot is
// blocked on. Target/Peer are meaningful only for the
// Kind they're documented against; NONE otherwise.
type ProcessState struct {
	Kind   StateKind
	Target Endpoint // Sending, Receiving
	Peer   Endpoint // SendReceiving
}

// RunningState is the canonical unblocked state.
func RunningState() ProcessState {
	return ProcessState{Kind: Running, Target: NONE, Peer: NONE}
}

// SendingState marks the process blocked sending to target.
func SendingState(target Endpoint) ProcessState {
	return ProcessState{Kind: Sending, Target: target, Peer: NONE}
}

// ReceivingState marks the process blocked receiving from source (ANY for a
// wildcard receive).
func ReceivingState(source Endpoint) ProcessState {
	return ProcessState{Kind: Receiving, Target: source, Peer: NONE}
}

// SendReceivingState marks the process blocked in the send half, then the
// receive half, of a SENDREC with peer.
func SendReceivingState(peer Endpoint) ProcessState {
	return ProcessState{Kind: SendReceiving, Target: NONE, Peer: peer}
}

// isBlocked reports whether the process cannot run until a rendezvous
// completes.
func (s ProcessState) isBlocked() bool {
	return s.Kind != Running
}

func (s ProcessState) String() string {
	switch s.Kind {
	case Sending:
		return fmt.Sprintf("Sending(%s)", s.Target)
	case Receiving:
		return fmt.Sprintf("Receiving(%s)", s.Target)
	case SendReceiving:
		return fmt.Sprintf("SendReceiving(%s)", s.Peer)
	default:
		return "Running"
	}
}

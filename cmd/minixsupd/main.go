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

//go:build linux

// Command minixsupd wires up a minixsup.Supervisor against whatever guest
// processes a caller has already attached and registered.
//
// Spawning guests and loading their binaries are out of this repository's
// scope: this command reads pids to attach from a flag rather than
// fork/exec'ing anything itself, then runs a minimal wait4 loop that hands
// every stop of a tracee to HandleTrap and removes the slot of a tracee
// that exits or is killed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/jacobsa/minixsup"
	"github.com/jacobsa/minixsup/internal/guestmem"
	"github.com/jacobsa/minixsup/internal/proctable"
	"github.com/jacobsa/minixsup/ipc"
	"github.com/jacobsa/timeutil"
)

var fPids = flag.String(
	"attach_pids",
	"",
	"Comma-separated endpoint=pid pairs for already-stopped tracees, e.g. 0=1234,1=1235.")

var fDebug = flag.Bool("debug", false, "Enable supervisor debug logging.")

func parseAttachList(spec string) (map[ipc.Endpoint]int, error) {
	result := make(map[ipc.Endpoint]int)
	if spec == "" {
		return result, nil
	}

	for _, pair := range strings.Split(spec, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed endpoint=pid pair: %q", pair)
		}

		ep, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("bad endpoint in %q: %w", pair, err)
		}

		pid, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("bad pid in %q: %w", pair, err)
		}

		result[ipc.Endpoint(ep)] = pid
	}

	return result, nil
}

func main() {
	flag.Parse()

	attach, err := parseAttachList(*fPids)
	if err != nil {
		log.Fatalf("parseAttachList: %v", err)
	}

	cfg := minixsup.SupervisorConfig{
		Clock: timeutil.RealClock(),
	}
	if *fDebug {
		cfg.DebugLogger = log.New(os.Stderr, "minixsupd: ", log.Lmicroseconds)
	}

	sup := minixsup.NewSupervisor(cfg)

	for ep, pid := range attach {
		mem := guestmem.NewPtrace(pid)
		if err := sup.ProcessTable().Insert(proctable.NewSlot(ep, fmt.Sprintf("pid-%d", pid), mem)); err != nil {
			log.Fatalf("registering endpoint %v (pid %d): %v", ep, pid, err)
		}
	}

	ctx := context.Background()
	for {
		var status syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &status, 0, nil)
		if err != nil {
			log.Fatalf("wait4: %v", err)
		}

		if status.Exited() || status.Signaled() {
			if slot := sup.ProcessTable().GetByPid(pid); slot != nil {
				sup.ProcessTable().Remove(slot.Endpoint)
			}
			continue
		}

		if !status.Stopped() {
			continue
		}

		if err := sup.HandleTrap(ctx, pid); err != nil {
			log.Printf("HandleTrap(pid %d): %v", pid, err)
		}
	}
}

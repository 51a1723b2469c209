// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package minixsup

import (
	"context"
	"fmt"
	"log"

	"github.com/jacobsa/minixsup/internal/guestmem"
	"github.com/jacobsa/minixsup/internal/proctable"
	"github.com/jacobsa/minixsup/kernelcalls"
	"github.com/jacobsa/reqtrace"
	"github.com/jacobsa/timeutil"
)

// SharedBaseAddr is the fixed virtual address at which the kernel-info page
// is mapped into a requesting guest.
const SharedBaseAddr uint64 = 0xF1002000

// KerninfoMagic identifies a valid MinixKerninfo record.
const KerninfoMagic uint32 = 0xFC3B84BF

// SupervisorConfig carries the supervisor's construction-time parameters.
type SupervisorConfig struct {
	// Clock is stored on the Supervisor (timeutil.RealClock() if nil). No
	// code in this package reads it: debug lines carry the logger's own
	// timestamps, and no CLOCK notifications are generated.
	Clock timeutil.Clock

	// DebugLogger receives the supervisor's debug lines (simulated-fault
	// deliveries and skipped malformed SENDA entries). If nil, the
	// package-level debug logger (gated by -minixsup.debug) is used.
	DebugLogger *log.Logger

	// KerninfoAttacher maps the shared kernel-info page into a guest's
	// address space at SharedBaseAddr, returning an error if the mapping
	// fails. Left nil in configurations that never serve MINIX_KERNINFO.
	KerninfoAttacher func(mem guestmem.GuestMemory) error
}

// Supervisor owns the process table and the kernel-call dispatch table, and
// is the single entry point a host wait loop drives: one call to HandleTrap
// per stop event.
type Supervisor struct {
	cfg         SupervisorConfig
	debugLogger *log.Logger

	procs *proctable.Table
	calls *kernelcalls.Table
	clock timeutil.Clock
}

// NewSupervisor returns a Supervisor with an empty process table and the
// built-in kernel-call handlers registered.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	s := &Supervisor{
		cfg:         cfg,
		debugLogger: cfg.DebugLogger,
		procs:       proctable.New(),
		calls:       kernelcalls.NewTable(),
		clock:       cfg.Clock,
	}

	if s.debugLogger == nil {
		s.debugLogger = getLogger()
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock()
	}

	return s
}

// ProcessTable returns the supervisor's process table, so a controller can
// insert slots for newly spawned guests and remove them on exit (spawning
// and lifetime management are the controller's job, not this package's).
func (s *Supervisor) ProcessTable() *proctable.Table {
	return s.procs
}

// KernelCalls returns the supervisor's kernel-call dispatch table, so a
// controller can register additional handlers beyond the built-in ones.
func (s *Supervisor) KernelCalls() *kernelcalls.Table {
	return s.calls
}

func (s *Supervisor) debugf(format string, args ...interface{}) {
	s.debugLogger.Printf(format, args...)
}

// HandleTrap is the supervisor's single entry point: given the Linux pid of
// a traced process currently stopped at a trap, it classifies the trap and
// routes it to kernel-call handling, IPC handling, or fault delivery.
//
// ctx is used only for reqtrace grouping; HandleTrap does no cancellation of
// its own and always runs the trap to completion.
func (s *Supervisor) HandleTrap(ctx context.Context, pid int) (err error) {
	endpoint, ok := s.procs.PidToEndpoint(pid)
	if !ok {
		return fmt.Errorf("minixsup: HandleTrap: pid %d has no process table entry", pid)
	}

	var report reqtrace.ReportFunc
	_, report = reqtrace.StartSpan(ctx, fmt.Sprintf("trap(%v)", endpoint))
	defer func() { report(err) }()

	err = s.dispatchTrap(endpoint)
	return
}

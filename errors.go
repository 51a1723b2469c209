// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package minixsup

import (
	"fmt"

	"github.com/jacobsa/minixsup/ipc"
)

// MINIX-compatible IPC result codes. These are never Go errors: they cross
// the guest boundary as plain int32s written into rax or m_type.
const (
	OK           int32 = 0
	EINVAL       int32 = -1
	EDEADSRCDST  int32 = -2
	ECALLDENIED  int32 = -3
	ENOTREADY    int32 = -4
	EAGAIN       int32 = -5
	ESRCH        int32 = -6
	E2BIG        int32 = -7
	EBADCALL     int32 = -8 // call selector not one of the recognized IPC primitives
)

// PtraceError is the supervisor-visible error plane: a failure to read or
// write a guest's registers or memory, as opposed to a
// guest-visible IPC result. Handlers propagate this instead of continuing
// the guest, since the guest's state can no longer be trusted.
type PtraceError struct {
	Endpoint ipc.Endpoint
	Op       string
	Err      error
}

func (e *PtraceError) Error() string {
	return fmt.Sprintf("minixsup: %s on %v: %v", e.Op, e.Endpoint, e.Err)
}

func (e *PtraceError) Unwrap() error {
	return e.Err
}

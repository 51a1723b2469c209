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

package kernelcalls

import (
	"log"

	"github.com/jacobsa/minixsup/ipc"
)

// ExitHandler implements the EXIT kernel call: a process asking the kernel
// to record that it is terminating. Actually killing the host process and
// removing its process table slot is the controller's job (spawning and
// lifetime of guests isn't this package's concern); this handler only logs
// the request and acknowledges it.
func ExitHandler(caller ipc.Endpoint, msg *ipc.Message, procs ProcessTable) int32 {
	name, _, ok := procs.Lookup(caller)
	if !ok {
		return -6 // ESRCH
	}

	log.Printf("kernelcalls: %v (%s) exiting", caller, name)
	return 0 // OK
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

var selfName = filepath.Base(os.Args[0])

// InstallSignalHandler installs a handler for interrupts and SIGTERM. The
// first signal calls callback, which is expected to cancel the running session
// so that it winds down and saves what it has. A second signal terminates the
// direct children of this process (the test runner) and exits immediately.
// out is the output stream to write messages to (typically stderr).
func InstallSignalHandler(out io.Writer, callback func(sig os.Signal)) {
	ch := make(chan os.Signal, 2)
	go handleSignals(ch, out, callback, func() {
		terminateChildren(out)
		os.Exit(1)
	})
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}

// handleSignals calls callback on the first signal from ch and forceExit on
// the second.
func handleSignals(ch <-chan os.Signal, out io.Writer, callback func(sig os.Signal), forceExit func()) {
	sig := <-ch
	fmt.Fprintf(out, "\n%s: Caught %v signal; finishing up (repeat to exit now)\n", selfName, sig)
	callback(sig)

	sig = <-ch
	fmt.Fprintf(out, "\n%s: Caught %v signal again; exiting\n", selfName, sig)
	forceExit()
}

// terminateChildren terminates the processes whose parent is this process.
// The runner script starts the uploader as a grandchild, which is left to
// procreap.
func terminateChildren(out io.Writer) {
	procs, err := process.Processes()
	if err != nil {
		fmt.Fprintf(out, "Failed to terminate subprocesses: %v\n", err)
		return
	}

	selfPid := int32(os.Getpid())

	for _, proc := range procs {
		ppid, err := proc.Ppid()
		if err != nil {
			continue
		}
		if ppid == selfPid {
			if err := proc.Terminate(); err != nil {
				fmt.Fprintf(out, "Failed to terminate pid %d: %v\n", proc.Pid, err)
			}
		}
	}
}

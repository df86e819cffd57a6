//go:build unix

package main

import (
	"fmt"
	"syscall"
)

var signalsByName = map[string]syscall.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  syscall.SIGINT,
	"QUIT": syscall.SIGQUIT,
	"KILL": syscall.SIGKILL,
	"USR1": syscall.SIGUSR1,
	"USR2": syscall.SIGUSR2,
	"TERM": syscall.SIGTERM,
	"CONT": syscall.SIGCONT,
	"STOP": syscall.SIGSTOP,
}

// sendSignal delivers an OS signal to a pid. The action layer has already
// checked pid ownership.
func sendSignal(pid int, name string) error {
	sig, ok := signalsByName[name]
	if !ok {
		return fmt.Errorf("unsupported signal %q", name)
	}
	return syscall.Kill(pid, sig)
}

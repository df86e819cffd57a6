// Package action bridges user intent to the command channel: lifecycle
// commands with optimistic model updates, and pid-targeted signal delivery.
package action

import (
	"fmt"

	"github.com/bigtopdev/bigtop/internal/channel"
	"github.com/bigtopdev/bigtop/internal/protocol"
	"github.com/bigtopdev/bigtop/internal/watcher"
)

// SignalSender delivers an OS signal to a process id. The real sender lives
// at the binary's edge; the core only decides which pid to target.
type SignalSender func(pid int, signal string) error

// Actions exposes the lifecycle surface the rendering layer invokes on user
// gestures.
type Actions struct {
	model      *watcher.Model
	commander  *channel.Commander
	sendSignal SignalSender
}

// New wires the action surface.
func New(model *watcher.Model, commander *channel.Commander, sendSignal SignalSender) *Actions {
	return &Actions{model: model, commander: commander, sendSignal: sendSignal}
}

// Start submits a start command. On success the process-id set grows by a
// placeholder — the real pid is not known until the next poll refresh.
func (a *Actions) Start(name string) <-chan channel.Outcome {
	return a.submit(protocol.CmdStart, name, func() {
		a.model.AppendPlaceholderPID(name)
	})
}

// Stop submits a stop command, optimistically shrinking the process-id set
// on success.
func (a *Actions) Stop(name string) <-chan channel.Outcome {
	return a.submit(protocol.CmdStop, name, func() {
		a.model.PopPID(name)
	})
}

// Incr grows a pool watcher by one process. A watcher whose last known
// status is stopped has no process to increment, so the daemon would refuse;
// it gets a start command instead, and the status flips optimistically.
func (a *Actions) Incr(name string) <-chan channel.Outcome {
	w, ok := a.model.Get(name)
	if ok && w.Status == watcher.StatusStopped {
		return a.submit(protocol.CmdStart, name, func() {
			a.model.AppendPlaceholderPID(name)
			a.model.SetStatus(name, watcher.StatusActive)
		})
	}
	return a.submit(protocol.CmdIncr, name, func() {
		a.model.AppendPlaceholderPID(name)
	})
}

// Decr shrinks a pool watcher by one process.
func (a *Actions) Decr(name string) <-chan channel.Outcome {
	return a.submit(protocol.CmdDecr, name, func() {
		a.model.PopPID(name)
	})
}

func (a *Actions) submit(command, name string, onSuccess func()) <-chan channel.Outcome {
	sub := a.commander.Submit(command, name)
	out := make(chan channel.Outcome, 1)
	go func() {
		o := <-sub.Done()
		if o.Err == nil {
			onSuccess()
		}
		out <- o
	}()
	return out
}

// Signal delivers sig to one of the watcher's processes. The pid must be
// part of the watcher's current process-id set; signalling an arbitrary pid
// is refused.
func (a *Actions) Signal(name string, pid int, sig string) error {
	w, ok := a.model.Get(name)
	if !ok {
		return fmt.Errorf("unknown watcher %q", name)
	}
	found := false
	for _, p := range w.ProcessIDs {
		if p == pid {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("pid %d does not belong to watcher %q", pid, name)
	}
	if err := a.sendSignal(pid, sig); err != nil {
		return fmt.Errorf("send SIG%s to %d: %w", sig, pid, err)
	}
	return nil
}

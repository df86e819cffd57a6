package channel

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bigtopdev/bigtop/internal/metrics"
	"github.com/bigtopdev/bigtop/internal/protocol"
)

// Outcome is the resolution of one submitted command: a decoded reply on
// success, or an error carrying the daemon's reason on failure.
type Outcome struct {
	Reply Result
	Err   error
}

// Submission tracks one queued command until its reply resolves it. The
// outcome is delivered exactly once on Done.
type Submission struct {
	Command string
	Name    string
	done    chan Outcome
}

// Done yields the submission's single outcome. Intended for event-driven
// callers that cannot block (the dashboard wires it into its update loop).
func (s *Submission) Done() <-chan Outcome {
	return s.done
}

// Wait blocks for the outcome. Intended for one-shot CLI callers.
func (s *Submission) Wait(ctx context.Context) (Result, error) {
	select {
	case o := <-s.done:
		return o.Reply, o.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Submission) resolve(o Outcome) {
	s.done <- o
}

// ReplyError is a daemon-reported command failure. Reason is the daemon's
// text, capitalized and sentence-terminated, surfaced verbatim to the user.
type ReplyError struct {
	Reason string
}

func (e *ReplyError) Error() string {
	return e.Reason
}

// Commander issues user-triggered lifecycle commands (start, stop, incr,
// decr). Any number of callers may submit concurrently; a single worker
// serializes delivery, so the wire sees one request/reply pair at a time, in
// submission order.
type Commander struct {
	wire    Wire
	timeout time.Duration
	queue   chan *Submission

	mu    sync.Mutex
	fatal error

	closeOnce sync.Once
}

// NewCommander wraps wire in a command channel and starts its worker.
// timeout <= 0 selects DefaultTimeout.
func NewCommander(wire Wire, timeout time.Duration) *Commander {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Commander{
		wire:    wire,
		timeout: timeout,
		queue:   make(chan *Submission, 64),
	}
	go c.worker()
	return c
}

// Submit queues one lifecycle command. The returned Submission resolves when
// the daemon replies, the request times out, or the channel dies.
func (c *Commander) Submit(command, name string) *Submission {
	sub := &Submission{Command: command, Name: name, done: make(chan Outcome, 1)}

	// The queue send happens under the lock so Close cannot slip in between
	// the fatal check and the send.
	c.mu.Lock()
	if c.fatal != nil {
		err := c.fatal
		c.mu.Unlock()
		sub.resolve(Outcome{Err: err})
		return sub
	}
	c.queue <- sub
	c.mu.Unlock()
	return sub
}

// Close shuts the channel down. Queued submissions resolve with ErrClosed;
// an in-flight request is abandoned with the socket.
func (c *Commander) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.fatal == nil {
			c.fatal = ErrClosed
		}
		close(c.queue)
		c.mu.Unlock()
		_ = c.wire.Close()
	})
}

func (c *Commander) poison(err error) {
	c.mu.Lock()
	if c.fatal == nil {
		c.fatal = err
	}
	c.mu.Unlock()
}

func (c *Commander) fatalErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatal
}

// worker drains the queue one submission at a time. Writing the next request
// only after the prior reply resolved is what guarantees in-order,
// one-at-a-time pairing on the wire.
func (c *Commander) worker() {
	for sub := range c.queue {
		if err := c.fatalErr(); err != nil {
			sub.resolve(Outcome{Err: err})
			continue
		}
		sub.resolve(c.deliver(sub))
	}
}

func (c *Commander) deliver(sub *Submission) Outcome {
	id, data, err := protocol.Encode(sub.Command, protocol.CommandProperties(sub.Command, sub.Name))
	if err != nil {
		return Outcome{Err: err}
	}

	reply, err := roundTrip(context.Background(), c.wire, c.timeout, id, data)
	switch {
	case err == nil:
	case err == ErrTimeout:
		metrics.Commands.WithLabelValues(sub.Command, metrics.OutcomeTimeout).Inc()
		return Outcome{Err: fmt.Errorf("%s %s: %w", sub.Command, sub.Name, ErrTimeout)}
	case err == ErrProtocolDesync:
		c.poison(ErrProtocolDesync)
		metrics.Commands.WithLabelValues(sub.Command, metrics.OutcomeDesync).Inc()
		return Outcome{Err: ErrProtocolDesync}
	default:
		wrapped := fmt.Errorf("command channel: %w", err)
		c.poison(wrapped)
		metrics.Commands.WithLabelValues(sub.Command, metrics.OutcomeFailed).Inc()
		return Outcome{Err: wrapped}
	}

	if reply.Status != protocol.StatusOK {
		metrics.Commands.WithLabelValues(sub.Command, metrics.OutcomeFailed).Inc()
		return Outcome{Err: &ReplyError{Reason: sentence(reply.Reason())}}
	}
	metrics.Commands.WithLabelValues(sub.Command, metrics.OutcomeOK).Inc()
	return Outcome{Reply: Result(reply.Payload)}
}

// sentence capitalizes the daemon's reason text and terminates it.
func sentence(reason string) string {
	if reason == "" {
		return "Command failed."
	}
	r, size := utf8.DecodeRuneInString(reason)
	s := string(unicode.ToUpper(r)) + reason[size:]
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}

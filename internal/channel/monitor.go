package channel

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bigtopdev/bigtop/internal/metrics"
	"github.com/bigtopdev/bigtop/internal/protocol"
)

// Monitor issues passive monitoring queries (list, options, stats, status)
// where failure is expected and tolerable: a non-"ok" reply yields an empty
// Result, never an error, and the next poll cycle self-heals.
//
// At most one request may be outstanding at any time. The reconciliation
// loop is the sole caller, so the constraint holds by construction; the
// in-flight guard exists because a second concurrent caller would corrupt
// correlation silently, and that must fail loud instead.
type Monitor struct {
	wire     Wire
	timeout  time.Duration
	inFlight atomic.Bool
	fatal    error
}

// NewMonitor wraps wire in a monitoring channel. timeout <= 0 selects
// DefaultTimeout.
func NewMonitor(wire Wire, timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Monitor{wire: wire, timeout: timeout}
}

// Request issues one monitoring query and blocks for its reply.
//
// On success the decoded reply payload is returned. A well-formed failure
// reply (non-"ok" status) returns an empty Result and a nil error. A timeout
// returns ErrTimeout. A mismatched reply id or a transport failure poisons
// the channel: the error is returned now and on every later call.
func (m *Monitor) Request(ctx context.Context, command, name string) (Result, error) {
	if !m.inFlight.CompareAndSwap(false, true) {
		panic("channel: concurrent request on single-flight monitoring channel")
	}
	defer m.inFlight.Store(false)

	if m.fatal != nil {
		return nil, m.fatal
	}

	id, data, err := protocol.Encode(command, protocol.NameProperties(name))
	if err != nil {
		return nil, err
	}

	reply, err := roundTrip(ctx, m.wire, m.timeout, id, data)
	switch {
	case err == nil:
	case err == ErrTimeout:
		metrics.MonitorRequests.WithLabelValues(command, metrics.OutcomeTimeout).Inc()
		return nil, ErrTimeout
	case err == ErrProtocolDesync:
		m.fatal = ErrProtocolDesync
		metrics.MonitorRequests.WithLabelValues(command, metrics.OutcomeDesync).Inc()
		return nil, ErrProtocolDesync
	default:
		m.fatal = fmt.Errorf("monitoring channel: %w", err)
		metrics.MonitorRequests.WithLabelValues(command, metrics.OutcomeFailed).Inc()
		return nil, m.fatal
	}

	// The status command's status field is the payload itself, so any value
	// is a success there.
	if command != protocol.CmdStatus && reply.Status != protocol.StatusOK {
		metrics.MonitorRequests.WithLabelValues(command, metrics.OutcomeFailed).Inc()
		return Result{}, nil
	}
	metrics.MonitorRequests.WithLabelValues(command, metrics.OutcomeOK).Inc()
	return Result(reply.Payload), nil
}

// Status fetches a watcher's runtime status string ("stopped", "active", or
// an opaque daemon-reported value). Empty on a failed query.
func (m *Monitor) Status(ctx context.Context, name string) (string, error) {
	res, err := m.Request(ctx, protocol.CmdStatus, name)
	if err != nil {
		return "", err
	}
	s, _ := res["status"].(string)
	return s, nil
}

// Close tears down the underlying wire. An in-flight request is abandoned.
func (m *Monitor) Close() error {
	return m.wire.Close()
}

// Package channel layers the two request/reply disciplines of the control
// endpoint on top of the framed transport: a single-flight monitoring
// channel for passive polling and a serialized command channel for
// user-triggered lifecycle commands.
package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/bigtopdev/bigtop/internal/protocol"
)

// Wire is the request half of the transport: write one framed payload, read
// one framed payload back. Satisfied by *transport.Conn.
type Wire interface {
	Send([]byte) error
	Recv() ([]byte, error)
	SetDeadline(t time.Time) error
	Close() error
}

// Result is the decoded payload of a monitoring or command reply.
type Result map[string]any

var (
	// ErrProtocolDesync means a reply id did not match the only outstanding
	// request. Correlation state is no longer trustworthy; the owning channel
	// refuses all further traffic.
	ErrProtocolDesync = errors.New("reply id does not match outstanding request")

	// ErrTimeout means the daemon did not reply within the request timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrClosed means the channel was shut down.
	ErrClosed = errors.New("channel closed")
)

// DefaultTimeout bounds a single request/reply round trip.
const DefaultTimeout = 5 * time.Second

// roundTrip writes one encoded request and reads back its reply, enforcing
// the correlation id. The caller owns serialization on the wire.
//
// A timeout is returned as ErrTimeout and does not poison the wire here; if
// the late reply eventually lands, the next round trip sees a foreign id and
// fails loud with ErrProtocolDesync.
func roundTrip(ctx context.Context, w Wire, timeout time.Duration, id string, data []byte) (protocol.Reply, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Reply{}, err
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := w.SetDeadline(deadline); err != nil {
		return protocol.Reply{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := w.Send(data); err != nil {
		return protocol.Reply{}, fmt.Errorf("send request: %w", err)
	}
	raw, err := w.Recv()
	if err != nil {
		if isTimeout(err) {
			return protocol.Reply{}, ErrTimeout
		}
		return protocol.Reply{}, fmt.Errorf("read reply: %w", err)
	}
	reply, err := protocol.Decode(raw)
	if err != nil {
		return protocol.Reply{}, err
	}
	if reply.ID != id {
		return protocol.Reply{}, ErrProtocolDesync
	}
	return reply, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Package transport moves framed messages over the daemon's local TCP
// endpoints: a request socket for the control endpoint and a subscribe
// socket for the stats stream.
//
// A message is a multipart frame: a 4-byte big-endian part count, then each
// part as a 4-byte big-endian length followed by its bytes. Control messages
// have one part; stream messages have two (topic, payload).
package transport

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// DefaultControlAddr is the daemon's control request endpoint.
const DefaultControlAddr = "127.0.0.1:5555"

// DefaultStreamAddr is the daemon's stats publish endpoint.
const DefaultStreamAddr = "127.0.0.1:5557"

// maxPartSize bounds a single frame part. Anything larger means the stream
// is desynchronized, not a legitimately huge reply.
const maxPartSize = 16 << 20

const dialTimeout = 5 * time.Second

// WriteMessage writes one multipart message to w.
func WriteMessage(w io.Writer, parts ...[]byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(parts))); err != nil {
		return fmt.Errorf("write part count: %w", err)
	}
	for _, part := range parts {
		if err := binary.Write(w, binary.BigEndian, uint32(len(part))); err != nil {
			return fmt.Errorf("write part length: %w", err)
		}
		if _, err := w.Write(part); err != nil {
			return fmt.Errorf("write part: %w", err)
		}
	}
	return nil
}

// ReadMessage reads one multipart message from r.
func ReadMessage(r io.Reader) ([][]byte, error) {
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}
	if count == 0 || count > 16 {
		return nil, fmt.Errorf("read message: implausible part count %d", count)
	}
	parts := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		var size uint32
		if err := binary.Read(r, binary.BigEndian, &size); err != nil {
			return nil, fmt.Errorf("read part length: %w", err)
		}
		if size > maxPartSize {
			return nil, fmt.Errorf("read message: part of %d bytes exceeds limit", size)
		}
		part := make([]byte, size)
		if _, err := io.ReadFull(r, part); err != nil {
			return nil, fmt.Errorf("read part: %w", err)
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// Conn is a request socket to the control endpoint. It is not safe for
// concurrent use; the owning channel serializes access.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects a request socket to the control endpoint.
func Dial(addr string) (*Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to control endpoint at %s: %w", addr, err)
	}
	return NewConn(conn), nil
}

// NewConn wraps an established connection. Split out from Dial so tests can
// run over net.Pipe.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn, r: bufio.NewReader(conn)}
}

// Send writes one single-part message.
func (c *Conn) Send(payload []byte) error {
	return WriteMessage(c.conn, payload)
}

// Recv reads the next message and returns its first part.
func (c *Conn) Recv() ([]byte, error) {
	parts, err := ReadMessage(c.r)
	if err != nil {
		return nil, err
	}
	return parts[0], nil
}

// SetDeadline bounds the next Send/Recv pair.
func (c *Conn) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// Close tears the socket down. An in-flight request is abandoned.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// StreamMsg is one published stats message.
type StreamMsg struct {
	Topic   string
	Payload []byte
}

// SubConn is a subscribe socket to the stats stream.
type SubConn struct {
	conn net.Conn
	r    *bufio.Reader
}

// DialStream connects a subscribe socket to the stats endpoint.
func DialStream(addr string) (*SubConn, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to stats endpoint at %s: %w", addr, err)
	}
	return NewSubConn(conn), nil
}

// NewSubConn wraps an established connection for subscribing.
func NewSubConn(conn net.Conn) *SubConn {
	return &SubConn{conn: conn, r: bufio.NewReader(conn)}
}

// Recv blocks for the next published message. Stream messages carry a topic
// part and a payload part.
func (s *SubConn) Recv() (StreamMsg, error) {
	parts, err := ReadMessage(s.r)
	if err != nil {
		return StreamMsg{}, err
	}
	if len(parts) != 2 {
		return StreamMsg{}, fmt.Errorf("stream message has %d parts, want 2", len(parts))
	}
	return StreamMsg{Topic: string(parts[0]), Payload: parts[1]}, nil
}

// Close unsubscribes by tearing the socket down. Unblocks a pending Recv.
func (s *SubConn) Close() error {
	return s.conn.Close()
}

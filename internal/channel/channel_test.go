package channel

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"

	"github.com/bigtopdev/bigtop/internal/protocol"
	"github.com/bigtopdev/bigtop/internal/transport"
)

// startFakeDaemon answers framed control requests on conn. handler returns
// the raw reply bytes for one decoded request, or nil to stay silent.
func startFakeDaemon(t *testing.T, conn net.Conn, handler func(protocol.Request) []byte) {
	t.Helper()
	go func() {
		r := bufio.NewReader(conn)
		for {
			parts, err := transport.ReadMessage(r)
			if err != nil {
				return
			}
			var req protocol.Request
			if err := json.Unmarshal(parts[0], &req); err != nil {
				return
			}
			reply := handler(req)
			if reply == nil {
				continue
			}
			if err := transport.WriteMessage(conn, reply); err != nil {
				return
			}
		}
	}()
}

// reply builds raw reply bytes with the given id, status and extra fields.
func reply(id, status string, extra map[string]any) []byte {
	m := map[string]any{"id": id, "status": status}
	for k, v := range extra {
		m[k] = v
	}
	b, _ := json.Marshal(m)
	return b
}

// pipeWire returns a Wire for the client side of a fresh pipe plus the
// daemon side of it.
func pipeWire() (*transport.Conn, net.Conn) {
	client, server := net.Pipe()
	return transport.NewConn(client), server
}

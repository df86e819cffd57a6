// Package protocol implements the request/reply envelope spoken on the
// daemon's control endpoint, including correlation-id generation and the
// irregular reply shape of the "status" command.
package protocol

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Command names accepted by the daemon's control endpoint.
const (
	CmdList    = "list"
	CmdOptions = "options"
	CmdStats   = "stats"
	CmdStatus  = "status"
	CmdStart   = "start"
	CmdStop    = "stop"
	CmdIncr    = "incr"
	CmdDecr    = "decr"
)

// StatusOK is the reply status of a successful request. Any other value is a
// domain failure, except for the "status" command, where the field carries
// the watcher's runtime status instead.
const StatusOK = "ok"

// Request is one control-endpoint query.
type Request struct {
	ID         string         `json:"id"`
	Command    string         `json:"command"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Reply is a decoded control-endpoint answer. Payload holds the full reply
// object, so callers can reach fields like "watchers", "options", "info" or
// "reason" without the envelope committing to a schema per command.
type Reply struct {
	ID      string
	Status  string
	Payload map[string]any
}

// NewID returns a fresh correlation id: a 128-bit random token rendered as
// hex. Ids are never reused within a process.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Encode builds a request envelope for command with the given properties
// (nil for none) and returns its correlation id alongside the wire bytes.
func Encode(command string, properties map[string]any) (string, []byte, error) {
	req := Request{ID: NewID(), Command: command, Properties: properties}
	data, err := json.Marshal(req)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s request: %w", command, err)
	}
	return req.ID, data, nil
}

// Decode parses a reply envelope. The status field is returned as-is: "ok",
// an error status, or — for the "status" command — the watcher's runtime
// status doubling as the payload.
func Decode(data []byte) (Reply, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	id, _ := payload["id"].(string)
	if id == "" {
		return Reply{}, fmt.Errorf("decode reply: missing id")
	}
	status, _ := payload["status"].(string)
	return Reply{ID: id, Status: status, Payload: payload}, nil
}

// NameProperties returns the properties payload for a monitoring query
// against a single watcher, or nil when name is empty (the "list" command).
func NameProperties(name string) map[string]any {
	if name == "" {
		return nil
	}
	return map[string]any{"name": name}
}

// CommandProperties returns the properties payload for a lifecycle command.
// incr/decr adjust exactly one process per call; start/stop match the
// watcher name as a glob, mirroring the daemon's CLI defaults.
func CommandProperties(command, name string) map[string]any {
	props := map[string]any{"name": name}
	switch command {
	case CmdIncr, CmdDecr:
		props["waiting"] = false
		props["nb"] = 1
	case CmdStart, CmdStop:
		props["waiting"] = false
		props["match"] = "glob"
	}
	return props
}

// Reason extracts the daemon-supplied failure reason from an error reply,
// falling back to the status string when no reason was given.
func (r Reply) Reason() string {
	if reason, ok := r.Payload["reason"].(string); ok && reason != "" {
		return reason
	}
	return r.Status
}

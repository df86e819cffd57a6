package protocol

import (
	"encoding/json"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	id, data, err := Encode(CmdStats, NameProperties("web"))
	if err != nil {
		t.Fatal(err)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		t.Fatal(err)
	}
	if req.ID != id {
		t.Errorf("ID = %q, want %q", req.ID, id)
	}
	if req.Command != CmdStats {
		t.Errorf("Command = %q, want %q", req.Command, CmdStats)
	}
	if req.Properties["name"] != "web" {
		t.Errorf("Properties[name] = %v, want web", req.Properties["name"])
	}
}

func TestEncodeListHasNoProperties(t *testing.T) {
	_, data, err := Encode(CmdList, NameProperties(""))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["properties"]; ok {
		t.Error("list request carried a properties field")
	}
}

func TestIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if len(id) != 32 {
			t.Fatalf("id %q is not a 32-char hex token", id)
		}
		if seen[id] {
			t.Fatalf("id %q generated twice", id)
		}
		seen[id] = true
	}
}

func TestDecodeOKReply(t *testing.T) {
	reply, err := Decode([]byte(`{"id":"abc","status":"ok","watchers":["web","worker"]}`))
	if err != nil {
		t.Fatal(err)
	}
	if reply.ID != "abc" || reply.Status != "ok" {
		t.Errorf("got id=%q status=%q", reply.ID, reply.Status)
	}
	watchers, ok := reply.Payload["watchers"].([]any)
	if !ok || len(watchers) != 2 {
		t.Errorf("watchers = %v, want two entries", reply.Payload["watchers"])
	}
}

func TestDecodeBareStatusReply(t *testing.T) {
	// The "status" command answers with the watcher status in the status
	// field itself rather than a uniform ok envelope.
	reply, err := Decode([]byte(`{"id":"abc","status":"active","time":1.0}`))
	if err != nil {
		t.Fatal(err)
	}
	if reply.Status != "active" {
		t.Errorf("Status = %q, want active", reply.Status)
	}
}

func TestDecodeMissingID(t *testing.T) {
	if _, err := Decode([]byte(`{"status":"ok"}`)); err == nil {
		t.Error("expected error for reply without id")
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed reply")
	}
}

func TestCommandProperties(t *testing.T) {
	props := CommandProperties(CmdIncr, "worker")
	if props["nb"] != 1 || props["waiting"] != false {
		t.Errorf("incr props = %v, want waiting:false nb:1", props)
	}
	if _, ok := props["match"]; ok {
		t.Error("incr props must not carry match")
	}

	props = CommandProperties(CmdStop, "web")
	if props["match"] != "glob" || props["waiting"] != false {
		t.Errorf("stop props = %v, want waiting:false match:glob", props)
	}
	if _, ok := props["nb"]; ok {
		t.Error("stop props must not carry nb")
	}
}

func TestReplyReason(t *testing.T) {
	reply, err := Decode([]byte(`{"id":"x","status":"error","reason":"program web not found"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := reply.Reason(); got != "program web not found" {
		t.Errorf("Reason() = %q", got)
	}

	reply, err = Decode([]byte(`{"id":"x","status":"error"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := reply.Reason(); got != "error" {
		t.Errorf("Reason() fallback = %q, want error", got)
	}
}

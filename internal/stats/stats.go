// Package stats ingests the daemon's push stream and keeps per-watcher
// aggregate metrics current without any request/reply traffic.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bigtopdev/bigtop/internal/metrics"
	"github.com/bigtopdev/bigtop/internal/transport"
	"github.com/bigtopdev/bigtop/internal/watcher"
)

// TopicPrefix is the stream category carrying watcher-level aggregates.
// Sub-topics below it (stat.<watcher>.<pid>) are per-process detail and are
// ignored here.
const TopicPrefix = "stat"

// sentinel the daemon publishes when a ratio is not available.
const absentValue = "N/A"

// Stream yields published stats messages. Satisfied by *transport.SubConn.
type Stream interface {
	Recv() (transport.StreamMsg, error)
	Close() error
}

// Subscriber decodes stream messages and applies them to the model.
type Subscriber struct {
	model  *watcher.Model
	stream Stream
}

// New wires a subscriber to the model.
func New(model *watcher.Model, stream Stream) *Subscriber {
	return &Subscriber{model: model, stream: stream}
}

// Run consumes the stream until ctx is cancelled or the stream dies. The
// stream has no ordering relationship to the poll loop; both paths write the
// same underlying truth and last write wins.
func (s *Subscriber) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.stream.Close() // unblock Recv
		case <-stop:
		}
	}()

	for {
		msg, err := s.stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stats stream: %w", err)
		}
		s.handle(msg.Topic, msg.Payload)
	}
}

// handle applies one published message. Reports whether the model changed.
func (s *Subscriber) handle(topic string, payload []byte) bool {
	prefix, name, ok := strings.Cut(topic, ".")
	if !ok || prefix != TopicPrefix || strings.Contains(name, ".") {
		metrics.StreamMessages.WithLabelValues(metrics.OutcomeIgnored).Inc()
		return false
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		metrics.StreamMessages.WithLabelValues(metrics.OutcomeDropped).Inc()
		return false
	}
	rawPids, ok := fields["pid"]
	if !ok {
		metrics.StreamMessages.WithLabelValues(metrics.OutcomeIgnored).Inc()
		return false
	}

	applied := s.model.ApplyStream(name, pidList(rawPids), ratio(fields["cpu"]), ratio(fields["mem"]))
	if !applied {
		// The stream can reference watchers discovery has not seen yet.
		metrics.StreamMessages.WithLabelValues(metrics.OutcomeDropped).Inc()
		return false
	}
	metrics.StreamMessages.WithLabelValues(metrics.OutcomeApplied).Inc()
	return true
}

// pidList coerces the daemon's pid array, which may mix numbers and numeric
// strings, into ints.
func pidList(v any) []int {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	pids := make([]int, 0, len(items))
	for _, item := range items {
		switch p := item.(type) {
		case float64:
			pids = append(pids, int(p))
		case string:
			if n, err := strconv.Atoi(p); err == nil {
				pids = append(pids, n)
			}
		}
	}
	return pids
}

// ratio maps a daemon-reported percentage to a ratio in [0,1]. The absent
// sentinel maps to 0.
func ratio(v any) float64 {
	switch p := v.(type) {
	case float64:
		return p / 100.0
	case string:
		if p == absentValue {
			return 0
		}
		if f, err := strconv.ParseFloat(p, 64); err == nil {
			return f / 100.0
		}
	}
	return 0
}

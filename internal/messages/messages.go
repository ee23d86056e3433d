// Package messages accumulates user-facing feedback over the life of one
// request. Handlers and services append as they work; the response envelope
// drains the sink at the end. The sink travels on the request context, so
// there is no shared mutable state between requests.
package messages

import (
	"context"
	"fmt"
)

// Level classifies a message for the client UI.
type Level string

const (
	Error          Level = "ERROR"
	Warning        Level = "WARNING"
	Info           Level = "INFO"
	Success        Level = "SUCCESS"
	Recommendation Level = "RECOMMENDATION"
)

// Message is one user-facing notice produced while handling a request.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Sink collects messages for a single request. It is not safe for concurrent
// use; a request handler owns its sink.
type Sink struct {
	msgs []Message
}

func (s *Sink) Add(level Level, format string, args ...interface{}) {
	s.msgs = append(s.msgs, Message{Level: level, Text: fmt.Sprintf(format, args...)})
}

func (s *Sink) Error(format string, args ...interface{}) {
	s.Add(Error, format, args...)
}

func (s *Sink) Warning(format string, args ...interface{}) {
	s.Add(Warning, format, args...)
}

func (s *Sink) Info(format string, args ...interface{}) {
	s.Add(Info, format, args...)
}

func (s *Sink) Success(format string, args ...interface{}) {
	s.Add(Success, format, args...)
}

// ErrorCount reports how many error-level messages have accumulated. A
// nonzero count marks the whole request as failed in the envelope.
func (s *Sink) ErrorCount() int {
	n := 0
	for _, m := range s.msgs {
		if m.Level == Error {
			n++
		}
	}
	return n
}

// Drain returns the accumulated messages and resets the sink. Never nil, so
// the envelope serializes an empty array rather than null.
func (s *Sink) Drain() []Message {
	out := s.msgs
	s.msgs = nil
	if out == nil {
		out = []Message{}
	}
	return out
}

type sinkKey struct{}

// NewContext attaches a fresh sink to ctx and returns both.
func NewContext(ctx context.Context) (context.Context, *Sink) {
	sink := &Sink{}
	return context.WithValue(ctx, sinkKey{}, sink), sink
}

// FromContext returns the request's sink. Code running outside a request
// (jobs, tests that don't care) gets a throwaway sink so callers never need
// a nil check.
func FromContext(ctx context.Context) *Sink {
	if sink, ok := ctx.Value(sinkKey{}).(*Sink); ok {
		return sink
	}
	return &Sink{}
}

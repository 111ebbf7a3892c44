//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package transcript implements the optional tap points described for
// Cicada's choke-points: suite share/reveal entry-exit and communicator
// Send/Recv. Field arithmetic has no tap points of its own. A Recorder
// is disabled by default (Noop) and costs one interface call per tap
// when off; callers opt in with New and read back recorded Events, or
// render them with Render.
package transcript

import (
	"io"
	"sync"
	"time"

	"github.com/markkurossi/tabulate"
	"github.com/opentracing/opentracing-go"
)

// Event is one recorded entry-exit pair at a tap point.
type Event struct {
	Category string
	Op       string
	Operands string
	Result   string
	Start    time.Time
	Duration time.Duration
}

// Recorder is the interface every tap point calls through. Enter
// returns a handle that the matching Exit call consumes; callers that
// never call Exit simply leak nothing, since Noop's handle is nil and
// a real handle holds only a span and a start time.
type Recorder interface {
	Enter(category, op, operands string) Handle
	Exit(h Handle, result string)
	Events() []Event
	Render(w io.Writer) error
}

// Handle is the value threaded from Enter to the matching Exit.
type Handle interface{}

// Noop returns a Recorder whose Enter/Exit are single no-op calls and
// whose Events/Render report nothing recorded; this is the default
// every suite and communicator is constructed with.
func Noop() Recorder { return noopRecorder{} }

type noopRecorder struct{}

func (noopRecorder) Enter(string, string, string) Handle { return nil }
func (noopRecorder) Exit(Handle, string)                 {}
func (noopRecorder) Events() []Event                     { return nil }
func (noopRecorder) Render(io.Writer) error              { return nil }

// New returns a Recorder that opens one opentracing span per Enter/Exit
// pair (against tracer, or opentracing.GlobalTracer() if tracer is
// nil) and additionally buffers every event for later Render.
func New(tracer opentracing.Tracer) Recorder {
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}
	return &tracingRecorder{tracer: tracer}
}

type tracingRecorder struct {
	tracer opentracing.Tracer

	mu     sync.Mutex
	events []Event
}

type handle struct {
	span     opentracing.Span
	category string
	op       string
	operands string
	start    time.Time
}

func (r *tracingRecorder) Enter(category, op, operands string) Handle {
	span := r.tracer.StartSpan(category + "." + op)
	span.SetTag("operands", operands)
	return &handle{
		span:     span,
		category: category,
		op:       op,
		operands: operands,
		start:    time.Now(),
	}
}

func (r *tracingRecorder) Exit(h Handle, result string) {
	hh, ok := h.(*handle)
	if !ok || hh == nil {
		return
	}
	hh.span.SetTag("result", result)
	hh.span.Finish()

	r.mu.Lock()
	r.events = append(r.events, Event{
		Category: hh.category,
		Op:       hh.op,
		Operands: hh.operands,
		Result:   result,
		Start:    hh.start,
		Duration: time.Since(hh.start),
	})
	r.mu.Unlock()
}

func (r *tracingRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Render writes the buffered events as a human-readable table;
// formatting itself is caller-controlled only in the sense that
// callers choose when and where to call Render, not the column layout.
func (r *tracingRecorder) Render(w io.Writer) error {
	events := r.Events()

	tab := tabulate.New(tabulate.Unicode)
	tab.Header("Category")
	tab.Header("Op")
	tab.Header("Operands")
	tab.Header("Result")
	tab.Header("Duration")

	for _, ev := range events {
		row := tab.Row()
		row.Column(ev.Category)
		row.Column(ev.Op)
		row.Column(ev.Operands)
		row.Column(ev.Result)
		row.Column(ev.Duration.String())
	}
	return tab.Print(w)
}

// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// Package sim provides a GPIO simulation, for testing users of sysgpio
// without hardware.
//
// A Sim is a Provider whose lines exist only in memory.  Tests drive the
// electrical level of a line with SetLevel and observe it with Level, while
// the code under test works the logical values and edge events through the
// usual Registry and Line operations.
package sim

import (
	"sync"
	"time"

	"github.com/teeejw/sysgpio"
)

// Sim is an in-memory Provider.
//
// Line levels are electrical; any inversion requested on a pin is applied
// on top, as the kernel would.  Levels persist across provision and
// release, defaulting to low.
type Sim struct {
	// mu covers the fields below it
	mu sync.Mutex

	lines map[int]*simLine

	start time.Time
}

// the electrical state of a single line, shared by the pins open on it.
type simLine struct {
	level       int
	provisioned bool
	pins        []*Pin
}

// New creates a new Sim.
func New() *Sim {
	return &Sim{
		lines: map[int]*simLine{},
		start: time.Now(),
	}
}

// OpenPin opens a pin on the line, creating the line on first use.
func (s *Sim) OpenPin(num int) (sysgpio.Pin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ln := s.line(num)
	ln.provisioned = true
	p := Pin{
		s:       s,
		num:     num,
		pending: make(chan sysgpio.Event, 1),
		cancel:  make(chan struct{}, 1),
	}
	ln.pins = append(ln.pins, &p)
	return &p, nil
}

// ReleasePin marks the line deprovisioned.
//
// The electrical level is retained.
func (s *Sim) ReleasePin(num int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.line(num).provisioned = false
	return nil
}

// SetLevel drives the electrical level of a line, triggering edge events on
// any pins watching it.
func (s *Sim) SetLevel(num, level int) {
	if level != 0 {
		level = 1
	}
	s.setLevel(num, level)
}

// Toggle inverts the electrical level of a line.
func (s *Sim) Toggle(num int) {
	s.mu.Lock()
	level := s.line(num).level ^ 1
	s.mu.Unlock()
	s.setLevel(num, level)
}

// Level returns the electrical level of a line.
func (s *Sim) Level(num int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.line(num).level
}

// Provisioned returns true while the line has been opened and not yet
// released.
func (s *Sim) Provisioned(num int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.line(num).provisioned
}

// Requested returns true while any pin is open on the line.
func (s *Sim) Requested(num int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.line(num).pins) > 0
}

// line returns the state for a line number, creating it on first use.
// Requires s.mu.
func (s *Sim) line(num int) *simLine {
	ln := s.lines[num]
	if ln == nil {
		ln = &simLine{}
		s.lines[num] = ln
	}
	return ln
}

func (s *Sim) setLevel(num, level int) {
	s.mu.Lock()
	ln := s.line(num)
	old := ln.level
	ln.level = level
	pins := append([]*Pin(nil), ln.pins...)
	ts := time.Since(s.start)
	s.mu.Unlock()
	if old == level {
		return
	}
	for _, p := range pins {
		p.deliver(old, level, ts)
	}
}

func (s *Sim) removePin(num int, p *Pin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ln := s.line(num)
	for i, lp := range ln.pins {
		if lp == p {
			ln.pins = append(ln.pins[:i], ln.pins[i+1:]...)
			return
		}
	}
}

// Pin is a single open pin on a simulated line.
type Pin struct {
	s   *Sim
	num int

	// mu covers the fields below it
	mu        sync.Mutex
	dir       sysgpio.Direction
	edge      sysgpio.Edge
	activeLow bool
	closed    bool

	// at most one pending edge event, newest kept
	pending chan sysgpio.Event

	// at most one pending cancel token
	cancel chan struct{}
}

// SetDirection makes the pin an input, or drives it as an output.
func (p *Pin) SetDirection(dir sysgpio.Direction) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return sysgpio.ErrClosed
	}
	p.dir = dir
	activeLow := p.activeLow
	p.mu.Unlock()
	switch dir {
	case sysgpio.DirectionOutputLow:
		p.s.setLevel(p.num, electrical(0, activeLow))
	case sysgpio.DirectionOutputHigh:
		p.s.setLevel(p.num, electrical(1, activeLow))
	}
	return nil
}

// SetEdge selects the edges delivered to waits on the pin.
func (p *Pin) SetEdge(edge sysgpio.Edge) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return sysgpio.ErrClosed
	}
	p.edge = edge
	// arming discards any stale pending event, as setting the sysfs edge
	// attribute consumes the stale notification.
	select {
	case <-p.pending:
	default:
	}
	return nil
}

// SetActiveLow sets or clears inversion of values and edge sense.
func (p *Pin) SetActiveLow(invert bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return sysgpio.ErrClosed
	}
	p.activeLow = invert
	return nil
}

// Value returns the logical value of the pin.
func (p *Pin) Value() (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, sysgpio.ErrClosed
	}
	activeLow := p.activeLow
	p.mu.Unlock()
	return logical(p.s.Level(p.num), activeLow), nil
}

// SetValue sets the logical value of the pin, triggering edge events on any
// other pins watching the line.
func (p *Pin) SetValue(value int) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return sysgpio.ErrClosed
	}
	activeLow := p.activeLow
	p.mu.Unlock()
	p.s.setLevel(p.num, electrical(value, activeLow))
	return nil
}

// WaitEdge blocks until an edge is delivered to the pin, the timeout
// expires, or the wait is cancelled.
//
// A zero timeout polls for an already pending edge; a negative timeout
// blocks indefinitely.  A cancel issued before the wait began cancels it
// on entry.
func (p *Pin) WaitEdge(timeout time.Duration) (sysgpio.Event, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return sysgpio.Event{}, sysgpio.ErrClosed
	}
	p.mu.Unlock()
	select {
	case <-p.cancel:
		return sysgpio.Event{}, p.cancelErr()
	default:
	}
	if timeout == 0 {
		select {
		case evt := <-p.pending:
			return evt, nil
		default:
			return sysgpio.Event{}, sysgpio.ErrWaitTimeout
		}
	}
	var tC <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		tC = t.C
	}
	select {
	case evt := <-p.pending:
		return evt, nil
	case <-p.cancel:
		return sysgpio.Event{}, p.cancelErr()
	case <-tC:
		return sysgpio.Event{}, sysgpio.ErrWaitTimeout
	}
}

func (p *Pin) cancelErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return sysgpio.ErrClosed
	}
	return sysgpio.ErrCancelled
}

// Cancel unblocks a pending WaitEdge.
//
// A cancel with no wait in flight remains pending and cancels the next
// wait, unless discarded by Drain first.
func (p *Pin) Cancel() {
	select {
	case p.cancel <- struct{}{}:
	default:
	}
}

// Drain discards any pending cancel.
func (p *Pin) Drain() {
	select {
	case <-p.cancel:
	default:
	}
}

// Close releases the pin.
func (p *Pin) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return sysgpio.ErrClosed
	}
	p.closed = true
	p.mu.Unlock()
	p.Cancel()
	p.s.removePin(p.num, p)
	return nil
}

// deliver offers an electrical transition to the pin, queueing an event if
// the pin has a matching edge armed.  The newest event wins the single
// pending slot.
func (p *Pin) deliver(old, level int, ts time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.dir != sysgpio.DirectionInput || p.edge == sysgpio.EdgeNone {
		return
	}
	lold := logical(old, p.activeLow)
	lnew := logical(level, p.activeLow)
	var t sysgpio.EventType
	switch {
	case lnew == 1 && lold == 0 && p.edge&sysgpio.EdgeRising != 0:
		t = sysgpio.EventRisingEdge
	case lnew == 0 && lold == 1 && p.edge&sysgpio.EdgeFalling != 0:
		t = sysgpio.EventFallingEdge
	default:
		return
	}
	evt := sysgpio.Event{Number: p.num, Type: t, Timestamp: ts}
	for {
		select {
		case p.pending <- evt:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

func logical(level int, activeLow bool) int {
	if activeLow {
		return level ^ 1
	}
	return level
}

func electrical(value int, activeLow bool) int {
	if value != 0 {
		value = 1
	}
	if activeLow {
		return value ^ 1
	}
	return value
}

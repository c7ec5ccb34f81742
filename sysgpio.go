// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// Package sysgpio is a library for accessing GPIO lines on Linux platforms
// using the GPIO sysfs class.
//
// Lines are requested from a Registry, which resolves symbolic aliases to
// line numbers and arbitrates ownership:
//
//	reg, _ := sysgpio.NewRegistry(sysgpio.WithAliases(map[string]int{"USER_BUTTON": 148}))
//	num, _ := reg.FindLine("USER_BUTTON")
//	button, _ := reg.RequestLine(num, sysgpio.WithRisingEdge)
//	led, _ := reg.RequestLine(20, sysgpio.AsOutput(0))
//	v := 0
//	for i := 0; i < 6; i++ {
//		if _, err := button.WaitForEdge(-1); err != nil {
//			break
//		}
//		v ^= 1
//		led.SetValue(v)
//	}
//	reg.Close()
//
// Edges can be awaited synchronously, as above, or delivered to a handler
// goroutine registered with Line.Watch.
package sysgpio

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Registry resolves line identifiers and hands out requested lines.
//
// A Registry arbitrates ownership of the line numbers requested through it.
// It does not know about lines claimed by other processes, or by other
// Registries, beyond what the provider reports when a line is opened.
type Registry struct {
	// mu covers the fields below it
	mu sync.Mutex

	// alias name to line number
	aliases map[string]int

	// requested lines, by line number
	claims map[int]*claim

	prov Provider

	closed bool
}

// a claim holds the lines open on a single line number.
type claim struct {
	// set if the claim was made with AsShared, in which case further
	// shared requests join it
	shared bool

	lines []*Line
}

// NewRegistry creates a new Registry.
//
// The registry defaults to the sysfs provider, so creation fails with
// sysfs.ErrNotSupported on kernels without the GPIO sysfs class.
func NewRegistry(options ...RegistryOption) (*Registry, error) {
	ro := registryOptions{
		aliases: map[string]int{},
	}
	for _, option := range options {
		option.applyRegistryOption(&ro)
	}
	if ro.prov == nil {
		p, err := newSysfsProvider()
		if err != nil {
			return nil, err
		}
		ro.prov = p
	}
	r := Registry{
		aliases: ro.aliases,
		claims:  map[int]*claim{},
		prov:    ro.prov,
	}
	return &r, nil
}

// FindLine resolves a line identifier to a line number.
//
// An identifier beginning with a digit or sign must parse fully as a
// decimal line number.  Any other identifier is looked up in the alias
// table, returning ErrLineNotFound if absent.
func (r *Registry) FindLine(id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrClosed
	}
	if len(id) == 0 {
		return 0, ErrLineNotFound
	}
	c := id[0]
	if c == '-' || c == '+' || (c >= '0' && c <= '9') {
		num, err := strconv.Atoi(id)
		if err != nil {
			return 0, err
		}
		if num < 0 {
			return 0, ErrInvalidNumber
		}
		return num, nil
	}
	num, ok := r.aliases[id]
	if !ok {
		return 0, ErrLineNotFound
	}
	return num, nil
}

// RequestLine requests ownership of a single line from the registry.
//
// The line defaults to an input, active high, with no edge detection, and
// exclusively owned.  An exclusive request for a line already held through
// this registry returns ErrBusy, as does any request for a line held
// exclusively.  Requests made with AsShared join an existing shared claim.
//
// The returned Line must be closed to release the request.
func (r *Registry) RequestLine(num int, options ...ReqOption) (*Line, error) {
	if num < 0 {
		return nil, ErrInvalidNumber
	}
	lro := reqOptions{}
	for _, option := range options {
		option.applyReqOption(&lro)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	c := r.claims[num]
	if c != nil && !(c.shared && lro.cfg.Shared) {
		return nil, ErrBusy
	}
	pin, err := r.prov.OpenPin(num)
	if err != nil {
		return nil, err
	}
	l := Line{
		num: num,
		reg: r,
		pin: pin,
		cfg: lro.cfg,
	}
	if err = l.setup(); err != nil {
		pin.Close()
		if c == nil {
			r.prov.ReleasePin(num)
		}
		return nil, err
	}
	if c == nil {
		c = &claim{shared: lro.cfg.Shared}
		r.claims[num] = c
	}
	c.lines = append(c.lines, &l)
	return &l, nil
}

// Close releases all lines requested through the registry and invalidates
// it.
//
// Blocking waits on those lines return ErrClosed, and watches are stopped
// and joined before Close returns.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	ll := []*Line(nil)
	for _, c := range r.claims {
		ll = append(ll, c.lines...)
	}
	r.mu.Unlock()
	for _, l := range ll {
		l.Close()
	}
	return nil
}

// release removes a closed line from its claim, dropping the provider pin
// once the last line on the number is gone.
func (r *Registry) release(num int, l *Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.claims[num]
	if c == nil {
		return
	}
	for i, cl := range c.lines {
		if cl == l {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			break
		}
	}
	if len(c.lines) == 0 {
		delete(r.claims, num)
		r.prov.ReleasePin(num)
	}
}

// Line represents a requested line.
type Line struct {
	num int
	reg *Registry
	pin Pin

	// mu covers the fields below it
	mu  sync.Mutex
	cfg LineConfig

	state waitState

	// watcher for the active Watch, if any
	w *watcher

	// closed on return from an in-flight blocking wait, if any
	waitDone chan struct{}

	closed bool
}

type waitState int

const (
	waitIdle waitState = iota
	waitBlocking
	waitAsync
)

// applies the requested configuration to a freshly opened pin.
//
// The inversion is applied first so that the initial level of an output
// line is driven in logical terms.
func (l *Line) setup() error {
	if err := l.pin.SetActiveLow(l.cfg.ActiveLow); err != nil {
		return err
	}
	if err := l.pin.SetDirection(l.cfg.Direction); err != nil {
		return err
	}
	if l.cfg.Direction == DirectionInput && l.cfg.Edge != EdgeNone {
		if err := l.pin.SetEdge(l.cfg.Edge); err != nil {
			return err
		}
	}
	return nil
}

// Number returns the global line number of the line.
func (l *Line) Number() int {
	return l.num
}

// Config returns the current configuration of the line.
func (l *Line) Config() LineConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// Value returns the logical value of the line.
func (l *Line) Value() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	return l.pin.Value()
}

// SetValue sets the logical value of the line.
//
// Only valid for lines requested as outputs; setting the value of an input
// returns ErrPermissionDenied.
func (l *Line) SetValue(value int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.cfg.Direction == DirectionInput {
		return ErrPermissionDenied
	}
	return l.pin.SetValue(value)
}

// Reconfigure updates the configuration of the line without releasing and
// re-requesting it.
//
// The active level of an already driven output is reinterpreted in place;
// the line is not re-driven.  Reconfiguring a line with a wait or watch in
// progress returns ErrWaitInProgress.
func (l *Line) Reconfigure(options ...ConfigOption) error {
	if len(options) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.state != waitIdle {
		return ErrWaitInProgress
	}
	cfg := l.cfg
	for _, option := range options {
		option.applyConfigOption(&cfg)
	}
	if cfg.ActiveLow != l.cfg.ActiveLow {
		if err := l.pin.SetActiveLow(cfg.ActiveLow); err != nil {
			return err
		}
	}
	if cfg.Direction != l.cfg.Direction {
		if err := l.pin.SetDirection(cfg.Direction); err != nil {
			return err
		}
	}
	if cfg.Direction == DirectionInput && cfg.Edge != l.cfg.Edge {
		if err := l.pin.SetEdge(cfg.Edge); err != nil {
			return err
		}
	}
	l.cfg = cfg
	return nil
}

// WaitForEdge blocks until an edge is detected on the line, the timeout
// expires, or the line is closed.
//
// A timeout of zero polls for an already pending edge without blocking,
// while a negative timeout blocks indefinitely.  The kernel keeps at most
// one edge notification pending per line, so edges occurring between waits
// collapse into the single event reported by the next wait.
//
// The line must be an input with edge detection enabled, or unix.EINVAL is
// returned.  Only one wait or watch may be active on a line at a time;
// others return ErrWaitInProgress.
func (l *Line) WaitForEdge(timeout time.Duration) (Event, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return Event{}, ErrClosed
	}
	if l.state != waitIdle {
		l.mu.Unlock()
		return Event{}, ErrWaitInProgress
	}
	if l.cfg.Direction != DirectionInput || l.cfg.Edge == EdgeNone {
		l.mu.Unlock()
		return Event{}, unix.EINVAL
	}
	done := make(chan struct{})
	l.state = waitBlocking
	l.waitDone = done
	pin := l.pin
	l.mu.Unlock()

	evt, err := pin.WaitEdge(timeout)

	l.mu.Lock()
	l.state = waitIdle
	l.waitDone = nil
	closed := l.closed
	l.mu.Unlock()
	close(done)
	if err == ErrCancelled && closed {
		err = ErrClosed
	}
	return evt, err
}

// Watch starts monitoring the line, delivering edge events to the handler.
//
// The handler is called from a dedicated goroutine, one event at a time.
// As with WaitForEdge, the line must be an input with edge detection
// enabled, and only one wait or watch may be active on a line at a time.
func (l *Line) Watch(handler EventHandler) error {
	if handler == nil {
		return unix.EINVAL
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if l.state != waitIdle {
		return ErrWaitInProgress
	}
	if l.cfg.Direction != DirectionInput || l.cfg.Edge == EdgeNone {
		return unix.EINVAL
	}
	l.w = newWatcher(l.pin, handler)
	l.state = waitAsync
	return nil
}

// Unwatch stops monitoring the line.
//
// Once Unwatch returns the handler will not be called again.  Unwatch on a
// line that is not being watched is a no-op.  Unwatch must not be called
// from the handler itself.
func (l *Line) Unwatch() {
	l.mu.Lock()
	if l.state != waitAsync {
		l.mu.Unlock()
		return
	}
	w := l.w
	l.mu.Unlock()
	if w == nil {
		// a concurrent Close owns the join
		return
	}
	// join outside the lock as the handler may be using the line
	w.close()
	l.mu.Lock()
	if l.w == w {
		l.w = nil
		l.state = waitIdle
	}
	l.mu.Unlock()
}

// Close releases the line request.
//
// A blocking wait in flight returns ErrClosed, and any watch is stopped and
// joined before Close returns.  Close must not be called from a watch
// handler.  All other methods on a closed line return ErrClosed.
func (l *Line) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.closed = true
	w := l.w
	l.w = nil
	waitDone := l.waitDone
	l.mu.Unlock()
	if w != nil {
		w.close()
	}
	if waitDone != nil {
		l.pin.Cancel()
		<-waitDone
	}
	l.pin.Close()
	l.reg.release(l.num, l)
	return nil
}

// LineConfig is the requested configuration of a line.
type LineConfig struct {
	Direction Direction
	Edge      Edge

	// ActiveLow inverts the values read and written through the line,
	// and the sense of its edge triggers.
	ActiveLow bool

	// Shared allows the request to coexist with other shared requests
	// for the same line, and leaves the line provisioned on release if
	// it was provisioned before the request.
	Shared bool
}

// Direction indicates the direction of a line.
type Direction int

const (
	// DirectionInput indicates the line is an input.
	DirectionInput Direction = iota

	// DirectionOutputLow indicates the line is an output driven
	// initially to logical low.
	DirectionOutputLow

	// DirectionOutputHigh indicates the line is an output driven
	// initially to logical high.
	DirectionOutputHigh
)

// Edge indicates the edges on which a line triggers events.
type Edge int

const (
	// EdgeNone indicates no edge detection.
	EdgeNone Edge = 0

	// EdgeRising indicates events are triggered on transitions to
	// logical high.
	EdgeRising Edge = 1

	// EdgeFalling indicates events are triggered on transitions to
	// logical low.
	EdgeFalling Edge = 2

	// EdgeBoth indicates events are triggered on all transitions.
	EdgeBoth Edge = EdgeRising | EdgeFalling
)

// EventType indicates the type of state change detected on a line.
type EventType int

const (
	_ EventType = iota

	// EventRisingEdge indicates an inactive to active transition.
	EventRisingEdge

	// EventFallingEdge indicates an active to inactive transition.
	EventFallingEdge
)

// Event represents a detected edge on a line.
type Event struct {
	// The line number on which the event was detected.
	Number int

	// The type of event detected.
	Type EventType

	// Timestamp is the best estimate of the time the edge was detected,
	// from CLOCK_MONOTONIC.  It is intended for measuring intervals
	// between events, not as an absolute time.
	Timestamp time.Duration
}

// EventHandler delivers edge events to a Watch.
type EventHandler func(Event)

var (
	// ErrBusy indicates the line is already requested and cannot be
	// requested again with the given options.
	ErrBusy = errors.New("line is busy")

	// ErrCancelled indicates a pin wait was unblocked by Cancel.
	ErrCancelled = errors.New("wait cancelled")

	// ErrClosed indicates the line or registry has already been closed.
	ErrClosed = errors.New("already closed")

	// ErrInvalidNumber indicates a line number is negative.
	ErrInvalidNumber = errors.New("invalid line number")

	// ErrLineNotFound indicates an alias is not present in the registry
	// alias table.
	ErrLineNotFound = errors.New("line not found")

	// ErrPermissionDenied indicates the operation is not permitted by
	// the line configuration, such as writing to an input.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrWaitInProgress indicates a wait or watch is already active on
	// the line.
	ErrWaitInProgress = errors.New("wait already in progress")

	// ErrWaitTimeout indicates a wait expired before an edge was
	// detected.
	ErrWaitTimeout = errors.New("wait timed out")
)

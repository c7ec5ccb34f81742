// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package sysgpio

import (
	"sync"
	"time"

	"github.com/teeejw/sysgpio/sysfs"
)

// Provider opens the pins behind the lines a registry hands out.
//
// The default provider drives lines through the GPIO sysfs class; the sim,
// periphpin and rpiopin packages provide alternatives.
type Provider interface {
	// OpenPin provisions the line, if required, and opens a pin for it.
	//
	// OpenPin is called once per requested line, so a line shared by
	// several requests is opened several times.
	OpenPin(num int) (Pin, error)

	// ReleasePin deprovisions the line if the provider provisioned it.
	//
	// ReleasePin is called once, after the last pin open on the line has
	// been closed.
	ReleasePin(num int) error
}

// Pin is a single provisioned line, as exposed by a Provider.
//
// The registry serializes configuration and value accesses, and guarantees
// at most one WaitEdge is in flight per pin, with Close only called once
// any waiter has returned.  Cancel may be called at any time.
type Pin interface {
	// SetDirection makes the pin an input, or an output driven to the
	// initial value the Direction encodes.
	SetDirection(dir Direction) error

	// SetEdge selects the edges reported by WaitEdge.
	SetEdge(edge Edge) error

	// SetActiveLow sets or clears inversion of values and edge sense.
	SetActiveLow(invert bool) error

	// Value returns the logical value of the pin.
	Value() (int, error)

	// SetValue sets the logical value of the pin.
	SetValue(value int) error

	// WaitEdge blocks until an edge is detected, the timeout expires
	// (ErrWaitTimeout), the wait is cancelled (ErrCancelled), or the pin
	// is closed (ErrClosed).  A zero timeout polls; a negative timeout
	// blocks indefinitely.  At most one edge is held pending between
	// waits.
	WaitEdge(timeout time.Duration) (Event, error)

	// Cancel unblocks an in-flight WaitEdge.  A cancel with no wait in
	// flight remains pending and cancels the next wait on entry, so a
	// wait cannot miss a cancel racing its start.
	Cancel()

	// Drain discards a pending cancel that no wait consumed.  The
	// registry drains after joining a stopped watch, never with a wait
	// in flight.
	Drain()

	// Close releases the resources held by the pin.
	Close() error
}

// sysfsProvider is the default provider, driving lines through the GPIO
// sysfs class.
//
// It remembers which lines it exported so that lines exported by others,
// and shared via AsShared, are left in place on release.
type sysfsProvider struct {
	mu       sync.Mutex
	exported map[int]bool
}

func newSysfsProvider() (*sysfsProvider, error) {
	if err := sysfs.Available(); err != nil {
		return nil, err
	}
	p := sysfsProvider{exported: map[int]bool{}}
	return &p, nil
}

func (p *sysfsProvider) OpenPin(num int) (Pin, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	exported := false
	if !sysfs.IsExported(num) {
		if err := sysfs.Export(num); err != nil {
			return nil, err
		}
		p.exported[num] = true
		exported = true
	}
	sp, err := sysfs.OpenPin(num)
	if err != nil {
		// roll back only an export made by this call; an earlier open
		// may still hold the line
		if exported {
			sysfs.Unexport(num)
			delete(p.exported, num)
		}
		return nil, err
	}
	return &sysfsPin{pin: sp}, nil
}

func (p *sysfsProvider) ReleasePin(num int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.exported[num] {
		return nil
	}
	delete(p.exported, num)
	return sysfs.Unexport(num)
}

// sysfsPin adapts a sysfs.Pin to the Pin interface.
type sysfsPin struct {
	pin *sysfs.Pin
}

var sysfsDirections = map[Direction]sysfs.Direction{
	DirectionInput:      sysfs.DirectionIn,
	DirectionOutputLow:  sysfs.DirectionLow,
	DirectionOutputHigh: sysfs.DirectionHigh,
}

var sysfsEdges = map[Edge]sysfs.Edge{
	EdgeNone:    sysfs.EdgeNone,
	EdgeRising:  sysfs.EdgeRising,
	EdgeFalling: sysfs.EdgeFalling,
	EdgeBoth:    sysfs.EdgeBoth,
}

func (p *sysfsPin) SetDirection(dir Direction) error {
	return p.mapErr(p.pin.SetDirection(sysfsDirections[dir]))
}

func (p *sysfsPin) SetEdge(edge Edge) error {
	return p.mapErr(p.pin.SetEdge(sysfsEdges[edge]))
}

func (p *sysfsPin) SetActiveLow(invert bool) error {
	return p.mapErr(p.pin.SetActiveLow(invert))
}

func (p *sysfsPin) Value() (int, error) {
	v, err := p.pin.Value()
	return v, p.mapErr(err)
}

func (p *sysfsPin) SetValue(value int) error {
	return p.mapErr(p.pin.SetValue(value))
}

func (p *sysfsPin) WaitEdge(timeout time.Duration) (Event, error) {
	evt, err := p.pin.WaitEdge(timeout)
	if err != nil {
		return Event{}, p.mapErr(err)
	}
	t := EventFallingEdge
	if evt.Rising {
		t = EventRisingEdge
	}
	return Event{Number: evt.Number, Type: t, Timestamp: evt.Timestamp}, nil
}

func (p *sysfsPin) Cancel() {
	p.pin.Cancel()
}

func (p *sysfsPin) Drain() {
	p.pin.Drain()
}

func (p *sysfsPin) Close() error {
	return p.mapErr(p.pin.Close())
}

func (p *sysfsPin) mapErr(err error) error {
	switch err {
	case sysfs.ErrClosed:
		return ErrClosed
	case sysfs.ErrCancelled:
		return ErrCancelled
	case sysfs.ErrTimeout:
		return ErrWaitTimeout
	}
	return err
}

// SPDX-FileCopyrightText: 2024 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// Package rpiopin provides a sysgpio Provider driving the Broadcom GPIO
// registers directly through go-rpio.
//
// Edge detection uses the BCM283x event detect status register, which holds
// a detected edge until read, so edges are retained between waits just as
// the native provider retains them.  Waits poll the register rather than
// sleeping in the kernel, so this provider trades a little idle CPU for
// not requiring the sysfs class at all.  Raspberry Pi only.
package rpiopin

import (
	"sync"
	"time"

	rpio "github.com/stianeikeland/go-rpio/v4"

	"github.com/teeejw/sysgpio"
)

// Provider opens pins through the memory mapped GPIO registers.
type Provider struct {
	base  int
	start time.Time
}

// Option defines the interface required to provide a Provider option.
type Option interface {
	applyOption(*Provider)
}

// BaseOption sets the global number of the first line on the chip.
type BaseOption int

// WithBase indicates the global number of the first line on the chip, which
// is subtracted from line numbers to recover the BCM number.
func WithBase(base int) BaseOption {
	return BaseOption(base)
}

func (o BaseOption) applyOption(p *Provider) {
	p.base = int(o)
}

// New maps the GPIO registers and returns a Provider.
func New(options ...Option) (*Provider, error) {
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	p := Provider{start: time.Now()}
	for _, option := range options {
		option.applyOption(&p)
	}
	return &p, nil
}

// Close unmaps the GPIO registers.
//
// All pins opened through the provider must be closed first.
func (p *Provider) Close() error {
	return rpio.Close()
}

// OpenPin opens the line as a memory mapped pin.
func (p *Provider) OpenPin(num int) (sysgpio.Pin, error) {
	bcm := num - p.base
	if bcm < 0 || bcm > 53 {
		return nil, sysgpio.ErrInvalidNumber
	}
	pp := Pin{
		num:    num,
		pin:    rpio.Pin(bcm),
		start:  p.start,
		cancel: make(chan struct{}, 1),
	}
	return &pp, nil
}

// ReleasePin is a no-op; the registers stay mapped until the provider is
// closed.
func (p *Provider) ReleasePin(num int) error {
	return nil
}

// Pin is a single line driven through the GPIO registers.
//
// The active low inversion is emulated in the pin by inverting values and
// the sense of edge triggers.
type Pin struct {
	num   int
	pin   rpio.Pin
	start time.Time

	// mu covers the fields below it
	mu        sync.Mutex
	dir       sysgpio.Direction
	edge      sysgpio.Edge
	activeLow bool
	closed    bool

	// at most one pending cancel token
	cancel chan struct{}
}

// how often a waiter samples the event detect status register.
const pollPeriod = time.Millisecond

func (p *Pin) SetDirection(dir sysgpio.Direction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return sysgpio.ErrClosed
	}
	p.dir = dir
	switch dir {
	case sysgpio.DirectionOutputLow:
		p.pin.Output()
		p.pin.Write(p.level(0))
	case sysgpio.DirectionOutputHigh:
		p.pin.Output()
		p.pin.Write(p.level(1))
	default:
		p.pin.Input()
		p.arm()
	}
	return nil
}

func (p *Pin) SetEdge(edge sysgpio.Edge) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return sysgpio.ErrClosed
	}
	p.edge = edge
	if p.dir == sysgpio.DirectionInput {
		p.arm()
	}
	return nil
}

func (p *Pin) SetActiveLow(invert bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return sysgpio.ErrClosed
	}
	p.activeLow = invert
	if p.dir == sysgpio.DirectionInput {
		p.arm()
	}
	return nil
}

// arm applies the edge configuration and clears any stale detected edge.
// Requires p.mu.
func (p *Pin) arm() {
	e := p.edge
	if p.activeLow {
		switch e {
		case sysgpio.EdgeRising:
			e = sysgpio.EdgeFalling
		case sysgpio.EdgeFalling:
			e = sysgpio.EdgeRising
		}
	}
	switch e {
	case sysgpio.EdgeRising:
		p.pin.Detect(rpio.RiseEdge)
	case sysgpio.EdgeFalling:
		p.pin.Detect(rpio.FallEdge)
	case sysgpio.EdgeBoth:
		p.pin.Detect(rpio.AnyEdge)
	default:
		p.pin.Detect(rpio.NoEdge)
		return
	}
	p.pin.EdgeDetected()
}

// level maps a logical value to the electrical level. Requires p.mu.
func (p *Pin) level(value int) rpio.State {
	if value != 0 {
		value = 1
	}
	if p.activeLow {
		value ^= 1
	}
	return rpio.State(value)
}

func (p *Pin) Value() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, sysgpio.ErrClosed
	}
	v := int(p.pin.Read())
	if p.activeLow {
		v ^= 1
	}
	return v, nil
}

func (p *Pin) SetValue(value int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return sysgpio.ErrClosed
	}
	p.pin.Write(p.level(value))
	return nil
}

// WaitEdge blocks until an edge is latched in the event detect status
// register, the timeout expires, or the wait is cancelled.
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
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	tick := time.NewTicker(pollPeriod)
	defer tick.Stop()
	for {
		if p.pin.EdgeDetected() {
			v, err := p.Value()
			if err != nil {
				return sysgpio.Event{}, err
			}
			t := sysgpio.EventFallingEdge
			if v != 0 {
				t = sysgpio.EventRisingEdge
			}
			evt := sysgpio.Event{
				Number:    p.num,
				Type:      t,
				Timestamp: time.Since(p.start),
			}
			return evt, nil
		}
		if timeout >= 0 && !time.Now().Before(deadline) {
			return sysgpio.Event{}, sysgpio.ErrWaitTimeout
		}
		select {
		case <-p.cancel:
			return sysgpio.Event{}, p.cancelErr()
		case <-tick.C:
		}
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

func (p *Pin) Cancel() {
	select {
	case p.cancel <- struct{}{}:
	default:
	}
}

func (p *Pin) Drain() {
	select {
	case <-p.cancel:
	default:
	}
}

func (p *Pin) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return sysgpio.ErrClosed
	}
	p.closed = true
	p.pin.Detect(rpio.NoEdge)
	p.mu.Unlock()
	p.Cancel()
	return nil
}

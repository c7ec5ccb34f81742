// SPDX-FileCopyrightText: 2024 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// Package periphpin provides a sysgpio Provider backed by the periph.io
// host drivers.
//
// Lines are resolved through the periph gpioreg registry by their BCM
// names, so the provider is useful on boards periph knows, such as the
// Raspberry Pi.  Registry line numbers are global sysfs numbers; WithBase
// tells the provider the base of the chip so it can recover the BCM number.
package periphpin

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/teeejw/sysgpio"
)

// Provider opens pins through the periph.io pin registry.
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
// is subtracted from line numbers to recover the name periph knows the pin
// by.
func WithBase(base int) BaseOption {
	return BaseOption(base)
}

func (o BaseOption) applyOption(p *Provider) {
	p.base = int(o)
}

// New initializes the periph host drivers and returns a Provider.
func New(options ...Option) (*Provider, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	p := Provider{start: time.Now()}
	for _, option := range options {
		option.applyOption(&p)
	}
	return &p, nil
}

// OpenPin resolves the line to a periph pin.
func (p *Provider) OpenPin(num int) (sysgpio.Pin, error) {
	pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", num-p.base))
	if pin == nil {
		return nil, sysgpio.ErrLineNotFound
	}
	pp := Pin{
		num:    num,
		pin:    pin,
		start:  p.start,
		cancel: make(chan struct{}, 1),
	}
	return &pp, nil
}

// ReleasePin is a no-op; periph pins are process wide and are not
// deprovisioned.
func (p *Provider) ReleasePin(num int) error {
	return nil
}

// Pin is a single line driven through a periph PinIO.
//
// The active low inversion is emulated in the pin, as periph has no native
// notion of it, by inverting values and the sense of edge triggers.
type Pin struct {
	num   int
	pin   gpio.PinIO
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

// how often a waiter checks for cancellation, and so the worst case
// latency of Cancel and Close.
const cancelPoll = 100 * time.Millisecond

func (p *Pin) SetDirection(dir sysgpio.Direction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return sysgpio.ErrClosed
	}
	p.dir = dir
	switch dir {
	case sysgpio.DirectionOutputLow:
		return p.pin.Out(p.level(0))
	case sysgpio.DirectionOutputHigh:
		return p.pin.Out(p.level(1))
	}
	return p.armInput()
}

func (p *Pin) SetEdge(edge sysgpio.Edge) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return sysgpio.ErrClosed
	}
	p.edge = edge
	if p.dir != sysgpio.DirectionInput {
		return nil
	}
	return p.armInput()
}

func (p *Pin) SetActiveLow(invert bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return sysgpio.ErrClosed
	}
	p.activeLow = invert
	if p.dir == sysgpio.DirectionInput {
		return p.armInput()
	}
	return nil
}

// armInput applies the input configuration to the periph pin.
// Requires p.mu.
func (p *Pin) armInput() error {
	return p.pin.In(gpio.PullNoChange, p.wireEdge())
}

// wireEdge maps the logical edge config to the electrical edge periph
// detects.  Requires p.mu.
func (p *Pin) wireEdge() gpio.Edge {
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
		return gpio.RisingEdge
	case sysgpio.EdgeFalling:
		return gpio.FallingEdge
	case sysgpio.EdgeBoth:
		return gpio.BothEdges
	}
	return gpio.NoEdge
}

// level maps a logical value to the electrical level. Requires p.mu.
func (p *Pin) level(value int) gpio.Level {
	if p.activeLow {
		value ^= 1
	}
	return value != 0
}

func (p *Pin) Value() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, sysgpio.ErrClosed
	}
	v := 0
	if p.pin.Read() == gpio.High {
		v = 1
	}
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
	return p.pin.Out(p.level(value))
}

// WaitEdge blocks until the periph driver detects an edge, the timeout
// expires, or the wait is cancelled.
//
// Whether an edge occurring before the wait is reported immediately is up
// to the underlying periph driver; the sysfs driver retains one pending
// edge, as the native provider does.
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
	for {
		slice := cancelPoll
		if timeout == 0 {
			slice = 0
		} else if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return sysgpio.Event{}, sysgpio.ErrWaitTimeout
			}
			if remaining < slice {
				slice = remaining
			}
		}
		if p.pin.WaitForEdge(slice) {
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
		select {
		case <-p.cancel:
			return sysgpio.Event{}, p.cancelErr()
		default:
		}
		if timeout == 0 {
			return sysgpio.Event{}, sysgpio.ErrWaitTimeout
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
	p.mu.Unlock()
	p.Cancel()
	return p.pin.Halt()
}

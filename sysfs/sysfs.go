// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// Package sysfs provides the Linux GPIO sysfs class definitions for sysgpio.
//
// Lines are exported and unexported through the class control files, and an
// exported line is manipulated through the attribute files in its gpioN
// directory.  Edge notifications are delivered by the kernel as exceptional
// conditions on the value file, which a Pin multiplexes with a cancellation
// eventfd on an epoll set.
package sysfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Base is the root of the GPIO sysfs class.
var Base = "/sys/class/gpio"

// Direction indicates the direction written to a line direction attribute.
//
// DirectionLow and DirectionHigh set the line to output and drive it to the
// corresponding logical level in one step.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionLow  Direction = "low"
	DirectionHigh Direction = "high"
)

// Edge indicates the trigger condition written to a line edge attribute.
type Edge string

const (
	EdgeNone    Edge = "none"
	EdgeRising  Edge = "rising"
	EdgeFalling Edge = "falling"
	EdgeBoth    Edge = "both"
)

var (
	// ErrClosed indicates the pin has been closed.
	ErrClosed = errors.New("already closed")

	// ErrCancelled indicates a wait was terminated by Cancel.
	ErrCancelled = errors.New("wait cancelled")

	// ErrNotSupported indicates the kernel does not expose the GPIO sysfs
	// class, either because it predates it or was built without
	// CONFIG_GPIO_SYSFS.
	ErrNotSupported = errors.New("GPIO sysfs interface not available")

	// ErrTimeout indicates a wait timed out before an edge was detected.
	ErrTimeout = errors.New("wait timed out")
)

// Event represents a detected edge on an exported line.
type Event struct {
	// The line number on which the edge was detected.
	Number int

	// Rising is true if the value read after the edge was high.
	Rising bool

	// Timestamp is CLOCK_MONOTONIC at the time the event was read.
	Timestamp time.Duration
}

// Available returns nil if the GPIO sysfs class is present.
func Available() error {
	if _, err := os.Stat(filepath.Join(Base, "export")); err != nil {
		return ErrNotSupported
	}
	return nil
}

// Export asks the kernel to expose the control files for a line.
//
// Exporting a line already exported, or a line that does not exist, returns
// an error from the kernel, typically unix.EBUSY or unix.EINVAL.
func Export(num int) error {
	return writeAttr(filepath.Join(Base, "export"), strconv.Itoa(num))
}

// Unexport removes the control files for a line.
func Unexport(num int) error {
	return writeAttr(filepath.Join(Base, "unexport"), strconv.Itoa(num))
}

// IsExported returns true if the line currently has control files exposed.
func IsExported(num int) bool {
	_, err := os.Stat(lineDir(num))
	return err == nil
}

func lineDir(num int) string {
	return filepath.Join(Base, fmt.Sprintf("gpio%d", num))
}

func writeAttr(path, val string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	_, err = f.WriteString(val)
	f.Close()
	return err
}

// Pin represents an exported line.
//
// The Pin methods are not adequately synchronized for arbitrary concurrent
// use; the caller must ensure that Close is not called while a WaitEdge is
// in flight.  Cancel may be called from any goroutine.
type Pin struct {
	num int

	// value is held open for the life of the pin, for reads, writes and
	// edge polling.
	value *os.File

	epfd int

	// eventfd to unblock a waiter
	cancelfd int

	mu     sync.Mutex
	closed bool
}

// OpenPin opens the attribute files for an exported line.
//
// The line must already be exported.
func OpenPin(num int) (p *Pin, err error) {
	var value *os.File
	value, err = os.OpenFile(filepath.Join(lineDir(num), "value"), os.O_RDWR, 0600)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			value.Close()
		}
	}()
	var epfd int
	epfd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			unix.Close(epfd)
		}
	}()
	var cancelfd int
	cancelfd, err = unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			unix.Close(cancelfd)
		}
	}()
	epv := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(cancelfd)}
	err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, cancelfd, &epv)
	if err != nil {
		return
	}
	// sysfs signals edges as exceptional conditions on the value file.
	epv = unix.EpollEvent{Events: unix.EPOLLPRI | unix.EPOLLERR, Fd: int32(value.Fd())}
	err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, int(value.Fd()), &epv)
	if err != nil {
		return
	}
	p = &Pin{
		num:      num,
		value:    value,
		epfd:     epfd,
		cancelfd: cancelfd,
	}
	return
}

// Number returns the global line number of the pin.
func (p *Pin) Number() int {
	return p.num
}

// SetDirection writes the direction attribute of the line.
func (p *Pin) SetDirection(dir Direction) error {
	return p.writeLineAttr("direction", string(dir))
}

// SetEdge writes the edge attribute of the line.
//
// The kernel asserts a notification on the value file as soon as an edge is
// armed, so the stale state is consumed here and waits only report edges
// occurring after SetEdge returns.
func (p *Pin) SetEdge(edge Edge) error {
	if err := p.writeLineAttr("edge", string(edge)); err != nil {
		return err
	}
	if edge != EdgeNone {
		var buf [1]byte
		p.value.ReadAt(buf[:], 0)
	}
	return nil
}

// SetActiveLow sets or clears the active_low attribute of the line.
//
// While set, values read and written through the pin, and the sense of edge
// triggers, are inverted.
func (p *Pin) SetActiveLow(invert bool) error {
	v := "0"
	if invert {
		v = "1"
	}
	return p.writeLineAttr("active_low", v)
}

// Value returns the logical value of the line.
func (p *Pin) Value() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	return p.readValue()
}

// SetValue sets the logical value of the line.
//
// Writing the value of a line set to input is rejected by the kernel.
func (p *Pin) SetValue(v int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	b := []byte{'0'}
	if v != 0 {
		b[0] = '1'
	}
	_, err := p.value.Write(b)
	return err
}

// WaitEdge blocks until an edge is detected on the line, the timeout
// expires, or the wait is cancelled.
//
// A timeout of zero polls for an already pending edge, while a negative
// timeout blocks indefinitely.  An edge that occurred between arming the
// edge trigger and entering WaitEdge is reported immediately; the kernel
// keeps at most one notification pending, so any number of edges between
// waits collapse into a single event.  A cancel issued before the wait
// began cancels it on entry.
func (p *Pin) WaitEdge(timeout time.Duration) (Event, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Event{}, ErrClosed
	}
	p.mu.Unlock()
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	epollEvents := make([]unix.EpollEvent, 2)
	for {
		msec := -1
		if timeout >= 0 {
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			msec = int((remaining + time.Millisecond - 1) / time.Millisecond)
		}
		n, err := unix.EpollWait(p.epfd, epollEvents[:], msec)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EBADF || err == unix.EINVAL {
				return Event{}, ErrClosed
			}
			return Event{}, err
		}
		if n == 0 {
			if timeout >= 0 && !time.Now().Before(deadline) {
				return Event{}, ErrTimeout
			}
			continue
		}
		for i := 0; i < n; i++ {
			if epollEvents[i].Fd != int32(p.cancelfd) {
				continue
			}
			p.drainCancel()
			p.mu.Lock()
			closed := p.closed
			p.mu.Unlock()
			if closed {
				return Event{}, ErrClosed
			}
			return Event{}, ErrCancelled
		}
		// reading the value rearms the notification
		v, err := p.readValue()
		if err != nil {
			return Event{}, err
		}
		evt := Event{
			Number:    p.num,
			Rising:    v != 0,
			Timestamp: monotime(),
		}
		return evt, nil
	}
}

// Cancel unblocks a pending WaitEdge, which returns ErrCancelled.
//
// A cancel with no wait in flight remains pending and cancels the next
// wait, unless discarded by Drain first.  A cancel after Close is
// discarded.
func (p *Pin) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	unix.Write(p.cancelfd, []byte{1, 0, 0, 0, 0, 0, 0, 0})
}

// Drain discards any pending cancel.
//
// Drain must not be called while a wait is in flight.
func (p *Pin) Drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.drainCancel()
}

// Close releases the resources held by the pin.
//
// Close does not unexport the line.
func (p *Pin) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	p.mu.Unlock()
	unix.Close(p.epfd)
	unix.Close(p.cancelfd)
	return p.value.Close()
}

func (p *Pin) readValue() (int, error) {
	var buf [1]byte
	_, err := p.value.ReadAt(buf[:], 0)
	if err != nil {
		return 0, err
	}
	if buf[0] == '1' {
		return 1, nil
	}
	return 0, nil
}

func (p *Pin) writeLineAttr(attr, val string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return writeAttr(filepath.Join(lineDir(p.num), attr), val)
}

func (p *Pin) drainCancel() {
	var buf [8]byte
	unix.Read(p.cancelfd, buf[:])
}

func monotime() time.Duration {
	var ts unix.Timespec
	unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	return time.Duration(ts.Nano())
}

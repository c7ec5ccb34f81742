// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

package sim_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeejw/sysgpio"
	"github.com/teeejw/sysgpio/sim"
)

func TestOpenPin(t *testing.T) {
	s := sim.New()

	p, err := s.OpenPin(3)
	require.Nil(t, err)
	require.NotNil(t, p)
	assert.True(t, s.Provisioned(3))
	assert.True(t, s.Requested(3))

	// input by default, reading the line level
	v, err := p.Value()
	assert.Nil(t, err)
	assert.Equal(t, 0, v)
	s.SetLevel(3, 1)
	v, err = p.Value()
	assert.Nil(t, err)
	assert.Equal(t, 1, v)

	err = p.Close()
	assert.Nil(t, err)
	assert.False(t, s.Requested(3))

	// the level persists across release
	err = s.ReleasePin(3)
	assert.Nil(t, err)
	assert.False(t, s.Provisioned(3))
	assert.Equal(t, 1, s.Level(3))

	// from a closed pin
	err = p.Close()
	assert.Equal(t, sysgpio.ErrClosed, err)
	_, err = p.Value()
	assert.Equal(t, sysgpio.ErrClosed, err)
	err = p.SetDirection(sysgpio.DirectionOutputLow)
	assert.Equal(t, sysgpio.ErrClosed, err)
	err = p.SetEdge(sysgpio.EdgeBoth)
	assert.Equal(t, sysgpio.ErrClosed, err)
	err = p.SetValue(1)
	assert.Equal(t, sysgpio.ErrClosed, err)
	_, err = p.WaitEdge(0)
	assert.Equal(t, sysgpio.ErrClosed, err)
}

func TestPinDirection(t *testing.T) {
	s := sim.New()

	p, err := s.OpenPin(3)
	require.Nil(t, err)
	require.NotNil(t, p)
	defer p.Close()

	err = p.SetDirection(sysgpio.DirectionOutputHigh)
	assert.Nil(t, err)
	assert.Equal(t, 1, s.Level(3))

	err = p.SetDirection(sysgpio.DirectionOutputLow)
	assert.Nil(t, err)
	assert.Equal(t, 0, s.Level(3))

	err = p.SetValue(1)
	assert.Nil(t, err)
	assert.Equal(t, 1, s.Level(3))

	// inversion applies to initial levels, writes and reads
	err = p.SetActiveLow(true)
	assert.Nil(t, err)
	err = p.SetDirection(sysgpio.DirectionOutputHigh)
	assert.Nil(t, err)
	assert.Equal(t, 0, s.Level(3))
	v, err := p.Value()
	assert.Nil(t, err)
	assert.Equal(t, 1, v)
	err = p.SetValue(0)
	assert.Nil(t, err)
	assert.Equal(t, 1, s.Level(3))
}

func TestPinSetEdge(t *testing.T) {
	s := sim.New()

	p, err := s.OpenPin(3)
	require.Nil(t, err)
	require.NotNil(t, p)
	defer p.Close()

	// transitions before arming are not queued
	s.SetLevel(3, 1)
	err = p.SetEdge(sysgpio.EdgeBoth)
	assert.Nil(t, err)
	_, err = p.WaitEdge(0)
	assert.Equal(t, sysgpio.ErrWaitTimeout, err)

	// re-arming discards a pending event
	s.SetLevel(3, 0)
	err = p.SetEdge(sysgpio.EdgeBoth)
	assert.Nil(t, err)
	_, err = p.WaitEdge(0)
	assert.Equal(t, sysgpio.ErrWaitTimeout, err)

	// events stop once disarmed
	err = p.SetEdge(sysgpio.EdgeNone)
	assert.Nil(t, err)
	s.SetLevel(3, 1)
	_, err = p.WaitEdge(0)
	assert.Equal(t, sysgpio.ErrWaitTimeout, err)
}

func TestPinWaitEdge(t *testing.T) {
	s := sim.New()

	p, err := s.OpenPin(3)
	require.Nil(t, err)
	require.NotNil(t, p)
	defer p.Close()
	err = p.SetEdge(sysgpio.EdgeBoth)
	require.Nil(t, err)

	// nothing pending
	_, err = p.WaitEdge(0)
	assert.Equal(t, sysgpio.ErrWaitTimeout, err)
	_, err = p.WaitEdge(10 * time.Millisecond)
	assert.Equal(t, sysgpio.ErrWaitTimeout, err)

	// pending edge
	s.SetLevel(3, 1)
	evt, err := p.WaitEdge(0)
	assert.Nil(t, err)
	assert.Equal(t, sysgpio.EventRisingEdge, evt.Type)
	assert.Equal(t, 3, evt.Number)

	// the newest edge takes the single pending slot
	s.SetLevel(3, 0)
	s.SetLevel(3, 1)
	s.SetLevel(3, 0)
	evt2, err := p.WaitEdge(0)
	assert.Nil(t, err)
	assert.Equal(t, sysgpio.EventFallingEdge, evt2.Type)
	assert.True(t, evt2.Timestamp >= evt.Timestamp)
	_, err = p.WaitEdge(0)
	assert.Equal(t, sysgpio.ErrWaitTimeout, err)

	// edge while blocked
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.SetLevel(3, 1)
	}()
	evt, err = p.WaitEdge(time.Second)
	assert.Nil(t, err)
	assert.Equal(t, sysgpio.EventRisingEdge, evt.Type)
}

func TestPinCancel(t *testing.T) {
	s := sim.New()

	p, err := s.OpenPin(3)
	require.Nil(t, err)
	require.NotNil(t, p)
	defer p.Close()
	err = p.SetEdge(sysgpio.EdgeBoth)
	require.Nil(t, err)

	// a cancel with no wait in flight cancels the next wait
	p.Cancel()
	_, err = p.WaitEdge(0)
	assert.Equal(t, sysgpio.ErrCancelled, err)
	_, err = p.WaitEdge(0)
	assert.Equal(t, sysgpio.ErrWaitTimeout, err)

	// unless drained first
	p.Cancel()
	p.Drain()
	_, err = p.WaitEdge(0)
	assert.Equal(t, sysgpio.ErrWaitTimeout, err)

	// cancel unblocks a wait
	waitdone := make(chan error)
	go func() {
		_, err := p.WaitEdge(time.Second)
		waitdone <- err
	}()
	time.Sleep(20 * time.Millisecond)
	p.Cancel()
	assert.Equal(t, sysgpio.ErrCancelled, <-waitdone)

	// close unblocks a wait
	p2, err := s.OpenPin(4)
	require.Nil(t, err)
	require.NotNil(t, p2)
	err = p2.SetEdge(sysgpio.EdgeBoth)
	require.Nil(t, err)
	go func() {
		_, err := p2.WaitEdge(-1)
		waitdone <- err
	}()
	time.Sleep(20 * time.Millisecond)
	err = p2.Close()
	assert.Nil(t, err)
	assert.Equal(t, sysgpio.ErrClosed, <-waitdone)
}

func TestSharedLine(t *testing.T) {
	s := sim.New()

	po, err := s.OpenPin(3)
	require.Nil(t, err)
	require.NotNil(t, po)
	defer po.Close()
	pi, err := s.OpenPin(3)
	require.Nil(t, err)
	require.NotNil(t, pi)
	defer pi.Close()

	err = po.SetDirection(sysgpio.DirectionOutputLow)
	require.Nil(t, err)
	err = pi.SetEdge(sysgpio.EdgeBoth)
	require.Nil(t, err)

	// a write through one pin raises an event on the other
	err = po.SetValue(1)
	assert.Nil(t, err)
	evt, err := pi.WaitEdge(0)
	assert.Nil(t, err)
	assert.Equal(t, sysgpio.EventRisingEdge, evt.Type)
	v, err := pi.Value()
	assert.Nil(t, err)
	assert.Equal(t, 1, v)

	// but not on the writer itself
	_, err = po.WaitEdge(0)
	assert.Equal(t, sysgpio.ErrWaitTimeout, err)

	// toggle drives the opposite level
	s.Toggle(3)
	assert.Equal(t, 0, s.Level(3))
	evt, err = pi.WaitEdge(0)
	assert.Nil(t, err)
	assert.Equal(t, sysgpio.EventFallingEdge, evt.Type)
}

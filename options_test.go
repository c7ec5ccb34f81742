// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

package sysgpio_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeejw/sysgpio"
	"github.com/teeejw/sysgpio/sim"
)

func TestWithAliases(t *testing.T) {
	assert.Implements(t, (*sysgpio.RegistryOption)(nil),
		sysgpio.WithAliases(nil))

	// later options override earlier entries
	_, reg := newSimRegistry(t,
		sysgpio.WithAliases(map[string]int{"BUTTON": 4, "LED": 7}),
		sysgpio.WithAliases(map[string]int{"LED": 8}))
	defer reg.Close()

	num, err := reg.FindLine("BUTTON")
	assert.Nil(t, err)
	assert.Equal(t, 4, num)
	num, err = reg.FindLine("LED")
	assert.Nil(t, err)
	assert.Equal(t, 8, num)
}

func TestWithProvider(t *testing.T) {
	s := sim.New()
	assert.Implements(t, (*sysgpio.RegistryOption)(nil),
		sysgpio.WithProvider(s))

	reg, err := sysgpio.NewRegistry(sysgpio.WithProvider(s))
	require.Nil(t, err)
	require.NotNil(t, reg)
	defer reg.Close()

	// lines are opened on the provider
	l, err := reg.RequestLine(4)
	require.Nil(t, err)
	require.NotNil(t, l)
	assert.True(t, s.Requested(4))
	l.Close()
	assert.False(t, s.Requested(4))
}

func TestAsInput(t *testing.T) {
	assert.Implements(t, (*sysgpio.ReqOption)(nil), sysgpio.AsInput)
	assert.Implements(t, (*sysgpio.ConfigOption)(nil), sysgpio.AsInput)

	_, reg := newSimRegistry(t)
	defer reg.Close()

	// overrides a previous output option
	l, err := reg.RequestLine(4, sysgpio.AsOutput(1), sysgpio.AsInput)
	require.Nil(t, err)
	require.NotNil(t, l)
	defer l.Close()
	cfg := l.Config()
	assert.Equal(t, sysgpio.DirectionInput, cfg.Direction)
	err = l.SetValue(1)
	assert.Equal(t, sysgpio.ErrPermissionDenied, err)
}

func TestAsOutput(t *testing.T) {
	assert.Implements(t, (*sysgpio.ReqOption)(nil), sysgpio.AsOutput(0))
	assert.Implements(t, (*sysgpio.ConfigOption)(nil), sysgpio.AsOutput(0))

	s, reg := newSimRegistry(t)
	defer reg.Close()

	l, err := reg.RequestLine(4, sysgpio.AsOutput(0))
	require.Nil(t, err)
	require.NotNil(t, l)
	defer l.Close()
	cfg := l.Config()
	assert.Equal(t, sysgpio.DirectionOutputLow, cfg.Direction)
	assert.Equal(t, 0, s.Level(4))

	// overrides a previous edge option, clearing edge detection
	lo, err := reg.RequestLine(5, sysgpio.WithBothEdges, sysgpio.AsOutput(1))
	require.Nil(t, err)
	require.NotNil(t, lo)
	defer lo.Close()
	cfg = lo.Config()
	assert.Equal(t, sysgpio.DirectionOutputHigh, cfg.Direction)
	assert.Equal(t, sysgpio.EdgeNone, cfg.Edge)
	assert.Equal(t, 1, s.Level(5))
}

func TestAsActiveLow(t *testing.T) {
	assert.Implements(t, (*sysgpio.ReqOption)(nil), sysgpio.AsActiveLow)
	assert.Implements(t, (*sysgpio.ConfigOption)(nil), sysgpio.AsActiveLow)

	s, reg := newSimRegistry(t)
	defer reg.Close()

	l, err := reg.RequestLine(4, sysgpio.AsOutput(1), sysgpio.AsActiveLow)
	require.Nil(t, err)
	require.NotNil(t, l)
	defer l.Close()
	cfg := l.Config()
	assert.True(t, cfg.ActiveLow)
	assert.Equal(t, 0, s.Level(4))
	v, err := l.Value()
	assert.Nil(t, err)
	assert.Equal(t, 1, v)
}

func TestAsActiveHigh(t *testing.T) {
	assert.Implements(t, (*sysgpio.ReqOption)(nil), sysgpio.AsActiveHigh)
	assert.Implements(t, (*sysgpio.ConfigOption)(nil), sysgpio.AsActiveHigh)

	s, reg := newSimRegistry(t)
	defer reg.Close()

	// clears a previous inversion
	l, err := reg.RequestLine(4, sysgpio.AsOutput(1), sysgpio.AsActiveLow,
		sysgpio.AsActiveHigh)
	require.Nil(t, err)
	require.NotNil(t, l)
	defer l.Close()
	cfg := l.Config()
	assert.False(t, cfg.ActiveLow)
	assert.Equal(t, 1, s.Level(4))
}

func TestWithEdges(t *testing.T) {
	assert.Implements(t, (*sysgpio.ReqOption)(nil), sysgpio.WithRisingEdge)
	assert.Implements(t, (*sysgpio.ConfigOption)(nil), sysgpio.WithRisingEdge)
	assert.Implements(t, (*sysgpio.ReqOption)(nil), sysgpio.WithFallingEdge)
	assert.Implements(t, (*sysgpio.ConfigOption)(nil), sysgpio.WithFallingEdge)
	assert.Implements(t, (*sysgpio.ReqOption)(nil), sysgpio.WithBothEdges)
	assert.Implements(t, (*sysgpio.ConfigOption)(nil), sysgpio.WithBothEdges)

	s, reg := newSimRegistry(t)
	defer reg.Close()

	// an edge option overrides a previous output option
	l, err := reg.RequestLine(4, sysgpio.AsOutput(0), sysgpio.WithRisingEdge)
	require.Nil(t, err)
	require.NotNil(t, l)
	cfg := l.Config()
	assert.Equal(t, sysgpio.DirectionInput, cfg.Direction)
	assert.Equal(t, sysgpio.EdgeRising, cfg.Edge)
	l.Close()

	// falling only
	l, err = reg.RequestLine(4, sysgpio.WithFallingEdge)
	require.Nil(t, err)
	require.NotNil(t, l)
	defer l.Close()
	s.SetLevel(4, 1)
	_, err = l.WaitForEdge(0)
	assert.Equal(t, sysgpio.ErrWaitTimeout, err)
	s.SetLevel(4, 0)
	evt, err := l.WaitForEdge(time.Second)
	assert.Nil(t, err)
	assert.Equal(t, sysgpio.EventFallingEdge, evt.Type)
}

func TestAsShared(t *testing.T) {
	assert.Implements(t, (*sysgpio.ReqOption)(nil), sysgpio.AsShared)

	// sharing is fixed at request time, not reconfigurable
	_, ok := interface{}(sysgpio.AsShared).(sysgpio.ConfigOption)
	assert.False(t, ok)

	_, reg := newSimRegistry(t)
	defer reg.Close()

	l, err := reg.RequestLine(4, sysgpio.AsShared)
	require.Nil(t, err)
	require.NotNil(t, l)
	defer l.Close()
	assert.True(t, l.Config().Shared)

	l2, err := reg.RequestLine(4, sysgpio.AsShared)
	assert.Nil(t, err)
	require.NotNil(t, l2)
	l2.Close()
}

// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeejw/sysgpio"
	"github.com/teeejw/sysgpio/sim"
)

func TestMonDrain(t *testing.T) {
	s := sim.New()
	reg, err := sysgpio.NewRegistry(sysgpio.WithProvider(s))
	require.Nil(t, err)
	l, err := reg.RequestLine(3, sysgpio.AsShared, sysgpio.WithBothEdges)
	require.Nil(t, err)
	evtchan := make(chan sysgpio.Event, 1)
	err = l.Watch(func(evt sysgpio.Event) {
		evtchan <- evt
	})
	require.Nil(t, err)

	// leave the watcher blocked in the handler with nobody receiving
	evtchan <- sysgpio.Event{Number: 3}
	s.Toggle(3)
	time.Sleep(10 * time.Millisecond)

	monDrain(reg, evtchan)

	// the watchers are joined and the channel reaped
	_, ok := <-evtchan
	assert.False(t, ok)
	_, err = reg.FindLine("3")
	assert.Equal(t, sysgpio.ErrClosed, err)
}

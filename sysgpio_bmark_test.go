// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

package sysgpio_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/teeejw/sysgpio"
	"github.com/teeejw/sysgpio/sim"
)

func BenchmarkRegistryNewClose(b *testing.B) {
	s := sim.New()
	for i := 0; i < b.N; i++ {
		reg, _ := sysgpio.NewRegistry(sysgpio.WithProvider(s))
		reg.Close()
	}
}

func BenchmarkLineRequestClose(b *testing.B) {
	s := sim.New()
	reg, err := sysgpio.NewRegistry(sysgpio.WithProvider(s))
	require.Nil(b, err)
	defer reg.Close()
	for i := 0; i < b.N; i++ {
		l, _ := reg.RequestLine(3)
		l.Close()
	}
}

func BenchmarkLineValue(b *testing.B) {
	s := sim.New()
	reg, err := sysgpio.NewRegistry(sysgpio.WithProvider(s))
	require.Nil(b, err)
	defer reg.Close()
	l, err := reg.RequestLine(3)
	require.Nil(b, err)
	require.NotNil(b, l)
	defer l.Close()
	for i := 0; i < b.N; i++ {
		l.Value()
	}
}

func BenchmarkLineSetValue(b *testing.B) {
	s := sim.New()
	reg, err := sysgpio.NewRegistry(sysgpio.WithProvider(s))
	require.Nil(b, err)
	defer reg.Close()
	l, err := reg.RequestLine(3, sysgpio.AsOutput(0))
	require.Nil(b, err)
	require.NotNil(b, l)
	defer l.Close()
	for i := 0; i < b.N; i++ {
		l.SetValue(1)
	}
}

func BenchmarkLineReconfigure(b *testing.B) {
	s := sim.New()
	reg, err := sysgpio.NewRegistry(sysgpio.WithProvider(s))
	require.Nil(b, err)
	defer reg.Close()
	l, err := reg.RequestLine(3)
	require.Nil(b, err)
	require.NotNil(b, l)
	defer l.Close()
	for i := 0; i < b.N; i++ {
		l.Reconfigure(sysgpio.AsActiveLow)
	}
}

func BenchmarkWaitForEdge(b *testing.B) {
	s := sim.New()
	reg, err := sysgpio.NewRegistry(sysgpio.WithProvider(s))
	require.Nil(b, err)
	defer reg.Close()
	num := 2
	l, err := reg.RequestLine(num, sysgpio.WithBothEdges)
	require.Nil(b, err)
	require.NotNil(b, l)
	defer l.Close()
	for i := 0; i < b.N; i++ {
		s.Toggle(num)
		l.WaitForEdge(time.Second)
	}
}

func BenchmarkInterruptLatency(b *testing.B) {
	s := sim.New()
	reg, err := sysgpio.NewRegistry(sysgpio.WithProvider(s))
	require.Nil(b, err)
	defer reg.Close()
	num := 2
	s.SetLevel(num, 1)
	l, err := reg.RequestLine(num, sysgpio.WithBothEdges)
	require.Nil(b, err)
	require.NotNil(b, l)
	defer l.Close()
	ich := make(chan int)
	err = l.Watch(func(sysgpio.Event) {
		ich <- 1
	})
	require.Nil(b, err)
	for i := 0; i < b.N; i++ {
		s.SetLevel(num, i&1)
		<-ich
	}
	l.Unwatch()
}

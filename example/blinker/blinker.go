// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teeejw/sysgpio"
	"github.com/teeejw/sysgpio/device/rpi"
)

// This example drives GPIO 4, which is pin J8-7 on a Raspberry Pi.
// The pin is toggled high and low at 1Hz with a 50% duty cycle.
// Do not run this on a device which has this pin externally driven.
func main() {
	reg, err := sysgpio.NewRegistry(sysgpio.WithAliases(rpi.Aliases(0)))
	if err != nil {
		panic(err)
	}
	defer reg.Close()

	num, err := reg.FindLine("GPIO4")
	if err != nil {
		panic(err)
	}
	values := map[int]string{0: "inactive", 1: "active"}
	v := 0
	l, err := reg.RequestLine(num, sysgpio.AsOutput(v))
	if err != nil {
		panic(err)
	}
	defer func() {
		l.Reconfigure(sysgpio.AsInput)
		l.Close()
	}()
	fmt.Printf("Set %s\n", values[v])

	// capture exit signals to ensure pin is reverted to input on exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	for {
		select {
		case <-time.After(500 * time.Millisecond):
			v ^= 1
			l.SetValue(v)
			fmt.Printf("Set %s\n", values[v])
		case <-quit:
			return
		}
	}
}

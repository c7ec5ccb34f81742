// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/teeejw/sysgpio"
	"github.com/teeejw/sysgpio/device/rpi"
)

// Watches GPIO 4 (Raspberry Pi J8-7) and reports when it changes state.
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
	l, err := reg.RequestLine(num, sysgpio.WithBothEdges)
	if err != nil {
		fmt.Printf("RequestLine returned error: %s\n", err)
		os.Exit(1)
	}
	defer l.Close()

	err = l.Watch(func(evt sysgpio.Event) {
		t := time.Now()
		edge := "rising"
		if evt.Type == sysgpio.EventFallingEdge {
			edge = "falling"
		}
		fmt.Printf("event:%4d %-7s %s (%s)\n",
			evt.Number,
			edge,
			t.Format(time.RFC3339Nano),
			evt.Timestamp)
	})
	if err != nil {
		fmt.Printf("Watch returned error: %s\n", err)
		os.Exit(1)
	}
	defer l.Unwatch()

	// In a real application the main thread would do something useful.
	// But we'll just run for a minute then exit.
	fmt.Printf("Watching line %d...\n", num)
	time.Sleep(time.Minute)
	fmt.Println("exiting...")
}

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

	"github.com/spf13/cobra"

	"github.com/teeejw/sysgpio"
)

func init() {
	monCmd.Flags().BoolVarP(&monOpts.ActiveLow, "active-low", "l", false,
		"treat the line level as active low")
	monCmd.Flags().BoolVarP(&monOpts.FallingEdge, "falling-edge", "f", false,
		"detect only falling edge events")
	monCmd.Flags().BoolVarP(&monOpts.RisingEdge, "rising-edge", "r", false,
		"detect only rising edge events")
	monCmd.Flags().UintVarP(&monOpts.NumEvents, "num-events", "n", 0,
		"exit after n events")
	monCmd.Flags().BoolVarP(&monOpts.Quiet, "quiet", "q", false,
		"don't display event details")
	monCmd.SetHelpTemplate(monCmd.HelpTemplate() + extendedMonHelp)
	rootCmd.AddCommand(monCmd)
}

var extendedMonHelp = `
Lines:
  A line may be identified by number, or by alias if an alias file is
  provided.

Note:
  By default both rising and falling edge events are detected and
  reported.
`

var (
	monCmd = &cobra.Command{
		Use:                   "mon [flags] <line1>...",
		Short:                 "Monitor the state of a line or lines",
		Long:                  `Wait for edge events on a line or lines, and print them to stdout.`,
		Args:                  cobra.MinimumNArgs(1),
		RunE:                  mon,
		DisableFlagsInUseLine: true,
	}
	monOpts = struct {
		ActiveLow   bool
		FallingEdge bool
		RisingEdge  bool
		NumEvents   uint
		Quiet       bool
	}{}
)

func mon(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry(args)
	if err != nil {
		return err
	}
	defer reg.Close()
	nn, err := resolveLines(reg, args)
	if err != nil {
		return err
	}
	opts := []sysgpio.ReqOption{sysgpio.AsShared, monEdgeOption()}
	if monOpts.ActiveLow {
		opts = append(opts, sysgpio.AsActiveLow)
	}
	evtchan := make(chan sysgpio.Event, 4)
	defer monDrain(reg, evtchan)
	eh := func(evt sysgpio.Event) {
		evtchan <- evt
	}
	for i, n := range nn {
		l, err := reg.RequestLine(n, opts...)
		if err != nil {
			return fmt.Errorf("error requesting line %s: %s", args[i], err)
		}
		if err = l.Watch(eh); err != nil {
			return fmt.Errorf("error watching line %s: %s", args[i], err)
		}
	}
	monWait(evtchan)
	return nil
}

// monDrain keeps evtchan flowing, so a watcher can't block in the handler
// while the registry closes down, then reaps the channel.
func monDrain(reg *sysgpio.Registry, evtchan chan sysgpio.Event) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range evtchan {
		}
	}()
	reg.Close()
	// no handler can fire once the watchers are joined
	close(evtchan)
	<-done
}

func monEdgeOption() sysgpio.ReqOption {
	if monOpts.FallingEdge == monOpts.RisingEdge {
		return sysgpio.WithBothEdges
	}
	if monOpts.FallingEdge {
		return sysgpio.WithFallingEdge
	}
	return sysgpio.WithRisingEdge
}

func monWait(evtchan <-chan sysgpio.Event) {
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	count := uint(0)
	for {
		select {
		case evt := <-evtchan:
			if !monOpts.Quiet {
				t := time.Now()
				edge := "rising"
				if evt.Type == sysgpio.EventFallingEdge {
					edge = "falling"
				}
				fmt.Printf("event:%4d %-7s %s (%s)\n",
					evt.Number, edge, t.Format(time.RFC3339Nano), evt.Timestamp)
			}
			count++
			if monOpts.NumEvents > 0 && count >= monOpts.NumEvents {
				return
			}
		case <-sigdone:
			return
		}
	}
}

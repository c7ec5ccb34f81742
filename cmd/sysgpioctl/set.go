// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teeejw/sysgpio"
)

func init() {
	setCmd.Flags().BoolVarP(&setOpts.ActiveLow, "active-low", "l", false,
		"treat the line level as active low")
	setCmd.Flags().BoolVarP(&setOpts.User, "user", "u", false,
		"hold the lines until the user signals to exit")
	setCmd.Flags().BoolVarP(&setOpts.Wait, "wait", "w", false,
		"hold the lines until the user presses enter")
	setCmd.Flags().DurationVarP(&setOpts.Time, "time", "t", 0,
		"hold the lines for a period of time")
	setCmd.SetHelpTemplate(setCmd.HelpTemplate() + extendedSetHelp)
	rootCmd.AddCommand(setCmd)
}

var extendedSetHelp = `
Lines:
  A line may be identified by number, or by alias if an alias file is
  provided.

Note:
  On exit the line is released and reverts to its default state.
`

var (
	setCmd = &cobra.Command{
		Use:                   "set [flags] <line1>=<value1>...",
		Short:                 "Set the state of a line or lines",
		Long:                  `Set the state of a line or lines through the GPIO sysfs class.`,
		Args:                  cobra.MinimumNArgs(1),
		RunE:                  set,
		DisableFlagsInUseLine: true,
	}
	setOpts = struct {
		ActiveLow bool
		User      bool
		Wait      bool
		Time      time.Duration
	}{}
)

func set(cmd *cobra.Command, args []string) error {
	ids := make([]string, len(args))
	vals := make([]int, len(args))
	for i, arg := range args {
		id, v, err := parseLineValue(arg)
		if err != nil {
			return err
		}
		ids[i] = id
		vals[i] = v
	}
	reg, err := newRegistry(ids)
	if err != nil {
		return err
	}
	defer reg.Close()
	nn, err := resolveLines(reg, ids)
	if err != nil {
		return err
	}
	for i, n := range nn {
		opts := []sysgpio.ReqOption{sysgpio.AsOutput(vals[i])}
		if setOpts.ActiveLow {
			opts = append(opts, sysgpio.AsActiveLow)
		}
		if _, err = reg.RequestLine(n, opts...); err != nil {
			return fmt.Errorf("error requesting line %s: %s", ids[i], err)
		}
	}
	setWait()
	return nil
}

func setWait() {
	done := make(chan int)
	if setOpts.Time > 0 {
		go func() {
			time.Sleep(setOpts.Time)
			done <- 1
		}()
	}
	if setOpts.Wait {
		go func() {
			reader := bufio.NewReader(os.Stdin)
			reader.ReadRune()
			done <- 2
		}()
	}
	if setOpts.User {
		sigdone := make(chan os.Signal, 1)
		signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigdone)
		go func() {
			<-sigdone
			done <- 3
		}()
	}
	if setOpts.Time > 0 || setOpts.Wait || setOpts.User {
		<-done
	}
}

func parseLineValue(arg string) (string, int, error) {
	aa := strings.Split(arg, "=")
	if len(aa) != 2 {
		return "", 0, fmt.Errorf("invalid line<->value mapping: %s", arg)
	}
	v, err := strconv.ParseInt(aa[1], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("can't parse value '%s'", arg)
	}
	return aa[0], int(v), nil
}

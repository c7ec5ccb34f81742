// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teeejw/sysgpio"
)

func init() {
	getCmd.Flags().BoolVarP(&getOpts.ActiveLow, "active-low", "l", false,
		"treat the line level as active low")
	getCmd.SetHelpTemplate(getCmd.HelpTemplate() + extendedGetHelp)
	rootCmd.AddCommand(getCmd)
}

var extendedGetHelp = `
Lines:
  A line may be identified by number, or by alias if an alias file is
  provided.

Note:
  Lines are requested shared, so lines already exported by another
  process can still be read.
`

var (
	getCmd = &cobra.Command{
		Use:                   "get [flags] <line1>...",
		Short:                 "Get the state of a line or lines",
		Long:                  `Read the state of a line or lines through the GPIO sysfs class.`,
		Args:                  cobra.MinimumNArgs(1),
		RunE:                  get,
		DisableFlagsInUseLine: true,
	}
	getOpts = struct {
		ActiveLow bool
	}{}
)

func get(cmd *cobra.Command, args []string) error {
	reg, err := newRegistry(args)
	if err != nil {
		return err
	}
	defer reg.Close()
	nn, err := resolveLines(reg, args)
	if err != nil {
		return err
	}
	opts := []sysgpio.ReqOption{sysgpio.AsInput, sysgpio.AsShared}
	if getOpts.ActiveLow {
		opts = append(opts, sysgpio.AsActiveLow)
	}
	vv := make([]string, len(nn))
	for i, n := range nn {
		l, err := reg.RequestLine(n, opts...)
		if err != nil {
			return fmt.Errorf("error requesting line %s: %s", args[i], err)
		}
		v, err := l.Value()
		if err != nil {
			return fmt.Errorf("error reading line %s: %s", args[i], err)
		}
		vv[i] = fmt.Sprintf("%d", v)
	}
	fmt.Println(strings.Join(vv, " "))
	return nil
}

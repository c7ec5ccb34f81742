// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teeejw/sysgpio"
	"github.com/teeejw/sysgpio/device/rpi"
)

func init() {
	findCmd.Flags().BoolVarP(&findOpts.Rpi, "rpi", "r", false,
		"include the Raspberry Pi GPIO names, numbered from --base")
	rootCmd.AddCommand(findCmd)
}

var (
	findCmd = &cobra.Command{
		Use:                   "find [flags] <name1>...",
		Short:                 "Find the line number for a name",
		Long:                  `Resolve names to line numbers, using the alias file and optionally the Raspberry Pi GPIO names.`,
		Args:                  cobra.MinimumNArgs(1),
		Run:                   find,
		DisableFlagsInUseLine: true,
	}
	findOpts = struct {
		Rpi bool
	}{}
)

func find(cmd *cobra.Command, args []string) {
	opts := []sysgpio.RegistryOption{}
	if findOpts.Rpi {
		opts = append(opts, sysgpio.WithAliases(rpi.Aliases(rootOpts.Base)))
	}
	reg, err := newRegistry(args, opts...)
	if err != nil {
		logErr(cmd, err)
		return
	}
	defer reg.Close()
	for _, name := range args {
		n, err := reg.FindLine(name)
		if err != nil {
			logErr(cmd, fmt.Errorf("can't resolve line %q: %s", name, err))
			continue
		}
		fmt.Printf("%s %d\n", name, n)
	}
}

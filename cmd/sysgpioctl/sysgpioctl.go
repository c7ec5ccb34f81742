// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// A utility to control GPIO lines.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sysgpioctl",
	Short: "sysgpioctl is a utility to control GPIO lines",
	Long:  "sysgpioctl is a utility to control GPIO lines through the Linux GPIO sysfs class",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var rootOpts = struct {
	Backend string
	Base    int
	Aliases string
}{}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootOpts.Backend, "backend", "B", "sysfs",
		"GPIO backend to drive lines through (sysfs, periph or rpio).")
	rootCmd.PersistentFlags().IntVar(&rootOpts.Base, "base", 0,
		"global number of the first line on the chip, for the periph and rpio backends.")
	rootCmd.PersistentFlags().StringVar(&rootOpts.Aliases, "aliases", "",
		"JSON file providing line aliases.")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "sysgpioctl %s: %s\n", cmd.Name(), err)
}

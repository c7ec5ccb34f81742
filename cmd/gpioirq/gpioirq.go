// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

// gpioirq demonstrates edge detection on a button line by toggling an LED
// line on each press, first with blocking waits and then with an
// asynchronous watch.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/teeejw/sysgpio"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
)

var version = "undefined"

func main() {
	shortFlags := map[byte]string{
		'h': "help",
		'v': "version",
		'n': "loops",
		'f': "falling-edge",
		't': "timeout",
		'c': "config-file",
	}
	defaults := dict.New(dict.WithMap(
		map[string]interface{}{
			"loops":        6,
			"falling.edge": false,
			"timeout":      "0s",
			"config.file":  "/etc/sysgpio/gpioirq.json",
			"button":       "USER_BUTTON",
			"led":          "USER_LED",
		}))
	flags := pflag.New(pflag.WithShortFlags(shortFlags))
	cfg := config.New(flags,
		env.New(env.WithEnvPrefix("SYSGPIO_")),
		config.WithDefault(defaults))
	cfg.Append(blob.NewConfigFile(cfg, "config.file",
		"/etc/sysgpio/gpioirq.json", json.NewDecoder()))
	if v, err := cfg.Get("help"); err == nil && v.Bool() {
		printHelp()
		os.Exit(0)
	}
	if v, err := cfg.Get("version"); err == nil && v.Bool() {
		printVersion()
		os.Exit(0)
	}
	buttonID := cfg.MustGet("button").String()
	ledID := cfg.MustGet("led").String()
	switch flags.NArg() {
	case 0:
	case 2:
		buttonID = flags.Args()[0]
		ledID = flags.Args()[1]
	default:
		die("expects either no positional arguments or <button> <led>")
	}
	os.Exit(run(cfg, buttonID, ledID))
}

// run performs the demonstration, returning the process exit code so that
// the deferred cleanup runs on all paths.
func run(cfg *config.Config, buttonID, ledID string) int {
	loops := int(cfg.MustGet("loops").Int())
	timeout := cfg.MustGet("timeout").Duration()
	if timeout <= 0 {
		// wait forever
		timeout = -1
	}
	edge := sysgpio.WithRisingEdge
	if cfg.MustGet("falling.edge").Bool() {
		edge = sysgpio.WithFallingEdge
	}
	aliases := map[string]int{}
	for _, id := range []string{buttonID, ledID} {
		if num, ok := aliasFromConfig(cfg, id); ok {
			aliases[id] = num
		}
	}
	reg, err := sysgpio.NewRegistry(sysgpio.WithAliases(aliases))
	if err != nil {
		fmt.Fprintln(os.Stderr, "gpioirq: "+err.Error())
		return 1
	}
	defer reg.Close()

	button, err := reg.FindLine(buttonID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gpioirq: can't resolve button %q: %s\n", buttonID, err)
		return 1
	}
	led, err := reg.FindLine(ledID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gpioirq: can't resolve led %q: %s\n", ledID, err)
		return 1
	}
	in, err := reg.RequestLine(button, edge, sysgpio.AsShared)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gpioirq: error requesting button line: %s\n", err)
		return 1
	}
	// the button is wired active high, whatever the line was left set to
	if err = in.Reconfigure(sysgpio.AsActiveHigh); err != nil {
		fmt.Fprintf(os.Stderr, "gpioirq: error configuring button line: %s\n", err)
		return 1
	}
	out, err := reg.RequestLine(led, sysgpio.AsOutput(0), sysgpio.AsShared)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gpioirq: error requesting led line: %s\n", err)
		return 1
	}

	// closing the registry unblocks any waits, so termination just needs
	// the close and everything falls out
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigdone)
	quit := make(chan struct{})
	go func() {
		<-sigdone
		fmt.Fprintln(os.Stderr, "gpioirq: interrupted")
		reg.Close()
		close(quit)
	}()

	fmt.Printf("Testing blocking waits; press the button on line %d %d times:\n",
		button, loops)
	value := 0
	for i := 1; i <= loops; {
		_, err := in.WaitForEdge(timeout)
		switch err {
		case nil:
		case sysgpio.ErrWaitTimeout:
			fmt.Println("no press yet; waiting again...")
			continue
		case sysgpio.ErrClosed:
			return 1
		default:
			fmt.Fprintf(os.Stderr, "gpioirq: error waiting for edge: %s\n", err)
			return 1
		}
		value ^= 1
		out.SetValue(value)
		fmt.Printf("press %d; toggled the LED\n", i)
		i++
	}

	fmt.Printf("Testing asynchronous watch; press the button another %d times:\n",
		loops)
	remaining := loops
	done := make(chan struct{})
	err = in.Watch(func(evt sysgpio.Event) {
		if remaining <= 0 {
			return
		}
		value ^= 1
		out.SetValue(value)
		remaining--
		fmt.Printf("press %d; toggled the LED\n", loops-remaining)
		if remaining == 0 {
			close(done)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "gpioirq: error starting watch: %s\n", err)
		return 1
	}
	select {
	case <-done:
	case <-quit:
		return 1
	}
	in.Unwatch()
	fmt.Println("no presses remaining; done")
	return 0
}

// aliasFromConfig looks up an alias in the "aliases" section of the config,
// trying the name as given and then folded to lower case, as decoders may
// fold keys.
func aliasFromConfig(cfg *config.Config, name string) (int, bool) {
	for _, k := range []string{"aliases." + name, "aliases." + strings.ToLower(name)} {
		if v, err := cfg.Get(k); err == nil {
			return int(v.Int()), true
		}
	}
	return 0, false
}

func die(reason string) {
	fmt.Fprintln(os.Stderr, "gpioirq: "+reason)
	os.Exit(1)
}

func printHelp() {
	fmt.Printf("Usage: %s [OPTIONS] [<button> <led>]\n", os.Args[0])
	fmt.Println("Toggle an LED line on each press of a button line, using blocking")
	fmt.Println("waits and then an asynchronous watch.")
	fmt.Println("")
	fmt.Println("Lines may be given as numbers or as aliases from the config file.")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -h, --help:\t\tdisplay this message and exit")
	fmt.Println("  -v, --version:\tdisplay the version and exit")
	fmt.Println("  -n, --loops=NUM:\texit after NUM presses in each mode")
	fmt.Println("  -f, --falling-edge:\ttrigger on falling edges instead of rising")
	fmt.Println("  -t, --timeout=PERIOD:\tlimit each blocking wait, 0 to wait forever")
	fmt.Println("  -c, --config-file=FILE:\tload aliases and defaults from FILE")
}

func printVersion() {
	fmt.Printf("%s (sysgpio) %s\n", os.Args[0], version)
}

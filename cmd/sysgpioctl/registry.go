// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/env"

	"github.com/teeejw/sysgpio"
	"github.com/teeejw/sysgpio/periphpin"
	"github.com/teeejw/sysgpio/rpiopin"
)

// newRegistry creates a registry on the selected backend, with any aliases
// for the given identifiers loaded from the alias file.
func newRegistry(ids []string, options ...sysgpio.RegistryOption) (*sysgpio.Registry, error) {
	aa := aliasTable(ids)
	if len(aa) > 0 {
		options = append(options, sysgpio.WithAliases(aa))
	}
	switch strings.ToLower(rootOpts.Backend) {
	case "", "sysfs":
	case "periph":
		p, err := periphpin.New(periphpin.WithBase(rootOpts.Base))
		if err != nil {
			return nil, err
		}
		options = append(options, sysgpio.WithProvider(p))
	case "rpio":
		p, err := rpiopin.New(rpiopin.WithBase(rootOpts.Base))
		if err != nil {
			return nil, err
		}
		options = append(options, sysgpio.WithProvider(p))
	default:
		return nil, fmt.Errorf("unknown backend %q", rootOpts.Backend)
	}
	return sysgpio.NewRegistry(options...)
}

// aliasTable extracts the aliases for the given identifiers from the alias
// file, if one is configured.
//
// The file may also be named in the SYSGPIOCTL_ALIASES_FILE environment
// variable.
func aliasTable(ids []string) map[string]int {
	if rootOpts.Aliases == "" && os.Getenv("SYSGPIOCTL_ALIASES_FILE") == "" {
		return nil
	}
	cfg := config.New(env.New(env.WithEnvPrefix("SYSGPIOCTL_")))
	cfg.Append(
		blob.NewConfigFile(cfg, "aliases.file", rootOpts.Aliases, json.NewDecoder()))
	aa := map[string]int{}
	for _, id := range ids {
		for _, k := range []string{"aliases." + id, "aliases." + strings.ToLower(id)} {
			if v, err := cfg.Get(k); err == nil {
				aa[id] = int(v.Int())
				break
			}
		}
	}
	return aa
}

// resolveLines maps the given identifiers to line numbers through the
// registry.
func resolveLines(reg *sysgpio.Registry, ids []string) ([]int, error) {
	nn := make([]int, len(ids))
	for i, id := range ids {
		n, err := reg.FindLine(id)
		if err != nil {
			return nil, fmt.Errorf("can't resolve line %q: %s", id, err)
		}
		nn[i] = n
	}
	return nn, nil
}

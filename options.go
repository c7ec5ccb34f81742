// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package sysgpio

// RegistryOption defines the interface required to provide a Registry
// option.
type RegistryOption interface {
	applyRegistryOption(*registryOptions)
}

// registryOptions contains the options for a Registry.
type registryOptions struct {
	aliases map[string]int
	prov    Provider
}

// AliasesOption provides alias names for line numbers.
type AliasesOption map[string]int

// WithAliases adds entries to the registry alias table.
//
// Later options override earlier entries for the same name.
func WithAliases(aliases map[string]int) AliasesOption {
	return AliasesOption(aliases)
}

func (o AliasesOption) applyRegistryOption(r *registryOptions) {
	for name, num := range o {
		r.aliases[name] = num
	}
}

// ProviderOption selects the provider backing the registry.
type ProviderOption struct {
	prov Provider
}

// WithProvider selects the provider the registry opens lines through,
// overriding the default sysfs provider.
func WithProvider(p Provider) ProviderOption {
	return ProviderOption{p}
}

func (o ProviderOption) applyRegistryOption(r *registryOptions) {
	r.prov = o.prov
}

// ReqOption defines the interface required to provide an option for
// RequestLine.
type ReqOption interface {
	applyReqOption(*reqOptions)
}

// ConfigOption defines the interface required to provide an option for
// Line.Reconfigure.
type ConfigOption interface {
	applyConfigOption(*LineConfig)
}

// reqOptions contains the options for a RequestLine.
type reqOptions struct {
	cfg LineConfig
}

// InputOption indicates the line direction should be set to an input.
type InputOption struct{}

// AsInput indicates that a line be requested as an input.
//
// This option overrides and clears any previous Output option.
var AsInput = InputOption{}

func (o InputOption) applyReqOption(l *reqOptions) {
	o.applyConfigOption(&l.cfg)
}

func (o InputOption) applyConfigOption(c *LineConfig) {
	c.Direction = DirectionInput
}

// OutputOption indicates the line direction should be set to an output.
type OutputOption struct {
	value int
}

// AsOutput indicates that a line be requested as an output driven initially
// to the given logical value.
//
// This option overrides and clears any previous Input or edge options.
func AsOutput(value int) OutputOption {
	return OutputOption{value}
}

func (o OutputOption) applyReqOption(l *reqOptions) {
	o.applyConfigOption(&l.cfg)
}

func (o OutputOption) applyConfigOption(c *LineConfig) {
	if o.value == 0 {
		c.Direction = DirectionOutputLow
	} else {
		c.Direction = DirectionOutputHigh
	}
	c.Edge = EdgeNone
}

// ActiveLowOption indicates the line be considered active when the line
// level is low.
type ActiveLowOption struct{}

// AsActiveLow indicates that a line be considered active when the line
// level is low.
var AsActiveLow = ActiveLowOption{}

func (o ActiveLowOption) applyReqOption(l *reqOptions) {
	o.applyConfigOption(&l.cfg)
}

func (o ActiveLowOption) applyConfigOption(c *LineConfig) {
	c.ActiveLow = true
}

// ActiveHighOption indicates the line be considered active when the line
// level is high.
type ActiveHighOption struct{}

// AsActiveHigh indicates that a line be considered active when the line
// level is high.
//
// This is the default, so the option is only useful to clear an inherited
// or previously configured inversion.
var AsActiveHigh = ActiveHighOption{}

func (o ActiveHighOption) applyReqOption(l *reqOptions) {
	o.applyConfigOption(&l.cfg)
}

func (o ActiveHighOption) applyConfigOption(c *LineConfig) {
	c.ActiveLow = false
}

// EdgeOption indicates the edges on which the line should trigger events.
type EdgeOption struct {
	edge Edge
}

// WithRisingEdge indicates that a line be requested with events triggered
// on transitions to logical high.
//
// This option sets the Input option and overrides any previous Output or
// edge options.
var WithRisingEdge = EdgeOption{EdgeRising}

// WithFallingEdge indicates that a line be requested with events triggered
// on transitions to logical low.
//
// This option sets the Input option and overrides any previous Output or
// edge options.
var WithFallingEdge = EdgeOption{EdgeFalling}

// WithBothEdges indicates that a line be requested with events triggered
// on all transitions.
//
// This option sets the Input option and overrides any previous Output or
// edge options.
var WithBothEdges = EdgeOption{EdgeBoth}

func (o EdgeOption) applyReqOption(l *reqOptions) {
	o.applyConfigOption(&l.cfg)
}

func (o EdgeOption) applyConfigOption(c *LineConfig) {
	c.Direction = DirectionInput
	c.Edge = o.edge
}

// SharedOption indicates the request may share the line.
type SharedOption struct{}

// AsShared indicates that a request tolerate the line already being
// provisioned, and that other shared requests may join it.
//
// On release the line is only deprovisioned if the registry provisioned it.
// Sharing is a property of the request, not of the line configuration, so
// it cannot be changed by Reconfigure.
var AsShared = SharedOption{}

func (o SharedOption) applyReqOption(l *reqOptions) {
	l.cfg.Shared = true
}

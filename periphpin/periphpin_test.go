// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package periphpin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeejw/sysgpio"
	"github.com/teeejw/sysgpio/periphpin"
)

func TestNew(t *testing.T) {
	p, err := periphpin.New()
	if err != nil {
		t.Skip("periph host not supported -", err)
	}
	require.NotNil(t, p)

	p, err = periphpin.New(periphpin.WithBase(512))
	assert.Nil(t, err)
	require.NotNil(t, p)
}

func TestOpenPin(t *testing.T) {
	p, err := periphpin.New()
	if err != nil {
		t.Skip("periph host not supported -", err)
	}

	pin, err := p.OpenPin(2)
	if err != nil {
		// host has no BCM GPIOs
		assert.Equal(t, sysgpio.ErrLineNotFound, err)
		return
	}
	require.NotNil(t, pin)
	defer pin.Close()

	v, err := pin.Value()
	assert.Nil(t, err)
	assert.True(t, v == 0 || v == 1)

	err = p.ReleasePin(2)
	assert.Nil(t, err)
}

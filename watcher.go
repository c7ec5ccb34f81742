// SPDX-FileCopyrightText: 2023 TJ Wright <teeejw@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux
// +build linux

package sysgpio

import "sync"

// watcher drives the handler for a single watched line.
//
// All events are delivered from the one goroutine, so the handler never
// runs concurrently with itself.
type watcher struct {
	pin Pin

	// the handler for detected events
	eh EventHandler

	// mu covers stopping
	mu       sync.Mutex
	stopping bool

	// closed once watcher exits
	doneCh chan struct{}
}

func newWatcher(pin Pin, eh EventHandler) *watcher {
	w := watcher{
		pin:    pin,
		eh:     eh,
		doneCh: make(chan struct{}),
	}
	go w.watch()
	return &w
}

// close signals the watch goroutine to exit and blocks until it has.
//
// No events are delivered once close returns.
func (w *watcher) close() {
	w.mu.Lock()
	w.stopping = true
	w.mu.Unlock()
	w.pin.Cancel()
	<-w.doneCh
	// the goroutine may have exited without consuming the cancel, which
	// must not fire a later wait
	w.pin.Drain()
}

func (w *watcher) stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopping
}

func (w *watcher) watch() {
	defer close(w.doneCh)
	for {
		if w.stopped() {
			return
		}
		evt, err := w.pin.WaitEdge(-1)
		if err != nil {
			// cancelled or closed
			return
		}
		// the stop may have raced the edge
		if w.stopped() {
			return
		}
		w.eh(evt)
	}
}

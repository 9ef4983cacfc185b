// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package debounce

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Coalescer collects keys and hands the distinct set to a flush function
// once no new key has arrived for the configured delay.
type Coalescer struct {
	submissions chan string
	flush       func([]string)
	delay       time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
	timer   <-chan time.Time

	closeMu sync.RWMutex
	stopped atomic.Bool
	done    chan struct{}
}

// New starts a coalescer. flush runs on the coalescer goroutine.
func New(delay time.Duration, flush func(keys []string)) *Coalescer {
	c := &Coalescer{
		submissions: make(chan string, 256),
		flush:       flush,
		delay:       delay,
		pending:     make(map[string]struct{}),
		done:        make(chan struct{}),
	}

	go c.run()

	return c
}

func (c *Coalescer) run() {
	defer close(c.done)

	fire := func() {
		c.mu.Lock()
		c.timer = nil
		if len(c.pending) == 0 {
			c.mu.Unlock()
			return
		}
		keys := make([]string, 0, len(c.pending))
		for k := range c.pending {
			keys = append(keys, k)
		}
		c.pending = make(map[string]struct{})
		c.mu.Unlock()

		sort.Strings(keys)
		c.flush(keys)
	}

	for {
		c.mu.Lock()
		timer := c.timer
		c.mu.Unlock()

		select {
		case <-timer:
			fire()
		case key, ok := <-c.submissions:
			if !ok {
				fire()
				return
			}
			c.mu.Lock()
			c.pending[key] = struct{}{}
			// every new key pushes the deadline out
			c.timer = time.After(c.delay)
			c.mu.Unlock()
		}
	}
}

// Add queues key. Keys added after Stop are dropped.
func (c *Coalescer) Add(key string) {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.stopped.Load() {
		return
	}

	select {
	case c.submissions <- key:
	default:
		// buffer full; the pending flush already covers this burst
		c.mu.Lock()
		c.pending[key] = struct{}{}
		c.mu.Unlock()
	}
}

// Pending returns the number of keys waiting for the next flush.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Stop flushes anything pending and waits for the goroutine to exit.
func (c *Coalescer) Stop() {
	c.closeMu.Lock()
	if !c.stopped.CompareAndSwap(false, true) {
		c.closeMu.Unlock()
		return
	}
	close(c.submissions)
	c.closeMu.Unlock()

	<-c.done
}

/*
   NVMRec - flash audio recorder
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of NVMRec.

   NVMRec is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   NVMRec is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with NVMRec. If not, see <http://www.gnu.org/licenses/>.
*/

package sim

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// Line is an interrupt request line. Lower values have higher priority.
type Line int

const (
	LineRecord Line = iota
	LinePlay
	LineDMA
	LineADC
	LineTimer
	lineCount
)

func (l Line) String() string {
	switch l {
	case LineRecord:
		return "record"
	case LinePlay:
		return "play"
	case LineDMA:
		return "dma"
	case LineADC:
		return "adc"
	case LineTimer:
		return "timer"
	default:
		return "<unknown>"
	}
}

/*
IRQController serves raised interrupt lines one at a time, highest
priority first. Handlers run on the goroutine calling Dispatch, either
Run's loop or a test driving the board step by step. A handler may raise
or clear lines, but is never interrupted by another handler.
*/
type IRQController struct {
	mu       sync.Mutex
	pending  [lineCount]bool
	handlers [lineCount]func()
	served   [lineCount]uint64
	active   int
	wake     chan struct{}
}

func NewIRQController() *IRQController {
	return &IRQController{wake: make(chan struct{}, 1)}
}

// Attach sets the handler for line l, replacing any previous one.
func (c *IRQController) Attach(l Line, h func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[l] = h
}

// Raise marks line l pending. Raising an already pending line has no
// further effect.
func (c *IRQController) Raise(l Line) {
	c.mu.Lock()
	c.pending[l] = true
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Clear withdraws a pending request on line l.
func (c *IRQController) Clear(l Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[l] = false
}

func (c *IRQController) Pending(l Line) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[l]
}

// Served returns how many requests on line l have been handled.
func (c *IRQController) Served(l Line) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.served[l]
}

// Dispatch serves the highest priority pending line, if any, and reports
// whether it did.
func (c *IRQController) Dispatch() bool {

	c.mu.Lock()
	l := lineCount
	for ix := Line(0); ix < lineCount; ix++ {
		if c.pending[ix] {
			l = ix
			break
		}
	}
	if l == lineCount {
		c.mu.Unlock()
		return false
	}
	c.pending[l] = false
	c.served[l]++
	c.active++
	h := c.handlers[l]
	c.mu.Unlock()

	if h != nil {
		h()
	}

	c.mu.Lock()
	c.active--
	c.mu.Unlock()
	return true
}

// Idle reports whether no line is pending and no handler is running.
func (c *IRQController) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active > 0 {
		return false
	}
	for _, p := range c.pending {
		if p {
			return false
		}
	}
	return true
}

// Settle waits until the controller is idle. It returns false if ctx is done
// first. Some other goroutine needs to be dispatching.
func (c *IRQController) Settle(ctx context.Context) bool {
	for !c.Idle() {
		if ctx.Err() != nil {
			return false
		}
		runtime.Gosched()
	}
	return true
}

const (
	pollInterval = time.Millisecond
	maxLag       = 100 * time.Millisecond
)

/*
paced calls step rate() times per second until ctx is done. Host timers do
not resolve sample periods, so on every poll the steps that have become due
are made in one batch, letting pending interrupts be served between two
steps, as they would be within one sample period on the device. When rate is
zero or step reports it did nothing, nothing is due until the next poll.
Lag beyond maxLag, e.g. after the process was suspended, is dropped.
*/
func paced(ctx context.Context, irq *IRQController, rate func() float64,
	step func() bool) {

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := time.Now()
	due := 0.0

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if elapsed > maxLag {
				elapsed = maxLag
			}
			r := rate()
			if r <= 0 {
				due = 0
				continue
			}
			for due += elapsed.Seconds() * r; due >= 1; due-- {
				if !step() {
					due = 0
					break
				}
				if !irq.Settle(ctx) {
					return
				}
			}
		}
	}
}

// Drain dispatches until no line is pending.
func (c *IRQController) Drain() {
	for c.Dispatch() {
	}
}

// Run dispatches pending requests until ctx is done.
func (c *IRQController) Run(ctx context.Context) {
	for {
		c.Drain()
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		}
	}
}

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
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/xelalexv/nvmrec/pkg/recorder"
)

// DefaultClock is the timer input clock in Hz.
const DefaultClock = 24000000

/*
Timer raises the timer interrupt every period ticks of its input clock,
while started.
*/
type Timer struct {
	irq     *IRQController
	clock   uint64
	mu      sync.Mutex
	period  uint32
	running bool
	handler func()
}

func NewTimer(irq *IRQController, clock uint64) *Timer {
	if clock == 0 {
		clock = DefaultClock
	}
	return &Timer{irq: irq, clock: clock, period: 1}
}

func (t *Timer) SetPeriod(ticks uint32) {
	if ticks == 0 {
		ticks = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.period = ticks
}

func (t *Timer) Period() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.period
}

func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
}

func (t *Timer) Stop() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
	t.irq.Clear(LineTimer)
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timer) OnTick(fn func()) {
	t.mu.Lock()
	t.handler = fn
	t.mu.Unlock()
	t.irq.Attach(LineTimer, t.serve)
}

// Fire signals one period match, if the timer is running.
func (t *Timer) Fire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.irq.Raise(LineTimer)
	}
	return t.running
}

// Interval is the wall clock duration of the current period.
func (t *Timer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(uint64(t.period) * uint64(time.Second) / t.clock)
}

func (t *Timer) serve() {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h()
	}
}

// Run fires at the current period until ctx is done.
func (t *Timer) Run(ctx context.Context) {
	paced(ctx, t.irq, t.rate, t.Fire)
}

// rate is the number of period matches per second, zero while stopped.
func (t *Timer) rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	return float64(t.clock) / float64(t.period)
}

/*
Output is the compare unit of the PWM output. Besides the current value,
it keeps the most recent values in a capture buffer, so that played audio
can be inspected.
*/
type Output struct {
	mu      sync.Mutex
	value   uint8
	capture *ringbuffer.RingBuffer
}

func NewOutput(capture int) *Output {
	if capture <= 0 {
		capture = 1
	}
	return &Output{
		value:   recorder.MidScale,
		capture: ringbuffer.New(capture),
	}
}

func (o *Output) SetCompareValue(v uint8) {

	o.mu.Lock()
	defer o.mu.Unlock()

	o.value = v
	if o.capture.IsFull() {
		var drop [1]byte
		o.capture.Read(drop[:])
	}
	o.capture.WriteByte(v)
}

func (o *Output) Value() uint8 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Drain returns the captured values, oldest first, and empties the capture.
func (o *Output) Drain() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	ret := make([]byte, o.capture.Length())
	n, _ := o.capture.Read(ret)
	return ret[:n]
}

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
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/nvmrec/pkg/recorder"
)

/*
ADC is the analog-to-digital converter. Each conversion samples the signal
of the selected channel, hands the result to a running DMA transfer, and
raises the conversion interrupt. Conversions only happen while the ADC is
enabled and sampling has been started.
*/
type ADC struct {
	irq     *IRQController
	dma     *DMA
	rate    int
	mu      sync.Mutex
	signals map[recorder.Channel]Signal
	channel recorder.Channel
	enabled bool
	running bool
	result  recorder.RawSample
	handler func(recorder.RawSample)
}

func NewADC(irq *IRQController, dma *DMA, rate int) *ADC {
	return &ADC{
		irq:     irq,
		dma:     dma,
		rate:    rate,
		signals: map[recorder.Channel]Signal{},
	}
}

// SetSignal connects signal s to channel ch.
func (a *ADC) SetSignal(ch recorder.Channel, s Signal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signals[ch] = s
}

func (a *ADC) Enable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = true
}

// Disable turns the converter off. Sampling needs to be started again
// after re-enabling.
func (a *ADC) Disable() {
	a.mu.Lock()
	a.enabled = false
	a.running = false
	a.mu.Unlock()
	a.irq.Clear(LineADC)
}

func (a *ADC) SetChannel(ch recorder.Channel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channel = ch
}

func (a *ADC) StartSampling() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = a.enabled
}

func (a *ADC) OnSampleReady(fn func(recorder.RawSample)) {
	a.mu.Lock()
	a.handler = fn
	a.mu.Unlock()
	a.irq.Attach(LineADC, a.serve)
}

func (a *ADC) Channel() recorder.Channel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.channel
}

func (a *ADC) Sampling() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Convert performs one conversion, if the converter is sampling. It reports
// whether a conversion took place.
func (a *ADC) Convert() bool {

	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return false
	}
	var v recorder.RawSample
	if s := a.signals[a.channel]; s != nil {
		v = s.Next() & FullScale
	}
	a.result = v
	a.mu.Unlock()

	a.dma.feed(v)
	a.irq.Raise(LineADC)
	return true
}

func (a *ADC) serve() {
	a.mu.Lock()
	h := a.handler
	v := a.result
	a.mu.Unlock()
	if h != nil {
		h(v)
	}
}

// Run converts at the configured sample rate until ctx is done.
func (a *ADC) Run(ctx context.Context) error {

	if a.rate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", a.rate)
	}

	log.WithField("rate", a.rate).Debug("converter running")
	rate := float64(a.rate)
	paced(ctx, a.irq, func() float64 { return rate }, a.Convert)
	return nil
}

/*
DMA moves conversion results into the destination of the current transfer.
When the destination is full, the transfer completes and raises the DMA
interrupt. Starting a new transfer aborts the one in flight, including a
completion that has not been served yet.
*/
type DMA struct {
	irq     *IRQController
	mu      sync.Mutex
	dst     []recorder.RawSample
	pos     int
	busy    bool
	count   int
	handler func(int)
}

func NewDMA(irq *IRQController) *DMA {
	return &DMA{irq: irq}
}

func (d *DMA) StartTransfer(dst []recorder.RawSample) error {

	if len(dst) == 0 {
		return fmt.Errorf("empty transfer")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.busy {
		log.WithField("done", d.pos).Trace("aborting transfer in flight")
	}
	d.irq.Clear(LineDMA)
	d.dst = dst
	d.pos = 0
	d.busy = true
	return nil
}

func (d *DMA) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy
}

func (d *DMA) OnComplete(fn func(int)) {
	d.mu.Lock()
	d.handler = fn
	d.mu.Unlock()
	d.irq.Attach(LineDMA, d.serve)
}

// feed stores one word. The completion is raised while holding the lock, so
// that it cannot slip in after a new transfer was started.
func (d *DMA) feed(v recorder.RawSample) {

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.busy {
		return
	}

	d.dst[d.pos] = v
	d.pos++

	if d.pos == len(d.dst) {
		d.busy = false
		d.count = d.pos
		d.irq.Raise(LineDMA)
	}
}

func (d *DMA) serve() {
	d.mu.Lock()
	h := d.handler
	n := d.count
	d.mu.Unlock()
	if h != nil {
		h(n)
	}
}

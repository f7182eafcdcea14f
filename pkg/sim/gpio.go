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
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/nvmrec/pkg/recorder"
)

/*
EdgeLine is an input pin with edge triggered interrupt. Its level is driven
from the outside, e.g. by a push button. A level change raises the interrupt
when it matches the programmed polarity and the line is enabled. Edges
while disabled are lost, and disabling withdraws a pending request.
*/
type EdgeLine struct {
	irq      *IRQController
	line     Line
	mu       sync.Mutex
	level    bool
	enabled  bool
	polarity recorder.Edge
}

func NewEdgeLine(irq *IRQController, line Line) *EdgeLine {
	return &EdgeLine{irq: irq, line: line}
}

// SetLevel drives the pin high or low.
func (e *EdgeLine) SetLevel(high bool) {

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.level == high {
		return
	}
	e.level = high

	edge := recorder.Falling
	if high {
		edge = recorder.Rising
	}

	if !e.enabled || edge != e.polarity {
		log.WithFields(log.Fields{
			"line":    e.line,
			"edge":    edge,
			"enabled": e.enabled,
		}).Trace("edge ignored")
		return
	}

	e.irq.Raise(e.line)
}

func (e *EdgeLine) Level() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

func (e *EdgeLine) Enable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = true
}

func (e *EdgeLine) Disable() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = false
	e.irq.Clear(e.line)
}

func (e *EdgeLine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

func (e *EdgeLine) SetPolarity(p recorder.Edge) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.polarity = p
}

func (e *EdgeLine) Polarity() recorder.Edge {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.polarity
}

func (e *EdgeLine) OnEdge(fn func()) {
	e.irq.Attach(e.line, fn)
}

// Pin is a digital output, such as the status LED.
type Pin struct {
	mu       sync.Mutex
	on       bool
	watchers []func(bool)
}

func (p *Pin) Set(on bool) {
	p.mu.Lock()
	changed := p.on != on
	p.on = on
	watchers := p.watchers
	p.mu.Unlock()

	if changed {
		for _, w := range watchers {
			w(on)
		}
	}
}

func (p *Pin) On() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on
}

// Watch registers fn to be called on every change of the pin.
func (p *Pin) Watch(fn func(bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watchers = append(p.watchers, fn)
}

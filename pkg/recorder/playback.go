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

package recorder

import (
	"math"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Pacing maps the captured rate sample to an output timer period, in timer
// ticks: period = Offset + Scale * sample
type Pacing struct {
	Offset float64
	Scale  float64
}

func DefaultPacing() Pacing {
	return Pacing{Offset: 1000, Scale: 3.9}
}

func (p Pacing) Period(sample RawSample) uint32 {
	ret := p.Offset + p.Scale*float64(sample)
	switch {
	case !(ret >= 1): // also catches NaN
		return 1
	case ret >= math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(ret)
}

/*
Player is the playback engine. It is driven by the output timer tick and
reads the flash region row by row into a row cache, emitting one cached
sample per tick. Read cursor and row cache are only touched by OnTick, and
by Start while the timer is stopped.
*/
type Player struct {
	geo    Geometry
	nvm    NVM
	timer  OutputTimer
	output Output
	fault  *fault
	//
	row     []byte
	cursor  atomic.Uint32
	bound   atomic.Uint32
	running atomic.Bool
}

func newPlayer(geo Geometry, p Peripherals, f *fault) *Player {
	return &Player{
		geo:    geo,
		nvm:    p.NVM,
		timer:  p.Timer,
		output: p.Output,
		fault:  f,
		row:    make([]byte, geo.RowSize),
	}
}

// Cursor returns the read cursor.
func (p *Player) Cursor() uint32 {
	return p.cursor.Load()
}

// Bound returns the number of samples the current or last session plays.
func (p *Player) Bound() uint32 {
	return p.bound.Load()
}

func (p *Player) Running() bool {
	return p.running.Load()
}

// Start begins a session playing length samples, at a tick period given in
// timer ticks.
func (p *Player) Start(length, period uint32) {

	if p.fault.isHalted() {
		return
	}

	p.timer.Stop()
	if length > p.geo.MaxSamples {
		length = p.geo.MaxSamples
	}
	p.cursor.Store(0)
	p.bound.Store(length)
	p.timer.SetPeriod(period)
	p.running.Store(true)
	p.timer.Start()

	log.WithFields(log.Fields{
		"samples": length, "period": period}).Debug("player started")
}

// Stop ends the session and returns the output to silence.
func (p *Player) Stop() {
	p.timer.Stop()
	p.running.Store(false)
	p.output.SetCompareValue(MidScale)
}

// OnTick is the output timer handler.
func (p *Player) OnTick() {

	if p.fault.isHalted() {
		return
	}

	cursor := p.cursor.Load()
	if cursor >= p.bound.Load() {
		p.output.SetCompareValue(MidScale)
		return
	}

	ix := cursor % p.geo.RowSize
	if ix == 0 {
		addr := p.geo.Base + cursor
		if err := p.nvm.ReadRow(p.row, addr); err != nil {
			p.fault.raise(&MediumError{Op: OpRead, Address: addr, Err: err})
			return
		}
	}

	p.output.SetCompareValue(p.row[ix])
	p.cursor.Store(cursor + 1)
}

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
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// State is the mode of the device.
type State int32

const (
	StateIdle State = iota
	StateRecording
	StatePlaying
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePlaying:
		return "playing"
	case StateHalted:
		return "halted"
	default:
		return "<unknown>"
	}
}

// Event is a consumed edge on one of the control lines.
type Event int

const (
	EventRecordStart Event = iota
	EventRecordStop
	EventPlayStart
	EventPlayStop
)

func (e Event) String() string {
	switch e {
	case EventRecordStart:
		return "record start"
	case EventRecordStop:
		return "record stop"
	case EventPlayStart:
		return "play start"
	case EventPlayStop:
		return "play stop"
	default:
		return "<unknown>"
	}
}

type transition struct {
	next   State
	action func(c *Controller)
}

// the mode table; pairs not listed cannot occur, since the line of the
// inactive mode is masked
var transitions = map[State]map[Event]transition{
	StateIdle: {
		EventRecordStart: {StateRecording, (*Controller).startRecording},
		EventPlayStart:   {StatePlaying, (*Controller).startPlaying},
	},
	StateRecording: {
		EventRecordStop: {StateIdle, (*Controller).stopRecording},
	},
	StatePlaying: {
		EventPlayStop: {StateIdle, (*Controller).stopPlaying},
	},
}

// phase of a control line; a line is armed either for its start or its stop
// edge
type phase int

const (
	startArmed phase = iota
	stopArmed
)

/*
Controller is the mode controller. Each control line has its own handler,
which masks its line while running and unmasks it when done, so an edge is
always processed completely before the next one on the same line can be
observed. A handler only changes the polarity of its own line, and masks or
unmasks the other one.
*/
type Controller struct {
	state       atomic.Int32
	recordPhase phase
	playPhase   phase
	//
	record    EdgeLine
	play      EdgeLine
	source    SampleSource
	indicator Indicator
	sched     *Scheduler
	player    *Player
	fault     *fault
	//
	pacing     Pacing
	lastSample *atomic.Uint32
	period     atomic.Uint32
}

// State returns the current mode.
func (c *Controller) State() State {
	if c.fault.isHalted() {
		return StateHalted
	}
	return State(c.state.Load())
}

// Period returns the output timer period captured when playback was last
// armed.
func (c *Controller) Period() uint32 {
	return c.period.Load()
}

// OnRecordEdge is the handler of the record line.
func (c *Controller) OnRecordEdge() {

	if c.fault.isHalted() {
		return
	}

	c.record.Disable()

	if c.recordPhase == startArmed {
		c.fire(EventRecordStart)
	} else {
		c.fire(EventRecordStop)
	}

	c.rearm(c.record)
}

// OnPlayEdge is the handler of the play line.
func (c *Controller) OnPlayEdge() {

	if c.fault.isHalted() {
		return
	}

	c.play.Disable()

	if c.playPhase == startArmed {
		c.fire(EventPlayStart)
	} else {
		c.fire(EventPlayStop)
	}

	c.rearm(c.play)
}

// rearm unmasks a line at the end of its handler, unless the device halted
// while handling the edge.
func (c *Controller) rearm(line EdgeLine) {
	if !c.fault.isHalted() {
		line.Enable()
	}
}

func (c *Controller) fire(ev Event) {

	from := State(c.state.Load())
	t, ok := transitions[from][ev]
	if !ok {
		log.WithFields(log.Fields{
			"state": from, "event": ev}).Warn("ignoring event")
		return
	}

	t.action(c)
	c.state.Store(int32(t.next))

	log.WithFields(log.Fields{
		"from": from, "to": t.next, "event": ev}).Info("MODE")
}

func (c *Controller) startRecording() {
	c.play.Disable()
	c.record.SetPolarity(Falling)
	c.recordPhase = stopArmed
	c.indicator.Set(true)
	c.sched.Arm()
}

func (c *Controller) stopRecording() {
	c.sched.Disarm()
	c.record.SetPolarity(Rising)
	c.recordPhase = startArmed
	c.play.Enable()
	c.indicator.Set(false)
}

func (c *Controller) startPlaying() {
	c.record.Disable()
	c.play.SetPolarity(Falling)
	c.playPhase = stopArmed
	c.source.Disable()
	period := c.pacing.Period(c.lastSample.Load())
	c.period.Store(period)
	c.indicator.Set(true)
	c.player.Start(c.sched.Cursor(), period)
}

func (c *Controller) stopPlaying() {
	c.player.Stop()
	c.play.SetPolarity(Rising)
	c.playPhase = startArmed
	c.source.Enable()
	c.source.StartSampling()
	c.record.Enable()
	c.indicator.Set(false)
}
